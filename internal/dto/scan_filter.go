// ScanFilters describe user-provided filters to narrow the scan list.
package dto

import "time"

type ScanFilters struct {
	Label      string
	DateAfter  time.Time
	DateBefore time.Time
	Limit      int
	Offset     int
}

// ScansData is a paginated response payload for the scan gallery.
package dto

type ScansData struct {
	Scans       []ScanInfo `json:"scans"`
	Size        int64      `json:"size"`
	Length      int        `json:"length"`
	TotalPages  int        `json:"totalPages"`
	CurrentPage int        `json:"currentPage"`
	Limit       int        `json:"pageSize"`
}

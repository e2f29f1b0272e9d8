package model

import "time"

// Scan is a stored crop of a part together with where it was found.
type Scan struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	Timestamp   time.Time `json:"timestamp"`
	FilePath    string    `json:"filepath"`
	FileSize    int64     `json:"filesize"`
	X           int       `json:"x"`
	Y           int       `json:"y"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Sensitivity int       `json:"sensitivity"`
}

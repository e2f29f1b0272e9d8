package model

// Prediction is one suggested part number for a scan.
type Prediction struct {
	ID     int64   `json:"id"`
	ScanID int64   `json:"scan_id"`
	Rank   int     `json:"rank"`
	Label  string  `json:"label"`
	Score  float64 `json:"score"`
}

package dto

import (
	"image"
	"time"
)

// BufferedScan holds a cropped part and its predictions before flushing to disk.
type BufferedScan struct {
	Timestamp   time.Time
	Region      image.Rectangle
	Sensitivity int
	Predictions []PredictionResult
	Data        []byte
}

// ScanTicket acknowledges a queued scan request.
type ScanTicket struct {
	Region      Region `json:"roi"`
	Sensitivity int    `json:"sensitivity"`
}

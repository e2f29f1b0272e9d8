package dto

import (
	"encoding/json"
	"time"
)

// ScanInfo describes a stored scan in the gallery listing.
type ScanInfo struct {
	Name        string             `json:"name"`
	Date        time.Time          `json:"date"`
	TimeOfDay   time.Time          `json:"timeOfDay"`
	Region      Region             `json:"roi"`
	Sensitivity int                `json:"sensitivity"`
	Predictions []PredictionResult `json:"predictions"`
}

// MarshalJSON customizes JSON output for ScanInfo to format date and time-of-day.
func (s ScanInfo) MarshalJSON() ([]byte, error) {
	type Alias ScanInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      s.Date.Format("02-01-2006"),
		TimeOfDay: s.TimeOfDay.Format("15:04"),
		Alias:     (Alias)(s),
	})
}

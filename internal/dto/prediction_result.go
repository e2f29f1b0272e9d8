package dto

// PredictionResult is one part number suggested by the prediction API.
type PredictionResult struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

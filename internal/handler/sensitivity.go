package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"brickscan/internal/logger"
	"brickscan/internal/roi"
)

// SensitivityControl exposes the live detection level.
type SensitivityControl interface {
	Sensitivity() int
	SetSensitivity(level int) error
}

type sensitivityPayload struct {
	Sensitivity int `json:"sensitivity"`
	Min         int `json:"min"`
	Max         int `json:"max"`
}

// SensitivityHandler reads (GET) or changes (PUT) the level used by the capture loop.
func SensitivityHandler(control SensitivityControl, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
		case http.MethodPut, http.MethodPost:
			var req struct {
				Sensitivity *int `json:"sensitivity"`
			}
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil || req.Sensitivity == nil {
				http.Error(w, "Body must be {\"sensitivity\": n}", http.StatusBadRequest)
				return
			}
			if err := control.SetSensitivity(*req.Sensitivity); err != nil {
				if errors.Is(err, roi.ErrInvalidSensitivity) {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				logger.Error("Failed to set sensitivity: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			logger.Info("Sensitivity set to %d", *req.Sensitivity)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		writeJSON(w, http.StatusOK, sensitivityPayload{
			Sensitivity: control.Sensitivity(),
			Min:         roi.MinSensitivity,
			Max:         roi.MaxSensitivity,
		}, logger)
	}
}

package handler

import (
	"errors"
	"net/http"

	"brickscan/internal/dto"
	"brickscan/internal/logger"
	"brickscan/internal/service"
)

// Scanner queues the part currently in view.
type Scanner interface {
	RequestScan() (dto.ScanTicket, error)
}

// ScanHandler queues a scan of the current region of interest.
func ScanHandler(scanner Scanner, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		ticket, err := scanner.RequestScan()
		switch {
		case err == nil:
			writeJSON(w, http.StatusAccepted, ticket, logger)
		case errors.Is(err, service.ErrNoFrame),
			errors.Is(err, service.ErrNothingToScan),
			errors.Is(err, service.ErrQueueFull):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, service.ErrStopped):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			logger.Error("Scan request failed: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}

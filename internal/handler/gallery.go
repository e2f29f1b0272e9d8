package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"brickscan/internal/config"
	"brickscan/internal/dto"
	"brickscan/internal/logger"
	"brickscan/internal/repository"
)

// GetScansHandler returns a filtered, paginated list of stored scans.
func GetScansHandler(cfg *config.Config, logger *logger.Logger,
	scanRepo repository.ScanRepository, predictionRepo repository.PredictionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &dto.ScanFilters{
			Label:      q.Get("label"),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
			Limit:      limit,
			Offset:     (page - 1) * limit,
		}

		scans, err := scanRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying scans from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalSize, err := scanRepo.GetTotalSize()
		if err != nil {
			logger.Error("Error getting scan directory size: %v", err)
			totalSize = 0
		}

		totalCount, err := scanRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting scans: %v", err)
			totalCount = len(scans)
		}

		infos := make([]dto.ScanInfo, 0, len(scans))
		for _, scan := range scans {
			predictions := []dto.PredictionResult{}
			if predictionRepo != nil {
				stored, err := predictionRepo.GetByScanID(scan.ID)
				if err != nil {
					logger.Error("Error getting predictions for scan %d: %v", scan.ID, err)
				}
				for _, p := range stored {
					predictions = append(predictions, dto.PredictionResult{Label: p.Label, Score: p.Score})
				}
			}

			infos = append(infos, dto.ScanInfo{
				Name:      scan.Filename,
				Date:      scan.Timestamp,
				TimeOfDay: scan.Timestamp,
				Region: dto.Region{
					X:      scan.X,
					Y:      scan.Y,
					Width:  scan.Width,
					Height: scan.Height,
				},
				Sensitivity: scan.Sensitivity,
				Predictions: predictions,
			})
		}

		writeJSON(w, http.StatusOK, dto.ScansData{
			Scans:       infos,
			Size:        totalSize,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}, logger)
	}
}

// GetLabelsHandler lists every part label seen in stored predictions.
func GetLabelsHandler(logger *logger.Logger, predictionRepo repository.PredictionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		labels, err := predictionRepo.GetAllLabels()
		if err != nil {
			logger.Error("Error querying labels: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if labels == nil {
			labels = []string{}
		}
		writeJSON(w, http.StatusOK, labels, logger)
	}
}

// DeleteScanHandler removes a scan from disk and database.
func DeleteScanHandler(cfg *config.Config, logger *logger.Logger, scanRepo repository.ScanRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete && r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		filename := r.URL.Query().Get("filename")
		if !validFilename(filename) {
			http.Error(w, "Filename required", http.StatusBadRequest)
			return
		}

		filePath := filepath.Join(cfg.ImageDirectory, filename)
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			logger.Error("Failed to delete file %s: %v", filePath, err)
		}

		if err := scanRepo.DeleteByFilename(filename); err != nil {
			logger.Error("Failed to delete from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Deleted scan: %s", filename)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "filename": filename}, logger)
	}
}

// ClearScansHandler deletes every scan file and clears the database.
func ClearScansHandler(cfg *config.Config, logger *logger.Logger, scanRepo repository.ScanRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		files, err := os.ReadDir(cfg.ImageDirectory)
		if err != nil && !os.IsNotExist(err) {
			logger.Error("Error reading scans directory: %v", err)
			http.Error(w, "Unable to read scans directory", http.StatusInternalServerError)
			return
		}

		for _, file := range files {
			if file.IsDir() {
				continue
			}
			if err := os.Remove(filepath.Join(cfg.ImageDirectory, file.Name())); err != nil {
				logger.Error("Error deleting file %s: %v", file.Name(), err)
			}
		}

		if err := scanRepo.DeleteAll(); err != nil {
			logger.Error("Error clearing database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("All scans cleared from directory: %s", cfg.ImageDirectory)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ViewScanHandler serves a single scan file named by the "image" query parameter.
func ViewScanHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("image")
		if !validFilename(name) {
			http.Error(w, "Image parameter is required", http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, filepath.Join(cfg.ImageDirectory, name))
	}
}

// validFilename rejects empty names and anything reaching outside the scan directory.
func validFilename(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" (HTML input format)
// as a local calendar day.
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

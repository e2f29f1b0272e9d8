package handler

import (
	"encoding/json"
	"errors"
	"image"
	"io"
	"mime"
	"net/http"
	"strconv"

	"brickscan/internal/config"
	"brickscan/internal/dto"
	"brickscan/internal/logger"
	"brickscan/internal/roi"
)

// RoiDetector locates the part in an encoded image.
type RoiDetector interface {
	DetectBytes(data []byte, level int) (image.Rectangle, error)
}

// DetectRoiHandler runs region detection on an uploaded image. The image is
// either the raw request body or the "file" field of a multipart form.
func DetectRoiHandler(detector RoiDetector, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		level := cfg.Sensitivity
		if v := r.URL.Query().Get("sensitivity"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || !roi.ValidSensitivity(parsed) {
				http.Error(w, roi.ErrInvalidSensitivity.Error(), http.StatusBadRequest)
				return
			}
			level = parsed
		}

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes())
		data, err := readUpload(r)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "Image too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "Unable to read image: "+err.Error(), http.StatusBadRequest)
			return
		}

		region, err := detector.DetectBytes(data, level)
		switch {
		case errors.Is(err, roi.ErrInvalidSensitivity), errors.Is(err, roi.ErrUndecodable):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case err != nil:
			logger.Error("Region detection failed: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, dto.NewRegion(region), logger)
	}
}

func readUpload(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return io.ReadAll(r.Body)
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

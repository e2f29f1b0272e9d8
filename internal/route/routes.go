package route

import (
	"net/http"

	"brickscan/internal/config"
	"brickscan/internal/handler"
	"brickscan/internal/logger"
	"brickscan/internal/repository"
)

// Dependencies are the services the HTTP surface is built on.
type Dependencies struct {
	Config         *config.Config
	Logger         *logger.Logger
	Detector       handler.RoiDetector
	Sensitivity    handler.SensitivityControl
	Scanner        handler.Scanner
	Viewers        handler.ViewerHub
	ScanRepo       repository.ScanRepository
	PredictionRepo repository.PredictionRepository
}

// SetupRoutes registers the API, gallery and log endpoints.
func SetupRoutes(d Dependencies) http.Handler {
	mux := http.NewServeMux()
	cfg, log := d.Config, d.Logger

	// Detection
	mux.HandleFunc("/api/roi", handler.DetectRoiHandler(d.Detector, cfg, log))
	mux.HandleFunc("/api/sensitivity", handler.SensitivityHandler(d.Sensitivity, log))
	mux.HandleFunc("/api/scan", handler.ScanHandler(d.Scanner, log))
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(d.Viewers, log))

	// Gallery
	mux.HandleFunc("/api/scans", handler.GetScansHandler(cfg, log, d.ScanRepo, d.PredictionRepo))
	mux.HandleFunc("/api/scans/labels", handler.GetLabelsHandler(log, d.PredictionRepo))
	mux.HandleFunc("/api/scans/view", handler.ViewScanHandler(cfg))
	mux.HandleFunc("/api/scans/delete", handler.DeleteScanHandler(cfg, log, d.ScanRepo))
	mux.HandleFunc("/api/scans/clear", handler.ClearScansHandler(cfg, log, d.ScanRepo))

	// Logs
	for path, file := range map[string]string{
		"/logs/info":    logger.InfoFile,
		"/logs/warning": logger.WarningFile,
		"/logs/error":   logger.ErrorFile,
	} {
		mux.HandleFunc(path, handler.ShowLogsHandler(log, file))
		mux.HandleFunc(path+"/clear", handler.ClearLogsHandler(log, file))
	}

	return mux
}

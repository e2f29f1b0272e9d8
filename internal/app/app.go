package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"brickscan/internal/capture"
	"brickscan/internal/config"
	"brickscan/internal/logger"
	"brickscan/internal/repository/sqlite"
	"brickscan/internal/roi"
	"brickscan/internal/route"
	"brickscan/internal/service"
	"brickscan/internal/service/predict"
	"brickscan/internal/service/storage"
	"brickscan/internal/service/websocket"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config  *config.Config
	logger  *logger.Logger
	db      *sqlite.DB
	source  capture.Source
	runner  *capture.Runner
	buffer  *storage.BufferService
	hub     *websocket.HubService
	manager *service.Manager
	server  *http.Server
}

// NewApp opens the database and the camera and wires every service together.
func NewApp(cfg *config.Config, logger *logger.Logger) (*App, error) {
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	scanRepo := sqlite.NewScanRepository(db)
	predictionRepo := sqlite.NewPredictionRepository(db)

	source, err := openSource(cfg, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	detector := roi.NewDetector(roi.Options{
		MinBlobSize:  cfg.MinBlobSize,
		MergeSpacing: cfg.MergeSpacing,
	})
	buffer := storage.NewBufferService(cfg, logger, scanRepo, predictionRepo)
	hub := websocket.NewHubService(logger)
	predictor := predict.NewClient(cfg)
	manager := service.NewManager(cfg, predictor, buffer, hub, logger)

	runner, err := capture.NewRunner(source, detector, manager, cfg.CaptureEvery(), cfg.Sensitivity, logger)
	if err != nil {
		manager.Stop()
		source.Close()
		db.Close()
		return nil, err
	}

	router := route.SetupRoutes(route.Dependencies{
		Config:         cfg,
		Logger:         logger,
		Detector:       detector,
		Sensitivity:    runner,
		Scanner:        manager,
		Viewers:        hub,
		ScanRepo:       scanRepo,
		PredictionRepo: predictionRepo,
	})

	if !predictor.Enabled() {
		logger.Warning("PREDICTION_URL not set - scans are stored without part numbers")
	}

	return &App{
		config:  cfg,
		logger:  logger,
		db:      db,
		source:  source,
		runner:  runner,
		buffer:  buffer,
		hub:     hub,
		manager: manager,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func openSource(cfg *config.Config, logger *logger.Logger) (capture.Source, error) {
	switch cfg.CameraSource {
	case config.SourceUDP:
		return capture.ListenUDP(context.Background(), cfg.CameraPort, logger)
	case config.SourceWebcam:
		return capture.OpenWebcam(cfg.CameraDevice)
	default:
		return nil, fmt.Errorf("unknown camera source %q", cfg.CameraSource)
	}
}

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves HTTP and captures frames until ctx is cancelled or the server
// fails. Pending scans are flushed before it returns.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bufferCtx, stopBuffer := context.WithCancel(context.Background())
	bufferDone := make(chan struct{})
	go func() {
		a.buffer.Run(bufferCtx)
		close(bufferDone)
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.runner.Run(ctx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("BrickScan server listening on %s (camera: %s, scans: %s)",
			a.server.Addr, a.config.CameraSource, a.config.ImageDirectory)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("http server failed: %w", err)
		}
	}
	cancel()

	a.logger.Info("Shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP shutdown: %v", err)
	}

	wg.Wait()
	a.manager.Stop()
	stopBuffer()
	<-bufferDone

	return runErr
}

// Close releases the camera and the database.
func (a *App) Close() error {
	var firstErr error
	if err := a.source.Close(); err != nil {
		firstErr = err
	}
	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

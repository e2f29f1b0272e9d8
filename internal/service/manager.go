package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"brickscan/internal/config"
	"brickscan/internal/crop"
	"brickscan/internal/dto"
	"brickscan/internal/logger"
	"brickscan/internal/service/preview"

	"gocv.io/x/gocv"
)

var (
	ErrNoFrame       = errors.New("no frame captured yet")
	ErrNothingToScan = errors.New("no part in view")
	ErrQueueFull     = errors.New("scan queue full")
	ErrStopped       = errors.New("manager stopped")
)

// Predictor suggests part numbers for a cropped part.
type Predictor interface {
	Enabled() bool
	Predict(ctx context.Context, jpeg []byte) ([]dto.PredictionResult, error)
}

// ScanBuffer stores finished scans.
type ScanBuffer interface {
	AddScan(scan dto.BufferedScan) bool
}

// Viewers receives live preview messages.
type Viewers interface {
	Broadcast(message []byte) bool
	GetClientCount() int
}

type ScanTask struct {
	Image       image.Image
	Region      image.Rectangle
	Sensitivity int
	Timestamp   time.Time
}

// Manager keeps the latest captured frame, feeds the live preview and turns
// scan requests into stored crops.
type Manager struct {
	buffer    ScanBuffer
	predictor Predictor
	viewers   Viewers
	logger    *logger.Logger

	cropSize     int
	previewEvery int
	numWorkers   int

	queue  chan ScanTask
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	latest     gocv.Mat
	hasFrame   bool
	region     image.Rectangle
	level      int
	frameCount int
	stopped    bool
}

func NewManager(cfg *config.Config, predictor Predictor, buffer ScanBuffer, viewers Viewers, logger *logger.Logger) *Manager {
	previewEvery := cfg.PreviewEvery
	if previewEvery <= 0 {
		previewEvery = 1
	}
	queueSize := cfg.ScanBufferLimit
	if queueSize <= 0 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		ctx:          ctx,
		cancel:       cancel,
		buffer:       buffer,
		predictor:    predictor,
		viewers:      viewers,
		logger:       logger,
		cropSize:     cfg.CropSize,
		previewEvery: previewEvery,
		numWorkers:   cfg.ProcessingWorkers,
		queue:        make(chan ScanTask, queueSize),
		latest:       gocv.NewMat(),
	}

	for i := 0; i < m.numWorkers; i++ {
		m.wg.Add(1)
		go m.processingWorker(i)
	}

	m.logger.Info("Manager started - %d worker(s), preview every %d frame(s)", m.numWorkers, m.previewEvery)
	return m
}

// HandleFrame records the frame as the latest one and forwards every Nth
// frame to connected viewers.
func (m *Manager) HandleFrame(frame gocv.Mat, region image.Rectangle, level int) {
	if frame.Empty() {
		return
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	if err := frame.CopyTo(&m.latest); err != nil {
		m.mu.Unlock()
		m.logger.Error("Failed to keep frame: %v", err)
		return
	}
	m.hasFrame = true
	m.region = region
	m.level = level
	m.frameCount++
	sendPreview := m.frameCount%m.previewEvery == 0
	m.mu.Unlock()

	if sendPreview && m.viewers.GetClientCount() > 0 {
		m.SendToViewers(frame, region, level)
	}
}

// SendToViewers broadcasts an annotated copy of frame.
func (m *Manager) SendToViewers(frame gocv.Mat, region image.Rectangle, level int) {
	jpeg, err := preview.Annotate(frame, region)
	if err != nil {
		m.logger.Error("Failed to annotate preview: %v", err)
		return
	}

	msg, err := json.Marshal(dto.FrameMessage{
		Region:      dto.NewRegion(region),
		Sensitivity: level,
		Image:       base64.StdEncoding.EncodeToString(jpeg),
	})
	if err != nil {
		m.logger.Error("Failed to encode preview: %v", err)
		return
	}

	m.viewers.Broadcast(msg)
}

// Current returns the region and level of the latest frame.
func (m *Manager) Current() (image.Rectangle, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.region, m.level, m.hasFrame
}

// RequestScan queues the part currently in view for cropping and prediction.
func (m *Manager) RequestScan() (dto.ScanTicket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return dto.ScanTicket{}, ErrStopped
	}
	if !m.hasFrame {
		return dto.ScanTicket{}, ErrNoFrame
	}
	if m.region.Empty() {
		return dto.ScanTicket{}, ErrNothingToScan
	}

	img, err := m.latest.ToImage()
	if err != nil {
		return dto.ScanTicket{}, fmt.Errorf("failed to convert frame: %w", err)
	}

	task := ScanTask{
		Image:       img,
		Region:      m.region,
		Sensitivity: m.level,
		Timestamp:   time.Now(),
	}

	select {
	case m.queue <- task:
		m.logger.Info("Scan queued at %v", task.Region)
		return dto.ScanTicket{Region: dto.NewRegion(task.Region), Sensitivity: task.Sensitivity}, nil
	default:
		m.logger.Warning("Scan queue full - skipping scan")
		return dto.ScanTicket{}, ErrQueueFull
	}
}

func (m *Manager) processingWorker(workerID int) {
	defer m.wg.Done()

	m.logger.Info("Processing worker %d started", workerID)
	for task := range m.queue {
		if err := m.processScan(task); err != nil {
			m.logger.Error("Worker %d: %v", workerID, err)
		}
	}
	m.logger.Info("Processing worker %d stopped", workerID)
}

func (m *Manager) processScan(task ScanTask) error {
	square, err := crop.Square(task.Image, task.Region, m.cropSize)
	if err != nil {
		return err
	}

	data, err := crop.EncodeJPEG(square)
	if err != nil {
		return err
	}

	var predictions []dto.PredictionResult
	if m.predictor != nil && m.predictor.Enabled() {
		predictions, err = m.predictor.Predict(m.ctx, data)
		if err != nil {
			// the crop is still worth keeping for later labelling
			m.logger.Warning("Prediction failed: %v", err)
		}
	}

	if !m.buffer.AddScan(dto.BufferedScan{
		Timestamp:   task.Timestamp,
		Region:      task.Region,
		Sensitivity: task.Sensitivity,
		Predictions: predictions,
		Data:        data,
	}) {
		return errors.New("scan dropped, buffer full")
	}
	return nil
}

// Stop drains the queue, waits for all workers and releases the latest frame.
// Predictions still in flight are cancelled; their scans are stored unlabelled.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	close(m.queue)
	m.mu.Unlock()

	m.cancel()

	m.wg.Wait()

	m.mu.Lock()
	m.latest.Close()
	m.hasFrame = false
	m.mu.Unlock()
	m.logger.Info("All processing workers stopped")
}

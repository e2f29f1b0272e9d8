package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"brickscan/internal/config"
	"brickscan/internal/dto"
	"brickscan/internal/logger"

	"gocv.io/x/gocv"
)

type fakePredictor struct {
	enabled bool
	results []dto.PredictionResult
	err     error
	block   chan struct{}
}

func (p *fakePredictor) Enabled() bool { return p.enabled }

func (p *fakePredictor) Predict(ctx context.Context, jpeg []byte) ([]dto.PredictionResult, error) {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.results, p.err
}

type fakeBuffer struct {
	mu    sync.Mutex
	scans []dto.BufferedScan
	added chan struct{}
}

func newFakeBuffer() *fakeBuffer {
	return &fakeBuffer{added: make(chan struct{}, 16)}
}

func (b *fakeBuffer) AddScan(scan dto.BufferedScan) bool {
	b.mu.Lock()
	b.scans = append(b.scans, scan)
	b.mu.Unlock()
	b.added <- struct{}{}
	return true
}

func (b *fakeBuffer) wait(t *testing.T) dto.BufferedScan {
	t.Helper()
	select {
	case <-b.added:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for scan")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scans[len(b.scans)-1]
}

type fakeViewers struct {
	clients  int
	messages [][]byte
}

func (v *fakeViewers) Broadcast(message []byte) bool {
	v.messages = append(v.messages, message)
	return true
}

func (v *fakeViewers) GetClientCount() int { return v.clients }

func testConfig() *config.Config {
	return &config.Config{
		CropSize:          32,
		PreviewEvery:      2,
		ProcessingWorkers: 1,
		ScanBufferLimit:   4,
	}
}

func testFrame() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 80, 120, 0), 120, 160, gocv.MatTypeCV8UC3)
}

func TestManager_RequestScanWithoutFrame(t *testing.T) {
	m := NewManager(testConfig(), nil, newFakeBuffer(), &fakeViewers{}, logger.Discard())
	defer m.Stop()

	if _, err := m.RequestScan(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Expected ErrNoFrame, got %v", err)
	}
}

func TestManager_RequestScanEmptyRegion(t *testing.T) {
	m := NewManager(testConfig(), nil, newFakeBuffer(), &fakeViewers{}, logger.Discard())
	defer m.Stop()

	frame := testFrame()
	defer frame.Close()
	m.HandleFrame(frame, image.Rectangle{}, 5)

	if _, err := m.RequestScan(); !errors.Is(err, ErrNothingToScan) {
		t.Errorf("Expected ErrNothingToScan, got %v", err)
	}
}

func TestManager_ScanIsCroppedPredictedAndBuffered(t *testing.T) {
	buffer := newFakeBuffer()
	predictor := &fakePredictor{
		enabled: true,
		results: []dto.PredictionResult{{Label: "3001", Score: 0.9}},
	}
	m := NewManager(testConfig(), predictor, buffer, &fakeViewers{}, logger.Discard())
	defer m.Stop()

	frame := testFrame()
	defer frame.Close()
	region := image.Rect(20, 10, 80, 70)
	m.HandleFrame(frame, region, 7)

	ticket, err := m.RequestScan()
	if err != nil {
		t.Fatalf("RequestScan failed: %v", err)
	}
	if ticket.Region != dto.NewRegion(region) || ticket.Sensitivity != 7 {
		t.Errorf("Unexpected ticket %+v", ticket)
	}

	scan := buffer.wait(t)
	if scan.Region != region || scan.Sensitivity != 7 {
		t.Errorf("Unexpected scan region %v level %d", scan.Region, scan.Sensitivity)
	}
	if len(scan.Predictions) != 1 || scan.Predictions[0].Label != "3001" {
		t.Errorf("Unexpected predictions %+v", scan.Predictions)
	}

	img, err := jpeg.Decode(bytes.NewReader(scan.Data))
	if err != nil {
		t.Fatalf("Scan data is not a JPEG: %v", err)
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 32 {
		t.Errorf("Expected 32x32 crop, got %v", img.Bounds())
	}
}

func TestManager_PredictionFailureStillStoresScan(t *testing.T) {
	buffer := newFakeBuffer()
	predictor := &fakePredictor{enabled: true, err: errors.New("api down")}
	m := NewManager(testConfig(), predictor, buffer, &fakeViewers{}, logger.Discard())
	defer m.Stop()

	frame := testFrame()
	defer frame.Close()
	m.HandleFrame(frame, image.Rect(0, 0, 50, 50), 5)

	if _, err := m.RequestScan(); err != nil {
		t.Fatalf("RequestScan failed: %v", err)
	}

	scan := buffer.wait(t)
	if len(scan.Predictions) != 0 {
		t.Errorf("Expected no predictions, got %+v", scan.Predictions)
	}
	if len(scan.Data) == 0 {
		t.Error("Expected crop data")
	}
}

func TestManager_QueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.ScanBufferLimit = 1
	block := make(chan struct{})
	predictor := &fakePredictor{enabled: true, block: block}
	buffer := newFakeBuffer()
	m := NewManager(cfg, predictor, buffer, &fakeViewers{}, logger.Discard())

	frame := testFrame()
	defer frame.Close()
	m.HandleFrame(frame, image.Rect(0, 0, 50, 50), 5)

	// first scan occupies the worker, second fills the queue
	if _, err := m.RequestScan(); err != nil {
		t.Fatalf("First RequestScan failed: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(m.queue) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Worker did not pick up the first scan")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := m.RequestScan(); err != nil {
		t.Fatalf("Second RequestScan failed: %v", err)
	}

	if _, err := m.RequestScan(); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}

	close(block)
	m.Stop()

	if len(buffer.scans) != 2 {
		t.Errorf("Expected 2 stored scans after stop, got %d", len(buffer.scans))
	}
	if _, err := m.RequestScan(); !errors.Is(err, ErrStopped) {
		t.Errorf("Expected ErrStopped after stop, got %v", err)
	}
}

func TestManager_StopCancelsStalledPrediction(t *testing.T) {
	predictor := &fakePredictor{
		enabled: true,
		results: []dto.PredictionResult{{Label: "3001"}},
		block:   make(chan struct{}), // never released
	}
	buffer := newFakeBuffer()
	m := NewManager(testConfig(), predictor, buffer, &fakeViewers{}, logger.Discard())

	frame := testFrame()
	defer frame.Close()
	m.HandleFrame(frame, image.Rect(0, 0, 50, 50), 5)

	if _, err := m.RequestScan(); err != nil {
		t.Fatalf("RequestScan failed: %v", err)
	}

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return while a prediction was stalled")
	}

	scan := buffer.wait(t)
	if len(scan.Predictions) != 0 {
		t.Errorf("Expected cancelled scan without predictions, got %+v", scan.Predictions)
	}
}

func TestManager_PreviewEveryNthFrame(t *testing.T) {
	viewers := &fakeViewers{clients: 1}
	m := NewManager(testConfig(), nil, newFakeBuffer(), viewers, logger.Discard())
	defer m.Stop()

	frame := testFrame()
	defer frame.Close()
	region := image.Rect(10, 10, 60, 60)

	for i := 0; i < 4; i++ {
		m.HandleFrame(frame, region, 3)
	}

	if len(viewers.messages) != 2 {
		t.Fatalf("Expected 2 previews for 4 frames, got %d", len(viewers.messages))
	}

	var msg dto.FrameMessage
	if err := json.Unmarshal(viewers.messages[0], &msg); err != nil {
		t.Fatalf("Invalid preview message: %v", err)
	}
	if msg.Region != dto.NewRegion(region) || msg.Sensitivity != 3 {
		t.Errorf("Unexpected preview %+v", msg.Region)
	}
	data, err := base64.StdEncoding.DecodeString(msg.Image)
	if err != nil {
		t.Fatalf("Preview image is not base64: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("Preview image is not a JPEG: %v", err)
	}
}

func TestManager_NoPreviewWithoutViewers(t *testing.T) {
	viewers := &fakeViewers{}
	m := NewManager(testConfig(), nil, newFakeBuffer(), viewers, logger.Discard())
	defer m.Stop()

	frame := testFrame()
	defer frame.Close()
	for i := 0; i < 4; i++ {
		m.HandleFrame(frame, image.Rect(10, 10, 60, 60), 3)
	}

	if len(viewers.messages) != 0 {
		t.Errorf("Expected no previews, got %d", len(viewers.messages))
	}

	region, level, ok := m.Current()
	if !ok || region != image.Rect(10, 10, 60, 60) || level != 3 {
		t.Errorf("Unexpected current state %v %d %v", region, level, ok)
	}
}

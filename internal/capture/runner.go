package capture

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"time"

	"brickscan/internal/logger"
	"brickscan/internal/roi"

	"gocv.io/x/gocv"
)

// Detector finds the region of interest in a frame.
type Detector interface {
	Detect(frame gocv.Mat, level int) (image.Rectangle, error)
}

// FrameHandler receives every captured frame with its region of interest and
// the sensitivity level it was detected at. The frame is reused by the next
// capture; handlers must Clone what they keep.
type FrameHandler interface {
	HandleFrame(frame gocv.Mat, region image.Rectangle, level int)
}

// Runner captures frames at a fixed interval and runs detection on each one.
type Runner struct {
	source      Source
	detector    Detector
	handler     FrameHandler
	interval    time.Duration
	sensitivity atomic.Int32
	logger      *logger.Logger
}

// NewRunner creates a Runner starting at the given sensitivity level.
func NewRunner(source Source, detector Detector, handler FrameHandler, interval time.Duration, sensitivity int, logger *logger.Logger) (*Runner, error) {
	r := &Runner{
		source:   source,
		detector: detector,
		handler:  handler,
		interval: interval,
		logger:   logger,
	}
	if err := r.SetSensitivity(sensitivity); err != nil {
		return nil, err
	}
	return r, nil
}

// Sensitivity returns the level used for the next frame.
func (r *Runner) Sensitivity() int {
	return int(r.sensitivity.Load())
}

// SetSensitivity changes the level used for subsequent frames.
func (r *Runner) SetSensitivity(level int) error {
	if _, err := roi.ThresholdsFor(level); err != nil {
		return err
	}
	r.sensitivity.Store(int32(level))
	return nil
}

// Run captures until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	frame := gocv.NewMat()
	defer frame.Close()

	r.logger.Info("Capture started - one frame every %v", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Capture stopped")
			return
		case <-ticker.C:
			r.step(&frame)
		}
	}
}

// step captures and processes a single frame. Failures are logged and the
// capture loop carries on with the next tick.
func (r *Runner) step(frame *gocv.Mat) {
	if err := r.source.Read(frame); err != nil {
		if !errors.Is(err, ErrNoFrame) {
			r.logger.Error("Error reading frame: %v", err)
		}
		return
	}

	level := r.Sensitivity()
	region, err := r.detector.Detect(*frame, level)
	if err != nil {
		r.logger.Error("Error detecting region of interest: %v", err)
		return
	}

	r.handler.HandleFrame(*frame, region, level)
}

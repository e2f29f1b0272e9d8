package capture

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrNoFrame means the source has no new frame yet. It is not a failure.
var ErrNoFrame = errors.New("no frame available")

// Source produces camera frames.
type Source interface {
	// Read stores the next frame in dst.
	Read(dst *gocv.Mat) error
	Close() error
}

// WebcamSource reads frames from a local capture device.
type WebcamSource struct {
	deviceID int
	webcam   *gocv.VideoCapture
}

// OpenWebcam opens the capture device with the given index.
func OpenWebcam(deviceID int) (*WebcamSource, error) {
	webcam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to open webcam %d: %w", deviceID, err)
	}
	return &WebcamSource{deviceID: deviceID, webcam: webcam}, nil
}

func (s *WebcamSource) Read(dst *gocv.Mat) error {
	if ok := s.webcam.Read(dst); !ok {
		return fmt.Errorf("cannot read webcam device: %d", s.deviceID)
	}
	if dst.Empty() {
		return ErrNoFrame
	}
	return nil
}

func (s *WebcamSource) Close() error {
	return s.webcam.Close()
}

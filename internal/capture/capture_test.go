package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net"
	"testing"
	"time"

	"brickscan/internal/logger"
	"brickscan/internal/roi"

	"gocv.io/x/gocv"
)

func TestFrameAssembler_SplitFrame(t *testing.T) {
	var a frameAssembler

	parts := [][]byte{
		{0xFF, 0xD8, 0x01, 0x02},
		{0x03, 0x04},
		{0x05, 0xFF, 0xD9},
	}

	for i, p := range parts[:2] {
		if _, ok := a.Write(p); ok {
			t.Fatalf("part %d: frame completed too early", i)
		}
	}
	frame, ok := a.Write(parts[2])
	if !ok {
		t.Fatal("Expected completed frame")
	}

	expected := []byte{0xFF, 0xD8, 0x01, 0x02, 0x03, 0x04, 0x05, 0xFF, 0xD9}
	if !bytes.Equal(frame, expected) {
		t.Errorf("Expected %x, got %x", expected, frame)
	}
}

func TestFrameAssembler_RestartsOnHeader(t *testing.T) {
	var a frameAssembler

	a.Write([]byte{0xFF, 0xD8, 0xAA})
	// lost tail, camera starts the next frame
	frame, ok := a.Write([]byte{0xFF, 0xD8, 0xBB, 0xFF, 0xD9})
	if !ok {
		t.Fatal("Expected completed frame")
	}
	if !bytes.Equal(frame, []byte{0xFF, 0xD8, 0xBB, 0xFF, 0xD9}) {
		t.Errorf("Expected only the second frame, got %x", frame)
	}
}

func TestFrameAssembler_IgnoresDataBeforeHeader(t *testing.T) {
	var a frameAssembler

	if _, ok := a.Write([]byte{0x10, 0xFF, 0xD9}); ok {
		t.Error("Tail without header must not produce a frame")
	}
}

type fakeSource struct {
	err   error
	reads int
}

func (s *fakeSource) Read(dst *gocv.Mat) error {
	s.reads++
	return s.err
}

func (s *fakeSource) Close() error { return nil }

type fakeDetector struct {
	region image.Rectangle
	err    error
	levels []int
}

func (d *fakeDetector) Detect(frame gocv.Mat, level int) (image.Rectangle, error) {
	d.levels = append(d.levels, level)
	return d.region, d.err
}

type recordingHandler struct {
	regions []image.Rectangle
	levels  []int
}

func (h *recordingHandler) HandleFrame(frame gocv.Mat, region image.Rectangle, level int) {
	h.regions = append(h.regions, region)
	h.levels = append(h.levels, level)
}

func TestRunner_StepPassesRegionToHandler(t *testing.T) {
	src := &fakeSource{}
	det := &fakeDetector{region: image.Rect(1, 2, 31, 32)}
	h := &recordingHandler{}

	r, err := NewRunner(src, det, h, time.Millisecond, 3, logger.Discard())
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	frame := gocv.NewMat()
	defer frame.Close()
	r.step(&frame)

	if len(h.regions) != 1 || h.regions[0] != det.region {
		t.Fatalf("Expected handler to receive %v, got %v", det.region, h.regions)
	}
	if len(det.levels) != 1 || det.levels[0] != 3 {
		t.Errorf("Expected detection at level 3, got %v", det.levels)
	}
	if h.levels[0] != 3 {
		t.Errorf("Expected handler to receive level 3, got %d", h.levels[0])
	}
}

func TestRunner_StepSkipsOnErrors(t *testing.T) {
	tests := []struct {
		name   string
		srcErr error
		detErr error
	}{
		{"no frame", ErrNoFrame, nil},
		{"read failure", errors.New("device unplugged"), nil},
		{"detect failure", nil, errors.New("corrupt frame")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &recordingHandler{}
			r, err := NewRunner(&fakeSource{err: tt.srcErr}, &fakeDetector{err: tt.detErr}, h, time.Millisecond, 0, logger.Discard())
			if err != nil {
				t.Fatalf("NewRunner failed: %v", err)
			}

			frame := gocv.NewMat()
			defer frame.Close()
			r.step(&frame)

			if len(h.regions) != 0 {
				t.Errorf("Expected handler not to be called, got %v", h.regions)
			}
		})
	}
}

func TestRunner_Sensitivity(t *testing.T) {
	r, err := NewRunner(&fakeSource{}, &fakeDetector{}, &recordingHandler{}, time.Millisecond, 5, logger.Discard())
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	if err := r.SetSensitivity(9); err != nil {
		t.Fatalf("SetSensitivity(9) failed: %v", err)
	}
	if r.Sensitivity() != 9 {
		t.Errorf("Expected sensitivity 9, got %d", r.Sensitivity())
	}

	if err := r.SetSensitivity(10); !errors.Is(err, roi.ErrInvalidSensitivity) {
		t.Errorf("Expected ErrInvalidSensitivity, got %v", err)
	}
	if r.Sensitivity() != 9 {
		t.Errorf("Invalid level must not change sensitivity, got %d", r.Sensitivity())
	}

	if _, err := NewRunner(&fakeSource{}, &fakeDetector{}, &recordingHandler{}, time.Millisecond, -1, logger.Discard()); err == nil {
		t.Error("Expected NewRunner to reject level -1")
	}
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	src := &fakeSource{err: ErrNoFrame}
	r, err := NewRunner(src, &fakeDetector{}, &recordingHandler{}, time.Millisecond, 5, logger.Discard())
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if src.reads == 0 {
		t.Error("Expected at least one read")
	}
}

func TestUDPSource_ReceivesFrame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, err := ListenUDP(ctx, 0, logger.Discard())
	if err != nil {
		t.Fatalf("ListenUDP failed: %v", err)
	}
	defer src.Close()

	frame := gocv.NewMat()
	defer frame.Close()
	if err := src.Read(&frame); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("Expected ErrNoFrame before any packet, got %v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 50, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("Failed to encode JPEG: %v", err)
	}

	port := src.Addr().(*net.UDPAddr).Port
	conn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		t.Fatalf("Failed to dial UDP: %v", err)
	}
	defer conn.Close()

	data := buf.Bytes()
	for start := 0; start < len(data); start += 1024 {
		end := start + 1024
		if end > len(data) {
			end = len(data)
		}
		if _, err := conn.Write(data[start:end]); err != nil {
			t.Fatalf("Failed to send datagram: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		err = src.Read(&frame)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrNoFrame) {
			t.Fatalf("Read failed: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for frame")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if frame.Cols() != 64 || frame.Rows() != 48 {
		t.Errorf("Expected 64x48 frame, got %dx%d", frame.Cols(), frame.Rows())
	}
	if err := src.Read(&frame); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Expected ErrNoFrame for an already consumed frame, got %v", err)
	}
}

package roi

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

var white = color.RGBA{R: 255, G: 255, B: 255, A: 0}

// newMask returns a zeroed single channel mask with the given filled rectangles.
func newMask(t *testing.T, w, h int, rects ...image.Rectangle) gocv.Mat {
	t.Helper()

	mask := gocv.Zeros(h, w, gocv.MatTypeCV8U)
	for _, r := range rects {
		if err := gocv.Rectangle(&mask, r, white, -1); err != nil {
			mask.Close()
			t.Fatalf("Failed to draw rectangle: %v", err)
		}
	}
	return mask
}

// newFrame returns a black BGR frame with white filled rectangles.
func newFrame(t *testing.T, w, h int, rects ...image.Rectangle) gocv.Mat {
	t.Helper()

	frame := gocv.Zeros(h, w, gocv.MatTypeCV8UC3)
	for _, r := range rects {
		if err := gocv.Rectangle(&frame, r, white, -1); err != nil {
			frame.Close()
			t.Fatalf("Failed to draw rectangle: %v", err)
		}
	}
	return frame
}

func TestExtractBlobs_SkipsBackground(t *testing.T) {
	mask := newMask(t, 200, 200, image.Rect(10, 10, 60, 60), image.Rect(100, 120, 150, 190))
	defer mask.Close()

	blobs := ExtractBlobs(mask)
	if len(blobs) != 2 {
		t.Fatalf("Expected 2 blobs, got %d", len(blobs))
	}

	for _, b := range blobs {
		if b.Label == 0 {
			t.Error("Background label must not be returned")
		}
	}
	if blobs[0].Bounds != image.Rect(10, 10, 60, 60) {
		t.Errorf("Expected first blob bounds (10,10)-(60,60), got %v", blobs[0].Bounds)
	}
	if blobs[0].Area != 2500 {
		t.Errorf("Expected first blob area 2500, got %d", blobs[0].Area)
	}
}

func TestExtractBlobs_EmptyMask(t *testing.T) {
	mask := newMask(t, 100, 100)
	defer mask.Close()

	if blobs := ExtractBlobs(mask); len(blobs) != 0 {
		t.Errorf("Expected no blobs, got %d", len(blobs))
	}
}

func TestComponentMerger_SmallBlobRejected(t *testing.T) {
	mask := newMask(t, 200, 200, image.Rect(50, 50, 70, 70))
	defer mask.Close()

	m := ComponentMerger{MinBlobSize: DefaultMinBlobSize, MergeSpacing: DefaultMergeSpacing}
	if got := m.Merge(mask); !got.Empty() {
		t.Errorf("Expected empty rectangle, got %v", got)
	}
}

func TestComponentMerger_NearbyBlobsUnion(t *testing.T) {
	big := image.Rect(20, 20, 100, 100)
	small := image.Rect(110, 30, 130, 50)
	mask := newMask(t, 200, 200, big, small)
	defer mask.Close()

	m := ComponentMerger{MinBlobSize: DefaultMinBlobSize, MergeSpacing: DefaultMergeSpacing}
	if got, expected := m.Merge(mask), big.Union(small); got != expected {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestComponentMerger_DistantBlobIgnored(t *testing.T) {
	big := image.Rect(20, 20, 100, 100)
	far := image.Rect(150, 30, 170, 50)
	mask := newMask(t, 200, 200, big, far)
	defer mask.Close()

	m := ComponentMerger{MinBlobSize: DefaultMinBlobSize, MergeSpacing: DefaultMergeSpacing}
	if got := m.Merge(mask); got != big {
		t.Errorf("Expected %v, got %v", big, got)
	}
}

func TestDetector_EmptyFrame(t *testing.T) {
	d := NewDetector(DefaultOptions())

	frame := gocv.NewMat()
	defer frame.Close()

	for _, level := range []int{0, 5, 9, -1, 42} {
		got, err := d.Detect(frame, level)
		if err != nil {
			t.Errorf("Detect(empty, %d) returned error: %v", level, err)
		}
		if !got.Empty() {
			t.Errorf("Detect(empty, %d) = %v, expected empty", level, got)
		}
	}
}

func TestDetector_InvalidSensitivity(t *testing.T) {
	d := NewDetector(DefaultOptions())

	frame := newFrame(t, 200, 200, image.Rect(50, 50, 150, 150))
	defer frame.Close()

	_, err := d.Detect(frame, MaxSensitivity+1)
	if !errors.Is(err, ErrInvalidSensitivity) {
		t.Errorf("Expected ErrInvalidSensitivity, got %v", err)
	}
}

func TestEdgePreprocessor_ErrorLeavesNothingToClose(t *testing.T) {
	var p EdgePreprocessor

	frame := newFrame(t, 64, 64, image.Rect(10, 10, 40, 40))
	defer frame.Close()
	twoChannel := gocv.NewMatWithSize(64, 64, gocv.MatTypeCV8UC2)
	defer twoChannel.Close()

	tests := []struct {
		name  string
		frame gocv.Mat
		level int
	}{
		{"invalid level", frame, MaxSensitivity + 1},
		{"unsupported channels", twoChannel, DefaultSensitivity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask, err := p.Preprocess(tt.frame, tt.level)
			if err == nil {
				mask.Close()
				t.Fatal("Expected error")
			}
			if mask.Ptr() != nil {
				mask.Close()
				t.Error("Expected zero Mat on error")
			}
		})
	}
}

func TestEdgePreprocessor_GrayscaleFrame(t *testing.T) {
	var p EdgePreprocessor

	gray := newMask(t, 64, 64, image.Rect(10, 10, 40, 40))
	defer gray.Close()

	mask, err := p.Preprocess(gray, DefaultSensitivity)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	defer mask.Close()
	if mask.Rows() != 64 || mask.Cols() != 64 || mask.Channels() != 1 {
		t.Errorf("Unexpected mask %dx%d with %d channels", mask.Cols(), mask.Rows(), mask.Channels())
	}
}

func TestDetector_BlankFrame(t *testing.T) {
	d := NewDetector(DefaultOptions())

	frame := newFrame(t, 320, 240)
	defer frame.Close()

	got, err := d.Detect(frame, DefaultSensitivity)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if !got.Empty() {
		t.Errorf("Expected empty rectangle for blank frame, got %v", got)
	}
}

func TestDetector_FindsPart(t *testing.T) {
	d := NewDetector(DefaultOptions())

	part := image.Rect(100, 80, 160, 180)
	frame := newFrame(t, 320, 240, part)
	defer frame.Close()

	got, err := d.Detect(frame, DefaultSensitivity)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if got.Empty() {
		t.Fatal("Expected a region, got empty rectangle")
	}
	if !got.In(image.Rect(0, 0, 320, 240)) {
		t.Errorf("Region %v outside frame", got)
	}

	center := image.Pt((part.Min.X+part.Max.X)/2, (part.Min.Y+part.Max.Y)/2)
	if !center.In(got) {
		t.Errorf("Region %v does not contain part center %v", got, center)
	}
	if diff := got.Dx() - got.Dy(); diff < -1 || diff > 1 {
		t.Errorf("Expected square region, got %dx%d", got.Dx(), got.Dy())
	}
	if got.Dy() < part.Dy() {
		t.Errorf("Region height %d smaller than part height %d", got.Dy(), part.Dy())
	}
}

func TestDetector_Idempotent(t *testing.T) {
	d := NewDetector(DefaultOptions())

	frame := newFrame(t, 320, 240, image.Rect(40, 40, 120, 100), image.Rect(130, 50, 150, 70))
	defer frame.Close()

	for level := MinSensitivity; level <= MaxSensitivity; level++ {
		first, err := d.Detect(frame, level)
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		second, err := d.Detect(frame, level)
		if err != nil {
			t.Fatalf("Detect failed: %v", err)
		}
		if first != second {
			t.Errorf("level %d: Detect not repeatable: %v != %v", level, first, second)
		}
	}
}

func TestDetector_DetectBytes(t *testing.T) {
	d := NewDetector(DefaultOptions())

	frame := newFrame(t, 320, 240, image.Rect(100, 80, 160, 180))
	defer frame.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, frame)
	if err != nil {
		t.Fatalf("Failed to encode frame: %v", err)
	}
	defer buf.Close()

	fromBytes, err := d.DetectBytes(buf.GetBytes(), DefaultSensitivity)
	if err != nil {
		t.Fatalf("DetectBytes failed: %v", err)
	}
	fromMat, err := d.Detect(frame, DefaultSensitivity)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if fromBytes != fromMat {
		t.Errorf("DetectBytes = %v, Detect = %v", fromBytes, fromMat)
	}

	if got, err := d.DetectBytes(nil, DefaultSensitivity); err != nil || !got.Empty() {
		t.Errorf("DetectBytes(nil) = %v, %v; expected empty, nil", got, err)
	}
	if _, err := d.DetectBytes([]byte("not an image"), DefaultSensitivity); !errors.Is(err, ErrUndecodable) {
		t.Errorf("Expected ErrUndecodable, got %v", err)
	}
}

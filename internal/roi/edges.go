package roi

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

const (
	blurKernelSize  = 5
	closeKernelSize = 5
	closeIterations = 2
)

// EdgePreprocessor turns a camera frame into a closed binary edge mask.
type EdgePreprocessor struct{}

// Preprocess converts frame to grayscale, blurs it, runs Canny with the
// thresholds for level and closes small gaps between edge fragments.
// An empty frame yields an empty mask and no error. The caller must Close
// the returned Mat unless err is non-nil, in which case it is the zero Mat.
func (EdgePreprocessor) Preprocess(frame gocv.Mat, level int) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.NewMat(), nil
	}

	thresholds, err := ThresholdsFor(level)
	if err != nil {
		return gocv.Mat{}, err
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if err := toGray(frame, &gray); err != nil {
		return gocv.Mat{}, err
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	err = gocv.GaussianBlur(gray, &blurred, image.Pt(blurKernelSize, blurKernelSize), 0, 0, gocv.BorderDefault)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to blur frame: %w", err)
	}

	edges := gocv.NewMat()
	defer edges.Close()
	if err := gocv.Canny(blurred, &edges, thresholds.Low, thresholds.High); err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to detect edges: %w", err)
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(closeKernelSize, closeKernelSize))
	defer kernel.Close()

	closed := gocv.NewMat()
	err = gocv.MorphologyExWithParams(edges, &closed, gocv.MorphClose, kernel, closeIterations, gocv.BorderConstant)
	if err != nil {
		closed.Close()
		return gocv.Mat{}, fmt.Errorf("failed to close edge mask: %w", err)
	}

	return closed, nil
}

// toGray writes a single channel copy of src into dst.
func toGray(src gocv.Mat, dst *gocv.Mat) error {
	var err error
	switch src.Channels() {
	case 1:
		err = src.CopyTo(dst)
	case 3:
		err = gocv.CvtColor(src, dst, gocv.ColorBGRToGray)
	case 4:
		err = gocv.CvtColor(src, dst, gocv.ColorBGRAToGray)
	default:
		return fmt.Errorf("unsupported channel count: %d", src.Channels())
	}
	if err != nil {
		return fmt.Errorf("failed to convert frame to grayscale: %w", err)
	}
	return nil
}

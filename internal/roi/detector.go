// Package roi locates the LEGO part in a camera frame.
package roi

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Options tunes the blob merge step.
type Options struct {
	MinBlobSize  int
	MergeSpacing int
}

// DefaultOptions returns the stock merge parameters.
func DefaultOptions() Options {
	return Options{
		MinBlobSize:  DefaultMinBlobSize,
		MergeSpacing: DefaultMergeSpacing,
	}
}

// Detector finds the square region of a frame that holds the part in view.
// It keeps no state between calls and is safe for concurrent use.
type Detector struct {
	edges  EdgePreprocessor
	merger ComponentMerger
}

// NewDetector creates a Detector. Zero option fields fall back to the defaults.
func NewDetector(opts Options) *Detector {
	if opts.MinBlobSize <= 0 {
		opts.MinBlobSize = DefaultMinBlobSize
	}
	if opts.MergeSpacing <= 0 {
		opts.MergeSpacing = DefaultMergeSpacing
	}
	return &Detector{
		merger: ComponentMerger{
			MinBlobSize:  opts.MinBlobSize,
			MergeSpacing: opts.MergeSpacing,
		},
	}
}

// Detect returns the region of interest in frame coordinates, or an empty
// rectangle when nothing usable is in view. Errors are reserved for an
// out-of-range level and failures of the image library.
func (d *Detector) Detect(frame gocv.Mat, level int) (image.Rectangle, error) {
	if frame.Empty() {
		return image.Rectangle{}, nil
	}

	mask, err := d.edges.Preprocess(frame, level)
	if err != nil {
		return image.Rectangle{}, err
	}
	defer mask.Close()

	merged := d.merger.Merge(mask)
	if merged.Empty() {
		return image.Rectangle{}, nil
	}
	return Normalize(merged, frame.Cols(), frame.Rows()), nil
}

// ErrUndecodable is returned by DetectBytes for payloads that are not an image.
var ErrUndecodable = errors.New("failed to decode image")

// DetectBytes decodes an encoded image (JPEG, PNG, ...) and runs Detect on it.
func (d *Detector) DetectBytes(data []byte, level int) (image.Rectangle, error) {
	if len(data) == 0 {
		return image.Rectangle{}, nil
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	defer mat.Close()

	if mat.Empty() {
		return image.Rectangle{}, fmt.Errorf("%w: no pixel data", ErrUndecodable)
	}

	return d.Detect(mat, level)
}

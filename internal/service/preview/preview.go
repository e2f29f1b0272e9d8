package preview

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var boxColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}

const boxThickness = 2

// Annotate draws region onto a copy of frame and returns it JPEG encoded.
// An empty region leaves the frame unmarked.
func Annotate(frame gocv.Mat, region image.Rectangle) ([]byte, error) {
	if frame.Empty() {
		return nil, errors.New("empty frame")
	}

	mat := frame.Clone()
	defer mat.Close()

	if !region.Empty() {
		if err := gocv.Rectangle(&mat, region, boxColor, boxThickness); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %w", err)
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

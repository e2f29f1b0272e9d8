package crop

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/disintegration/imaging"
)

const jpegQuality = 90

// Square cuts region out of img and scales it to size x size. The region is
// normally square already; anything else is center-cropped to fill.
func Square(img image.Image, region image.Rectangle, size int) (image.Image, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid crop size: %d", size)
	}
	if region.Empty() {
		return nil, errors.New("empty crop region")
	}

	bounds := img.Bounds()
	if !region.In(bounds) {
		return nil, fmt.Errorf("crop region %v outside image bounds %v", region, bounds)
	}

	cropped := imaging.Crop(img, region)
	return imaging.Fill(cropped, size, size, imaging.Center, imaging.Lanczos), nil
}

// EncodeJPEG encodes img for storage and upload.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode crop: %w", err)
	}
	return buf.Bytes(), nil
}

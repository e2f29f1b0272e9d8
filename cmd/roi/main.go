package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"brickscan/internal/crop"
	"brickscan/internal/roi"
	"brickscan/internal/service/preview"

	"gocv.io/x/gocv"
)

func main() {
	sensitivity := flag.Int("sensitivity", roi.DefaultSensitivity, "Edge sensitivity level (0-9)")
	minBlob := flag.Int("min-blob", roi.DefaultMinBlobSize, "Smallest blob side in pixels that counts as a part")
	spacing := flag.Int("spacing", roi.DefaultMergeSpacing, "Largest gap in pixels bridged when merging blobs")
	annotateDir := flag.String("annotate", "", "Write a copy of each image with the region drawn in to this directory")
	cropDir := flag.String("crop", "", "Write the square crop of each region to this directory")
	cropSize := flag.Int("size", 224, "Side length of written crops")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] image...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if !roi.ValidSensitivity(*sensitivity) {
		fmt.Fprintf(os.Stderr, "%v: %d\n", roi.ErrInvalidSensitivity, *sensitivity)
		os.Exit(2)
	}

	for _, dir := range []string{*annotateDir, *cropDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", dir, err)
			os.Exit(1)
		}
	}

	detector := roi.NewDetector(roi.Options{MinBlobSize: *minBlob, MergeSpacing: *spacing})

	failed := 0
	for _, path := range flag.Args() {
		if err := process(detector, path, *sensitivity, *annotateDir, *cropDir, *cropSize); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func process(detector *roi.Detector, path string, level int, annotateDir, cropDir string, size int) error {
	frame := gocv.IMRead(path, gocv.IMReadColor)
	if frame.Empty() {
		frame.Close()
		return errors.New("cannot read image")
	}
	defer frame.Close()

	region, err := detector.Detect(frame, level)
	if err != nil {
		return err
	}

	if region.Empty() {
		fmt.Printf("%s\tempty\n", path)
	} else {
		fmt.Printf("%s\t%d,%d %dx%d\n", path, region.Min.X, region.Min.Y, region.Dx(), region.Dy())
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".jpg"

	if annotateDir != "" {
		data, err := preview.Annotate(frame, region)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(annotateDir, name), data, 0644); err != nil {
			return err
		}
	}

	if cropDir != "" && !region.Empty() {
		if err := writeCrop(frame, region, filepath.Join(cropDir, name), size); err != nil {
			return err
		}
	}
	return nil
}

func writeCrop(frame gocv.Mat, region image.Rectangle, path string, size int) error {
	img, err := frame.ToImage()
	if err != nil {
		return fmt.Errorf("failed to convert frame: %w", err)
	}
	square, err := crop.Square(img, region, size)
	if err != nil {
		return err
	}
	data, err := crop.EncodeJPEG(square)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

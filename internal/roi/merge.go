package roi

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

const (
	// DefaultMinBlobSize is the smallest width and height a primary blob may have.
	DefaultMinBlobSize = 30
	// DefaultMergeSpacing is the largest gap, per axis, across which blobs are merged.
	DefaultMergeSpacing = 20
)

// Column layout of the stats Mat produced by ConnectedComponentsWithStats.
const (
	statLeft = iota
	statTop
	statWidth
	statHeight
	statArea
)

// Blob is one connected foreground region of an edge mask.
type Blob struct {
	Label  int
	Bounds image.Rectangle
	Area   int
}

// ComponentMerger reduces an edge mask to the bounding box of its primary object.
type ComponentMerger struct {
	MinBlobSize  int
	MergeSpacing int
}

// Merge labels the mask and merges its blobs, see MergeBlobs.
func (m ComponentMerger) Merge(mask gocv.Mat) image.Rectangle {
	return MergeBlobs(ExtractBlobs(mask), m.MinBlobSize, m.MergeSpacing)
}

// ExtractBlobs returns the foreground components of mask in label order.
// Label 0 is the background and is never returned.
func ExtractBlobs(mask gocv.Mat) []Blob {
	if mask.Empty() {
		return nil
	}

	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	n := gocv.ConnectedComponentsWithStats(mask, &labels, &stats, &centroids)
	if n < 2 {
		return nil
	}

	blobs := make([]Blob, 0, n-1)
	for label := 1; label < n; label++ {
		x := int(stats.GetIntAt(label, statLeft))
		y := int(stats.GetIntAt(label, statTop))
		w := int(stats.GetIntAt(label, statWidth))
		h := int(stats.GetIntAt(label, statHeight))
		blobs = append(blobs, Blob{
			Label:  label,
			Bounds: image.Rect(x, y, x+w, y+h),
			Area:   int(stats.GetIntAt(label, statArea)),
		})
	}
	return blobs
}

// MergeBlobs picks the blob with the largest area and grows its bounding box
// by every other blob lying closer than spacing on both axes. Blobs are
// visited once, in slice order, and each is compared against the box as
// grown so far. An empty rectangle is returned when there are no blobs or
// the primary blob is narrower or shorter than minSize.
func MergeBlobs(blobs []Blob, minSize, spacing int) image.Rectangle {
	if len(blobs) == 0 {
		return image.Rectangle{}
	}

	primary := 0
	for i, b := range blobs {
		if b.Area > blobs[primary].Area {
			primary = i
		}
	}

	merged := blobs[primary].Bounds
	if merged.Dx() < minSize || merged.Dy() < minSize {
		return image.Rectangle{}
	}

	for i, b := range blobs {
		if i == primary {
			continue
		}
		gapX, gapY := gap(merged, b.Bounds)
		if gapX < float64(spacing) && gapY < float64(spacing) {
			merged = merged.Union(b.Bounds)
		}
	}
	return merged
}

// gap returns the distance between the edges of a and b along each axis.
// Overlapping or touching boxes give a value <= 0.
func gap(a, b image.Rectangle) (float64, float64) {
	ax, ay := center(a)
	bx, by := center(b)
	gapX := math.Abs(ax-bx) - float64(a.Dx()+b.Dx())/2
	gapY := math.Abs(ay-by) - float64(a.Dy()+b.Dy())/2
	return gapX, gapY
}

func center(r image.Rectangle) (float64, float64) {
	return float64(r.Min.X) + float64(r.Dx())/2, float64(r.Min.Y) + float64(r.Dy())/2
}

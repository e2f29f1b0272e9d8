package dto

import "image"

// Region is the JSON form of a detected region of interest.
type Region struct {
	X      int  `json:"x"`
	Y      int  `json:"y"`
	Width  int  `json:"width"`
	Height int  `json:"height"`
	Empty  bool `json:"empty"`
}

// NewRegion converts a rectangle to its JSON form.
func NewRegion(r image.Rectangle) Region {
	if r.Empty() {
		return Region{Empty: true}
	}
	return Region{
		X:      r.Min.X,
		Y:      r.Min.Y,
		Width:  r.Dx(),
		Height: r.Dy(),
	}
}

// Rect converts the region back to a rectangle.
func (r Region) Rect() image.Rectangle {
	if r.Empty {
		return image.Rectangle{}
	}
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

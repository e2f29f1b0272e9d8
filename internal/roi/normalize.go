package roi

import "image"

// Normalize grows r into a square around its own center and clips it to a
// frame of the given size. Clipping can leave a non-square result when the
// object sits at the frame border.
func Normalize(r image.Rectangle, frameWidth, frameHeight int) image.Rectangle {
	if r.Empty() {
		return image.Rectangle{}
	}

	w, h := r.Dx(), r.Dy()
	switch {
	case w > h:
		diff := w - h
		r.Min.Y -= diff / 2
		r.Max.Y = r.Min.Y + w
	case h > w:
		diff := h - w
		r.Min.X -= diff / 2
		r.Max.X = r.Min.X + h
	}

	return r.Intersect(image.Rect(0, 0, frameWidth, frameHeight))
}

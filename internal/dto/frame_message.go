package dto

// FrameMessage is broadcast to live preview viewers.
type FrameMessage struct {
	Region      Region `json:"roi"`
	Sensitivity int    `json:"sensitivity"`
	Image       string `json:"image"` // base64 JPEG with the region drawn in
}

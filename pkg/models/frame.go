package models

// Picture types reported by the probe for a video frame
const (
	PictTypeI       = "I"
	PictTypeP       = "P"
	PictTypeB       = "B"
	PictTypeUnknown = "?"
)

// Frame represents a single decoded video frame as described by the probe
type Frame struct {
	FrameNumber int     // Position in decode order, starting at 0
	PictType    string  // "I", "P", "B" or "?"
	PTSTime     float64 // Presentation timestamp in seconds
	ByteSize    int64   // Packet size in bytes
	IsKeyframe  bool    // true only when the probe flagged key_frame=1
}

// KeyframeEntry maps a keyframe timestamp to its frame number
type KeyframeEntry struct {
	PTSTime     float64 `json:"pts_time"`
	FrameNumber int     `json:"frame_number"`
}

// Dimensions holds the coded size of a video stream
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Known reports whether both width and height are usable
func (d *Dimensions) Known() bool {
	return d != nil && d.Width > 0 && d.Height > 0
}

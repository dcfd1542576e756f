package models

// AnalyzeRequest carries pre-extracted frame records for a direct analysis
type AnalyzeRequest struct {
	MediaID     string `json:"media_id"`
	StreamIndex int    `json:"stream_index"`
	Frames      any    `json:"frames"` // ffprobe frame records, or an object holding them
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

// Dimensions returns the request dimensions, or nil when they were not given
func (r *AnalyzeRequest) Dimensions() *Dimensions {
	d := &Dimensions{Width: r.Width, Height: r.Height}
	if !d.Known() {
		return nil
	}
	return d
}

// MediaInfo represents media metadata returned by the API
type MediaInfo struct {
	ID              string  `json:"id"`
	Filename        string  `json:"filename"`
	Size            int64   `json:"size"`
	State           string  `json:"state"`
	UploadedAt      string  `json:"uploadedAt"`
	LastError       string  `json:"lastError,omitempty"`
	Analyses        uint64  `json:"analyses"`
	LastAnalyzedAt  string  `json:"lastAnalyzedAt,omitempty"`
	LastGOPCount    int     `json:"lastGopCount,omitempty"`
	LastSeekability float64 `json:"lastSeekability,omitempty"`
}

// MediaListResponse represents a list of uploaded media
type MediaListResponse struct {
	Media []MediaInfo `json:"media"`
	Total int         `json:"total"`
}

// KeyframesResponse is the keyframe index of one stream
type KeyframesResponse struct {
	MediaID     string          `json:"media_id"`
	StreamIndex int             `json:"stream_index"`
	Keyframes   []KeyframeEntry `json:"keyframes"`
}

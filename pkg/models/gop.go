package models

// GOP represents one group of pictures, from a keyframe run up to the next one
type GOP struct {
	Index            int      `json:"index"`
	StartFrame       int      `json:"start_frame"`
	EndFrame         int      `json:"end_frame"`
	StartPTSSec      float64  `json:"start_pts_sec"`
	EndPTSSec        float64  `json:"end_pts_sec"`
	DurationSec      float64  `json:"duration_sec"`
	FrameCount       int      `json:"frame_count"`
	Structure        []string `json:"structure"`         // pict_type per member frame
	TotalBytes       int64    `json:"total_bytes"`
	IFrameBytes      int64    `json:"i_frame_bytes"`     // size of the first frame
	CompressionRatio *float64 `json:"compression_ratio"` // nil when dimensions are unknown or TotalBytes is 0
}

// FrameTypeCounts tallies I, P and B frames
type FrameTypeCounts struct {
	I int `json:"i"`
	P int `json:"p"`
	B int `json:"b"`
}

// AggregateStats summarizes every GOP of one analysis run
type AggregateStats struct {
	TotalGOPs           int     `json:"total_gops"`
	AvgGOPSize          float64 `json:"avg_gop_size"`
	GOPSizeVariance     float64 `json:"gop_size_variance"` // population variance
	MinGOPSize          int     `json:"min_gop_size"`
	MaxGOPSize          int     `json:"max_gop_size"`
	AvgGOPDurationSec   float64 `json:"avg_gop_duration_sec"`
	KeyframeIntervalSec float64 `json:"keyframe_interval_sec"`
	IFrameRatio         float64 `json:"i_frame_ratio"` // percent of all frames
	PFrameRatio         float64 `json:"p_frame_ratio"`
	BFrameRatio         float64 `json:"b_frame_ratio"`
	SeekabilityScore    float64 `json:"seekability_score"` // 0-100
}

// GOPAnalysis is the complete result of analyzing one video stream
type GOPAnalysis struct {
	MediaID             string          `json:"media_id"`
	StreamIndex         int             `json:"stream_index"`
	TotalFrames         int             `json:"total_frames"`
	LeadingNonKeyframes int             `json:"leading_non_keyframes"` // frames before the first keyframe
	GOPs                []GOP           `json:"gops"`
	Keyframes           []KeyframeEntry `json:"keyframes"`
	Stats               AggregateStats  `json:"stats"`
}

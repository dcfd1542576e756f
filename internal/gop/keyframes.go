package gop

import "gopscope/pkg/models"

// KeyframeIndex lists the timestamp and frame number of every keyframe, in
// stream order.
func KeyframeIndex(frames []models.Frame) []models.KeyframeEntry {
	index := make([]models.KeyframeEntry, 0)
	for _, f := range frames {
		if f.IsKeyframe {
			index = append(index, models.KeyframeEntry{
				PTSTime:     f.PTSTime,
				FrameNumber: f.FrameNumber,
			})
		}
	}
	return index
}

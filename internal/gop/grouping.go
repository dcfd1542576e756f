package gop

import "gopscope/pkg/models"

type groupState int

const (
	// stateIdle holds frames seen before the first keyframe.
	stateIdle groupState = iota
	// stateAccumulating extends the current GOP until the next keyframe run.
	stateAccumulating
)

// Group partitions frames into GOPs. A GOP starts at every run of
// consecutive keyframes, so back-to-back keyframes share one GOP.
//
// Frames ahead of the first keyframe are not emitted on their own: they stay
// pending and become the front of the first GOP. A stream without any
// keyframe yields a single GOP holding every frame. Either way the GOPs cover
// every input frame exactly once.
func Group(frames []models.Frame, dims *models.Dimensions) []models.GOP {
	gops := make([]models.GOP, 0)

	state := stateIdle
	start := 0
	for i, f := range frames {
		switch state {
		case stateIdle:
			if f.IsKeyframe {
				state = stateAccumulating
			}
		case stateAccumulating:
			if f.IsKeyframe && !frames[i-1].IsKeyframe {
				gops = append(gops, BuildGOP(len(gops), frames[start:i], dims))
				start = i
			}
		}
	}

	if start < len(frames) {
		gops = append(gops, BuildGOP(len(gops), frames[start:], dims))
	}
	return gops
}

// LeadingNonKeyframes counts frames that precede the first keyframe.
func LeadingNonKeyframes(frames []models.Frame) int {
	for i, f := range frames {
		if f.IsKeyframe {
			return i
		}
	}
	return len(frames)
}

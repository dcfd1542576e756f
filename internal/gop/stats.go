package gop

import (
	"math"

	"gopscope/pkg/models"
)

// Seekability penalties. Each one is capped at maxPenalty, so the score
// stays within [0, 100].
const (
	seekGOPSizeScale  = 120.0
	seekVarianceScale = 100.0
	maxPenalty        = 50.0
)

// Aggregate reduces the GOP list to one summary. Frame-type ratios are
// percentages of totalFrames. An empty list gives all-zero stats.
func Aggregate(gops []models.GOP, totalFrames int) models.AggregateStats {
	if len(gops) == 0 {
		return models.AggregateStats{}
	}

	n := float64(len(gops))
	var (
		sizeSum     float64
		durationSum float64
		counts      models.FrameTypeCounts
	)
	minSize, maxSize := gops[0].FrameCount, gops[0].FrameCount
	for _, g := range gops {
		sizeSum += float64(g.FrameCount)
		durationSum += g.DurationSec
		if g.FrameCount < minSize {
			minSize = g.FrameCount
		}
		if g.FrameCount > maxSize {
			maxSize = g.FrameCount
		}
		c := CountFrameTypes(g.Structure)
		counts.I += c.I
		counts.P += c.P
		counts.B += c.B
	}

	avgSize := sizeSum / n
	variance := sizeVariance(gops, avgSize)
	avgDuration := durationSum / n

	return models.AggregateStats{
		TotalGOPs:           len(gops),
		AvgGOPSize:          avgSize,
		GOPSizeVariance:     variance,
		MinGOPSize:          minSize,
		MaxGOPSize:          maxSize,
		AvgGOPDurationSec:   avgDuration,
		KeyframeIntervalSec: avgDuration,
		IFrameRatio:         percentOf(counts.I, totalFrames),
		PFrameRatio:         percentOf(counts.P, totalFrames),
		BFrameRatio:         percentOf(counts.B, totalFrames),
		SeekabilityScore:    SeekabilityScore(avgSize, variance),
	}
}

// sizeVariance is the population variance of GOP frame counts.
func sizeVariance(gops []models.GOP, mean float64) float64 {
	if len(gops) < 2 {
		return 0
	}
	var sum float64
	for _, g := range gops {
		d := float64(g.FrameCount) - mean
		sum += d * d
	}
	return sum / float64(len(gops))
}

func percentOf(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) * 100 / float64(total)
}

// SeekabilityScore rates random-access precision from 0 to 100. Large GOPs
// and uneven GOP sizes each cost up to 50 points.
func SeekabilityScore(avgGOPSize, variance float64) float64 {
	sizePenalty := math.Min(avgGOPSize/seekGOPSizeScale*maxPenalty, maxPenalty)
	variancePenalty := math.Min(variance/seekVarianceScale*maxPenalty, maxPenalty)
	return math.Max(0, 100-sizePenalty-variancePenalty)
}

// Package gop derives group-of-pictures structure from probed frame
// metadata: GOP boundaries, per-GOP byte metrics, aggregate statistics and a
// keyframe index. Everything here is a pure function of its input and safe to
// call from concurrent goroutines.
package gop

import (
	"github.com/hashicorp/go-multierror"

	"gopscope/pkg/models"
)

// Analyze runs the full pipeline over a decoded frame sequence. dims may be
// nil, in which case no GOP carries a compression ratio.
func Analyze(mediaID string, streamIndex int, frames []models.Frame, dims *models.Dimensions) (*models.GOPAnalysis, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}

	gops := Group(frames, dims)

	return &models.GOPAnalysis{
		MediaID:             mediaID,
		StreamIndex:         streamIndex,
		TotalFrames:         len(frames),
		LeadingNonKeyframes: LeadingNonKeyframes(frames),
		GOPs:                gops,
		Keyframes:           KeyframeIndex(frames),
		Stats:               Aggregate(gops, len(frames)),
	}, nil
}

// AnalyzePayload decodes raw probe records and analyzes them. warnings lists
// frame fields that were defaulted; it is informational only.
func AnalyzePayload(mediaID string, streamIndex int, payload any, dims *models.Dimensions) (*models.GOPAnalysis, *multierror.Error, error) {
	frames, warnings, err := DecodeFrames(payload)
	if err != nil {
		return nil, nil, err
	}
	result, err := Analyze(mediaID, streamIndex, frames, dims)
	if err != nil {
		return nil, nil, err
	}
	return result, warnings, nil
}

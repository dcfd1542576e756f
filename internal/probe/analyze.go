package probe

import (
	"context"

	log "github.com/sirupsen/logrus"

	"gopscope/internal/gop"
	"gopscope/pkg/models"
)

// Analyze probes input and runs the GOP analysis on the selected stream.
// Probe failures are returned as-is; analysis failures are gop.ErrInvalidInput
// or gop.ErrNoFrames.
func (r *Runner) Analyze(ctx context.Context, mediaID, input string, streamIndex int) (*models.GOPAnalysis, error) {
	res, err := r.Probe(ctx, input, streamIndex)
	if err != nil {
		return nil, err
	}

	frames, warnings, err := gop.ParseFrames(res.FramesJSON)
	if err != nil {
		return nil, err
	}
	if warnings != nil {
		log.WithFields(log.Fields{
			"media":     mediaID,
			"stream":    res.StreamIndex,
			"defaulted": len(warnings.Errors),
		}).Warn("some frame fields were unusable and fell back to defaults")
		log.Debug(warnings.Error())
	}

	return gop.Analyze(mediaID, res.StreamIndex, frames, res.Dimensions)
}

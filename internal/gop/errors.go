package gop

import "github.com/pkg/errors"

// The only two failures that escape an analysis. Field-level problems in
// individual frame records are absorbed by the decoder.
var (
	// ErrInvalidInput means the payload could not be read as a frame array.
	ErrInvalidInput = errors.New("invalid input: frame array not found")

	// ErrNoFrames means the frame array was present but empty.
	ErrNoFrames = errors.New("no frames to analyze")
)

package probe

import (
	"github.com/goccy/go-json"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"gopscope/pkg/models"
)

// Stream is the subset of an ffprobe -show_streams entry needed to pick a
// video stream and size it.
type Stream struct {
	Index        int            `mapstructure:"index"`
	CodecName    string         `mapstructure:"codec_name"`
	CodecType    string         `mapstructure:"codec_type"`
	Profile      string         `mapstructure:"profile"`
	PixFmt       string         `mapstructure:"pix_fmt"`
	Width        int            `mapstructure:"width"`
	Height       int            `mapstructure:"height"`
	AvgFrameRate string         `mapstructure:"avg_frame_rate"`
	Disposition  map[string]int `mapstructure:"disposition"`
}

// IsVideo reports whether the stream is real video rather than cover art.
func (s Stream) IsVideo() bool {
	return s.CodecType == "video" && s.Disposition["attached_pic"] != 1
}

// ParseStreams decodes ffprobe -show_streams JSON. Fields are decoded
// weakly, so "1920" and 1920 are both accepted for numeric keys.
func ParseStreams(data []byte) ([]Stream, error) {
	var raw struct {
		Streams []map[string]any `json:"streams"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse ffprobe streams JSON")
	}

	streams := make([]Stream, 0, len(raw.Streams))
	for i, entry := range raw.Streams {
		var s Stream
		if err := mapstructure.WeakDecode(entry, &s); err != nil {
			return nil, errors.Wrapf(err, "decode stream %d", i)
		}
		streams = append(streams, s)
	}
	return streams, nil
}

// PrimaryVideoIndex returns the index of the first video stream that is not
// an attached picture.
func PrimaryVideoIndex(streams []Stream) (int, bool) {
	for _, s := range streams {
		if s.IsVideo() {
			return s.Index, true
		}
	}
	return 0, false
}

func isVideoStream(streams []Stream, index int) bool {
	for _, s := range streams {
		if s.Index == index {
			return s.IsVideo()
		}
	}
	return false
}

// Dimensions looks up the coded size of the stream with the given index. It
// returns nil when the stream is missing or its size is unknown.
func Dimensions(streams []Stream, index int) *models.Dimensions {
	for _, s := range streams {
		if s.Index != index {
			continue
		}
		d := &models.Dimensions{Width: s.Width, Height: s.Height}
		if !d.Known() {
			return nil
		}
		return d
	}
	return nil
}

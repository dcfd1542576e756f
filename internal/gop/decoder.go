package gop

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"gopscope/pkg/models"
)

// Keys read from an ffprobe -show_frames record. Timestamps are looked up in
// order, since older ffprobe builds only emit pkt_pts_time.
var (
	ptsTimeKeys  = []string{"pts_time", "pkt_pts_time", "best_effort_timestamp_time"}
	byteSizeKeys = []string{"pkt_size"}
)

const (
	pictTypeKey = "pict_type"
	keyframeKey = "key_frame"
	framesKey   = "frames"
)

// ParseFrames decodes raw probe JSON (either {"frames": [...]} or a bare
// array) into frames. Numbers are kept as literals so sizes never lose precision.
func ParseFrames(data []byte) ([]models.Frame, *multierror.Error, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, nil, errors.Wrapf(ErrInvalidInput, "decode frame JSON: %v", err)
	}
	return DecodeFrames(payload)
}

// DecodeFrames turns an already-decoded payload into an ordered frame
// sequence. Frame numbers follow array position.
//
// warnings collects every field that fell back to its default; it never
// causes the call to fail. err is ErrInvalidInput or ErrNoFrames.
func DecodeFrames(payload any) (frames []models.Frame, warnings *multierror.Error, err error) {
	records, err := frameRecords(payload)
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, ErrNoFrames
	}

	frames = make([]models.Frame, len(records))
	for i, record := range records {
		frame, ferr := DecodeFrame(record, i)
		if ferr != nil {
			warnings = multierror.Append(warnings, ferr)
		}
		frames[i] = frame
	}
	return frames, warnings, nil
}

func frameRecords(payload any) ([]any, error) {
	switch v := payload.(type) {
	case []any:
		return v, nil
	case []map[string]any:
		records := make([]any, len(v))
		for i := range v {
			records[i] = v[i]
		}
		return records, nil
	case map[string]any:
		inner, ok := v[framesKey]
		if !ok {
			return nil, errors.Wrapf(ErrInvalidInput, "object has no %q key", framesKey)
		}
		if _, nested := inner.(map[string]any); nested {
			return nil, errors.Wrapf(ErrInvalidInput, "%q is an object, not an array", framesKey)
		}
		return frameRecords(inner)
	case nil:
		return nil, errors.Wrap(ErrInvalidInput, "payload is empty")
	default:
		return nil, errors.Wrapf(ErrInvalidInput, "payload is %T, not an array", payload)
	}
}

// DecodeFrame converts one loosely-typed probe record into a Frame. The
// returned Frame is always usable: absent or malformed fields take their
// defaults ("?", 0.0, 0, false). A non-nil error lists the malformed fields.
func DecodeFrame(record any, index int) (models.Frame, error) {
	frame := models.Frame{
		FrameNumber: index,
		PictType:    models.PictTypeUnknown,
	}

	rec, ok := record.(map[string]any)
	if !ok {
		return frame, errors.Errorf("frame %d: record is %T, not an object", index, record)
	}

	var result *multierror.Error

	if raw, present := rec[pictTypeKey]; present {
		if s, ok := raw.(string); ok {
			frame.PictType = normalizePictType(s)
		} else {
			result = multierror.Append(result, fieldError(index, pictTypeKey, raw))
		}
	}

	// Only a numeric 1 marks a keyframe; "1" as a string does not.
	if raw, present := rec[keyframeKey]; present {
		n, ok := numericValue(raw)
		frame.IsKeyframe = ok && n == 1
	}

	if raw, key := lookup(rec, ptsTimeKeys); key != "" {
		if pts, ok := parseFloat(raw); ok {
			frame.PTSTime = pts
		} else {
			result = multierror.Append(result, fieldError(index, key, raw))
		}
	}

	if raw, key := lookup(rec, byteSizeKeys); key != "" {
		if size, ok := parseSize(raw); ok {
			frame.ByteSize = size
		} else {
			result = multierror.Append(result, fieldError(index, key, raw))
		}
	}

	return frame, result.ErrorOrNil()
}

func fieldError(index int, key string, raw any) error {
	return errors.Errorf("frame %d: unusable %s %v (%T)", index, key, raw, raw)
}

// lookup returns the value of the first key present in rec.
func lookup(rec map[string]any, keys []string) (any, string) {
	for _, key := range keys {
		if v, ok := rec[key]; ok {
			return v, key
		}
	}
	return nil, ""
}

func normalizePictType(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case models.PictTypeI:
		return models.PictTypeI
	case models.PictTypeP:
		return models.PictTypeP
	case models.PictTypeB:
		return models.PictTypeB
	}
	return models.PictTypeUnknown
}

// numericValue accepts native numbers only.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// parseFloat accepts a native number or its string form. "N/A", "nan" and
// "inf" report ok=false.
func parseFloat(v any) (float64, bool) {
	var (
		f  float64
		ok bool
	)
	if s, isString := v.(string); isString {
		var err error
		f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		ok = err == nil
	} else {
		f, ok = numericValue(v)
	}
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseSize accepts a native or string integer. Negative sizes are rejected.
func parseSize(v any) (int64, bool) {
	var (
		n   int64
		err error
	)
	switch s := v.(type) {
	case string:
		n, err = strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	case json.Number:
		n, err = s.Int64()
	default:
		f, ok := numericValue(v)
		if !ok || f != float64(int64(f)) {
			return 0, false
		}
		n = int64(f)
	}
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

package gop

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"

	"gopscope/pkg/models"
)

func TestDecodeFrame_Defaults(t *testing.T) {
	f, err := DecodeFrame(map[string]any{}, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := models.Frame{FrameNumber: 7, PictType: models.PictTypeUnknown}
	if f != want {
		t.Errorf("got %+v, want %+v", f, want)
	}
}

func TestDecodeFrame_Fields(t *testing.T) {
	rec := map[string]any{
		"pict_type": "P",
		"key_frame": json.Number("0"),
		"pts_time":  "1.501500",
		"pkt_size":  "2048",
	}
	f, err := DecodeFrame(rec, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.FrameNumber != 3 {
		t.Errorf("frame number: got %d, want 3", f.FrameNumber)
	}
	if f.PictType != "P" {
		t.Errorf("pict_type: got %q, want P", f.PictType)
	}
	if f.PTSTime != 1.5015 {
		t.Errorf("pts_time: got %v, want 1.5015", f.PTSTime)
	}
	if f.ByteSize != 2048 {
		t.Errorf("pkt_size: got %d, want 2048", f.ByteSize)
	}
	if f.IsKeyframe {
		t.Error("key_frame=0 should not be a keyframe")
	}
}

func TestDecodeFrame_NativeNumbers(t *testing.T) {
	rec := map[string]any{
		"pts_time": 2.25,
		"pkt_size": json.Number("153600"),
	}
	f, err := DecodeFrame(rec, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.PTSTime != 2.25 || f.ByteSize != 153600 {
		t.Errorf("got pts=%v size=%d", f.PTSTime, f.ByteSize)
	}
}

func TestDecodeFrame_Keyframe(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  bool
	}{
		{"json number 1", json.Number("1"), true},
		{"float 1", float64(1), true},
		{"int 1", 1, true},
		{"json number 0", json.Number("0"), false},
		{"int 2", 2, false},
		{"string 1", "1", false},
		{"bool true", true, false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, _ := DecodeFrame(map[string]any{"key_frame": tc.value}, 0)
			if f.IsKeyframe != tc.want {
				t.Errorf("got %v, want %v", f.IsKeyframe, tc.want)
			}
		})
	}

	t.Run("absent", func(t *testing.T) {
		f, _ := DecodeFrame(map[string]any{"pict_type": "I"}, 0)
		if f.IsKeyframe {
			t.Error("missing key_frame should be false")
		}
	})
}

func TestDecodeFrame_PictType(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"I", "I"},
		{"i", "I"},
		{" b ", "B"},
		{"p", "P"},
		{"S", "?"},
		{"BI", "?"},
		{"", "?"},
		{42, "?"},
	}
	for _, tc := range cases {
		f, _ := DecodeFrame(map[string]any{"pict_type": tc.in}, 0)
		if f.PictType != tc.want {
			t.Errorf("pict_type %v: got %q, want %q", tc.in, f.PictType, tc.want)
		}
	}
}

func TestDecodeFrame_MalformedFieldsDefault(t *testing.T) {
	rec := map[string]any{
		"pict_type": "I",
		"key_frame": json.Number("1"),
		"pts_time":  "N/A",
		"pkt_size":  "lots",
	}
	f, err := DecodeFrame(rec, 5)
	if err == nil {
		t.Fatal("expected a field error listing the defaulted fields")
	}
	if f.PTSTime != 0 || f.ByteSize != 0 {
		t.Errorf("malformed fields should default: pts=%v size=%d", f.PTSTime, f.ByteSize)
	}
	if f.PictType != "I" || !f.IsKeyframe || f.FrameNumber != 5 {
		t.Errorf("valid fields should survive: %+v", f)
	}
}

func TestDecodeFrame_RejectsNegativeAndFractionalSize(t *testing.T) {
	for _, v := range []any{"-10", float64(12.5), json.Number("-1")} {
		f, err := DecodeFrame(map[string]any{"pkt_size": v}, 0)
		if err == nil {
			t.Errorf("pkt_size %v: expected field error", v)
		}
		if f.ByteSize != 0 {
			t.Errorf("pkt_size %v: got %d, want 0", v, f.ByteSize)
		}
	}
}

func TestDecodeFrame_PktPtsTimeFallback(t *testing.T) {
	f, err := DecodeFrame(map[string]any{"pkt_pts_time": "0.040000"}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.PTSTime != 0.04 {
		t.Errorf("got %v, want 0.04", f.PTSTime)
	}

	// pts_time wins when both are present.
	f, _ = DecodeFrame(map[string]any{"pts_time": "1.0", "pkt_pts_time": "9.0"}, 1)
	if f.PTSTime != 1.0 {
		t.Errorf("got %v, want 1.0", f.PTSTime)
	}
}

func TestDecodeFrame_NonFiniteTimestampDefaults(t *testing.T) {
	for _, v := range []any{"nan", "NaN", "inf", "-Infinity", " +Inf "} {
		f, err := DecodeFrame(map[string]any{"pts_time": v, "pict_type": "P"}, 2)
		if err == nil {
			t.Errorf("pts_time %q: expected field error", v)
		}
		if f.PTSTime != 0 {
			t.Errorf("pts_time %q: got %v, want 0", v, f.PTSTime)
		}
	}
}

func TestParseFrames_NonFiniteTimestamps(t *testing.T) {
	data := []byte(`[
    {"key_frame": 1, "pts_time": "0.0", "pkt_size": "100", "pict_type": "I"},
    {"key_frame": 0, "pts_time": "nan", "pkt_size": "100", "pict_type": "P"},
    {"key_frame": 1, "pts_time": "0.08", "pkt_size": "100", "pict_type": "I"},
    {"key_frame": 0, "pts_time": "inf", "pkt_size": "100", "pict_type": "P"}
]`)
	frames, warnings, err := ParseFrames(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if warnings == nil || len(warnings.Errors) != 2 {
		t.Fatalf("warnings: got %v, want two", warnings)
	}

	result, err := Analyze("clip", 0, frames, nil)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if _, err := json.Marshal(result); err != nil {
		t.Errorf("result should encode: %v", err)
	}
	if d := result.GOPs[1].DurationSec; d != 0 {
		t.Errorf("gop 1 duration: got %v, want 0", d)
	}
}

func TestDecodeFrame_NotAnObject(t *testing.T) {
	f, err := DecodeFrame("garbage", 4)
	if err == nil {
		t.Error("expected error for non-object record")
	}
	if f.FrameNumber != 4 || f.PictType != models.PictTypeUnknown {
		t.Errorf("got %+v", f)
	}
}

const sampleFrames = `{
  "frames": [
    {"media_type": "video", "key_frame": 1, "pts_time": "0.000000", "pkt_size": "40000", "pict_type": "I"},
    {"media_type": "video", "key_frame": 0, "pts_time": "0.040000", "pkt_size": "3000", "pict_type": "B"},
    {"media_type": "video", "key_frame": 0, "pts_time": "0.080000", "pkt_size": "8000", "pict_type": "P"},
    {"media_type": "video", "key_frame": 1, "pts_time": "0.120000", "pkt_size": "42000", "pict_type": "I"},
    {"media_type": "video", "key_frame": 0, "pts_time": "N/A", "pkt_size": "7000", "pict_type": "P"}
  ]
}`

func TestParseFrames(t *testing.T) {
	frames, warnings, err := ParseFrames([]byte(sampleFrames))
	if err != nil {
		t.Fatalf("ParseFrames: %v", err)
	}
	if len(frames) != 5 {
		t.Fatalf("frames: got %d, want 5", len(frames))
	}
	if warnings == nil || len(warnings.Errors) != 1 {
		t.Errorf("warnings: got %v, want exactly one (pts_time N/A)", warnings)
	}
	for i, f := range frames {
		if f.FrameNumber != i {
			t.Errorf("frame %d numbered %d", i, f.FrameNumber)
		}
	}
	if !frames[3].IsKeyframe || frames[3].ByteSize != 42000 {
		t.Errorf("frame 3: got %+v", frames[3])
	}
}

func TestParseFrames_BareArray(t *testing.T) {
	frames, _, err := ParseFrames([]byte(`[{"pict_type":"I","key_frame":1},{"pict_type":"P"}]`))
	if err != nil {
		t.Fatalf("ParseFrames: %v", err)
	}
	if len(frames) != 2 {
		t.Errorf("frames: got %d, want 2", len(frames))
	}
}

func TestParseFrames_StructuralErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
		want error
	}{
		{"invalid JSON", `{invalid`, ErrInvalidInput},
		{"missing frames key", `{"streams": []}`, ErrInvalidInput},
		{"frames is an object", `{"frames": {}}`, ErrInvalidInput},
		{"frames is a string", `{"frames": "x"}`, ErrInvalidInput},
		{"null", `null`, ErrInvalidInput},
		{"scalar", `42`, ErrInvalidInput},
		{"empty frames", `{"frames": []}`, ErrNoFrames},
		{"empty array", `[]`, ErrNoFrames},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ParseFrames([]byte(tc.data))
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestDecodeFrames_TypedSlice(t *testing.T) {
	records := []map[string]any{
		{"pict_type": "I", "key_frame": 1},
		{"pict_type": "P", "key_frame": 0},
	}
	frames, warnings, err := DecodeFrames(records)
	if err != nil {
		t.Fatalf("DecodeFrames: %v", err)
	}
	if warnings != nil {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if len(frames) != 2 || !frames[0].IsKeyframe {
		t.Errorf("got %+v", frames)
	}
}

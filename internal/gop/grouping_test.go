package gop

import (
	"math/rand"
	"testing"

	"gopscope/pkg/models"
)

// makeFrames builds one frame per character of types. Frames whose index is
// listed in keyframes are flagged; every frame is 1000 bytes and 1/25 s apart.
func makeFrames(types string, keyframes ...int) []models.Frame {
	keys := make(map[int]bool, len(keyframes))
	for _, k := range keyframes {
		keys[k] = true
	}
	frames := make([]models.Frame, len(types))
	for i, c := range types {
		frames[i] = models.Frame{
			FrameNumber: i,
			PictType:    string(c),
			PTSTime:     float64(i) / 25,
			ByteSize:    1000,
			IsKeyframe:  keys[i],
		}
	}
	return frames
}

func gopBounds(gops []models.GOP) [][2]int {
	out := make([][2]int, len(gops))
	for i, g := range gops {
		out[i] = [2]int{g.StartFrame, g.EndFrame}
	}
	return out
}

func TestGroup_Boundaries(t *testing.T) {
	cases := []struct {
		name      string
		types     string
		keyframes []int
		want      [][2]int
	}{
		{"regular", "IPPPIPPPIPP", []int{0, 4, 8}, [][2]int{{0, 3}, {4, 7}, {8, 10}}},
		{"single frame", "I", []int{0}, [][2]int{{0, 0}}},
		{"all keyframes form one run", "IIII", []int{0, 1, 2, 3}, [][2]int{{0, 3}}},
		{"consecutive keyframes share a gop", "IIIPIPP", []int{0, 1, 2, 4}, [][2]int{{0, 3}, {4, 6}}},
		{"trailing keyframe", "IPPI", []int{0, 3}, [][2]int{{0, 2}, {3, 3}}},
		{"no keyframes", "PPBP", nil, [][2]int{{0, 3}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gops := Group(makeFrames(tc.types, tc.keyframes...), nil)
			got := gopBounds(gops)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("gop %d: got %v, want %v", i, got[i], tc.want[i])
				}
				if gops[i].Index != i {
					t.Errorf("gop %d: index %d", i, gops[i].Index)
				}
			}
		})
	}
}

// Frames before the first keyframe are folded into the first GOP rather than
// emitted alone or dropped. Consumers rely on this, so it is pinned here.
func TestGroup_LeadingNonKeyframesJoinFirstGOP(t *testing.T) {
	frames := makeFrames("BBIPPIP", 2, 5)
	gops := Group(frames, nil)

	if len(gops) != 2 {
		t.Fatalf("gops: got %d, want 2", len(gops))
	}
	first := gops[0]
	if first.StartFrame != 0 || first.EndFrame != 4 || first.FrameCount != 5 {
		t.Errorf("first gop: got [%d,%d] x%d, want [0,4] x5", first.StartFrame, first.EndFrame, first.FrameCount)
	}
	if got := Pattern(first); got != "BBIPP" {
		t.Errorf("first gop pattern: got %q, want BBIPP", got)
	}
	if got := LeadingNonKeyframes(frames); got != 2 {
		t.Errorf("leading non-keyframes: got %d, want 2", got)
	}
}

func TestGroup_Empty(t *testing.T) {
	gops := Group(nil, nil)
	if gops == nil || len(gops) != 0 {
		t.Errorf("got %v, want empty non-nil slice", gops)
	}
}

func TestLeadingNonKeyframes(t *testing.T) {
	cases := []struct {
		frames []models.Frame
		want   int
	}{
		{makeFrames("IPP", 0), 0},
		{makeFrames("PPIP", 2), 2},
		{makeFrames("PPP"), 3},
		{nil, 0},
	}
	for i, tc := range cases {
		if got := LeadingNonKeyframes(tc.frames); got != tc.want {
			t.Errorf("case %d: got %d, want %d", i, got, tc.want)
		}
	}
}

func TestGroup_PartitionsEveryFrame(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	types := []string{"I", "P", "B", "?"}

	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(300)
		frames := make([]models.Frame, n)
		for i := range frames {
			frames[i] = models.Frame{
				FrameNumber: i,
				PictType:    types[rng.Intn(len(types))],
				PTSTime:     float64(i) * 0.04,
				ByteSize:    int64(rng.Intn(50000)),
				IsKeyframe:  rng.Intn(8) == 0,
			}
		}

		gops := Group(frames, &models.Dimensions{Width: 640, Height: 360})
		next := 0
		for i, g := range gops {
			if g.StartFrame != next {
				t.Fatalf("trial %d gop %d: starts at %d, want %d", trial, i, g.StartFrame, next)
			}
			if g.FrameCount != len(g.Structure) || g.FrameCount != g.EndFrame-g.StartFrame+1 {
				t.Fatalf("trial %d gop %d: frame_count %d, structure %d, range [%d,%d]",
					trial, i, g.FrameCount, len(g.Structure), g.StartFrame, g.EndFrame)
			}
			if g.TotalBytes < g.IFrameBytes {
				t.Fatalf("trial %d gop %d: total %d < i-frame %d", trial, i, g.TotalBytes, g.IFrameBytes)
			}
			if i > 0 && !frames[g.StartFrame].IsKeyframe {
				t.Fatalf("trial %d gop %d: does not start on a keyframe", trial, i)
			}
			next = g.EndFrame + 1
		}
		if next != n {
			t.Fatalf("trial %d: gops cover %d frames, want %d", trial, next, n)
		}
	}
}

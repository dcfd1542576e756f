package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"gopscope/pkg/models"
)

const frameDump = `{"frames": [
  {"pict_type": "I", "key_frame": 1, "pts_time": "0.000000", "pkt_size": "6000"},
  {"pict_type": "B", "key_frame": 0, "pts_time": "0.033367", "pkt_size": "400"},
  {"pict_type": "P", "key_frame": 0, "pts_time": "0.066733", "pkt_size": "1200"},
  {"pict_type": "I", "key_frame": 1, "pts_time": "0.100100", "pkt_size": "5800"},
  {"pict_type": "P", "key_frame": 0, "pts_time": "0.133467", "pkt_size": "1100"}
]}`

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("LOG_LEVEL", "error")

	cmd := newAnalyzeCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyzeCmd_StdinJSON(t *testing.T) {
	out, err := runCLI(t, frameDump, "--json", "--width", "320", "--height", "240", "-")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	var result models.GOPAnalysis
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if result.MediaID != "stdin" || result.TotalFrames != 5 || len(result.GOPs) != 2 {
		t.Errorf("result: got media %q, %d frames, %d gops", result.MediaID, result.TotalFrames, len(result.GOPs))
	}
	if result.GOPs[0].CompressionRatio == nil {
		t.Error("compression ratio should be set from --width/--height")
	}
}

func TestAnalyzeCmd_FramesFileReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.json")
	if err := os.WriteFile(path, []byte(frameDump), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "", "--frames-json", path)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for _, want := range []string{
		"dump.json (stream 0)",
		"GOPs:              2",
		"seekability:",
		"IBP",
		"1/1/1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestAnalyzeCmd_Errors(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{"no args", "", []string{}},
		{"empty frame list", `{"frames": []}`, []string{"-"}},
		{"not json", `frames`, []string{"-"}},
		{"missing file", "", []string{"--frames-json", "/nonexistent/dump.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCLI(t, tt.stdin, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestWriteReport_TruncatesGOPs(t *testing.T) {
	result := &models.GOPAnalysis{
		MediaID: "long",
		GOPs:    make([]models.GOP, 5),
		Stats:   models.AggregateStats{TotalGOPs: 5},
	}
	for i := range result.GOPs {
		result.GOPs[i] = models.GOP{Index: i, FrameCount: 1, Structure: []string{"I"}}
	}

	var out bytes.Buffer
	writeReport(&out, result, 2)
	if !strings.Contains(out.String(), "3 more GOPs") {
		t.Errorf("report should note hidden GOPs:\n%s", out.String())
	}
}

func TestTruncatePattern(t *testing.T) {
	if got := truncatePattern("IPPP", 10); got != "IPPP" {
		t.Errorf("short: got %q", got)
	}
	if got := truncatePattern("IPPPPPPP", 4); got != "IPPP..." {
		t.Errorf("long: got %q", got)
	}
}

func TestSetupLogging(t *testing.T) {
	if err := setupLogging("debug", "json"); err != nil {
		t.Errorf("valid settings: %v", err)
	}
	if err := setupLogging("chatty", "text"); err == nil {
		t.Error("expected error for unknown level")
	}
	_ = setupLogging("info", "text")
}

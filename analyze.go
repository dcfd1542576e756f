package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gopscope/config"
	"gopscope/internal/gop"
	"gopscope/internal/probe"
	"gopscope/pkg/models"
)

type analyzeOptions struct {
	framesJSON bool
	stream     int
	width      int
	height     int
	asJSON     bool
	maxGOPs    int
}

func newAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [flags] <file|->",
		Short: "Analyze the GOP structure of a video file or an ffprobe frame dump",
		Long: "Analyze runs ffprobe on a video file and prints its GOP structure.\n" +
			"With --frames-json, or when the input is \"-\", the input is read as\n" +
			"ffprobe -show_frames JSON output instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := setupLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
				return err
			}

			result, err := runAnalyze(cmd, cfg, opts, args[0])
			if err != nil {
				return err
			}

			if opts.asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			writeReport(cmd.OutOrStdout(), result, opts.maxGOPs)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.framesJSON, "frames-json", false, "treat the input as ffprobe -show_frames JSON")
	flags.IntVar(&opts.stream, "stream", -1, "stream index to analyze (-1 selects the primary video stream)")
	flags.IntVar(&opts.width, "width", 0, "frame width for compression ratios when reading frame JSON")
	flags.IntVar(&opts.height, "height", 0, "frame height for compression ratios when reading frame JSON")
	flags.BoolVar(&opts.asJSON, "json", false, "print the full analysis as JSON")
	flags.IntVar(&opts.maxGOPs, "max-gops", 20, "GOP rows to print in the text report (0 prints all)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, cfg *config.Config, opts *analyzeOptions, input string) (*models.GOPAnalysis, error) {
	mediaID := filepath.Base(input)

	if !opts.framesJSON && input != "-" {
		runner := probe.NewRunner(cfg.FFprobePath, cfg.ProbeTimeout, 1)
		return runner.Analyze(cmd.Context(), mediaID, input, opts.stream)
	}

	var data []byte
	var err error
	if input == "-" {
		mediaID = "stdin"
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(input)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read frames: %w", err)
	}

	frames, warnings, err := gop.ParseFrames(data)
	if err != nil {
		return nil, err
	}
	if warnings != nil {
		log.WithField("defaulted", len(warnings.Errors)).Warn("some frame fields were unusable and fell back to defaults")
		log.Debug(warnings.Error())
	}

	dims := &models.Dimensions{Width: opts.width, Height: opts.height}
	if !dims.Known() {
		dims = nil
	}
	streamIndex := opts.stream
	if streamIndex < 0 {
		streamIndex = 0
	}
	return gop.Analyze(mediaID, streamIndex, frames, dims)
}

// writeReport prints a human-readable summary and a per-GOP table
func writeReport(w io.Writer, result *models.GOPAnalysis, maxGOPs int) {
	r := lipgloss.NewRenderer(w)
	heading := r.NewStyle().Bold(true)
	stats := result.Stats

	fmt.Fprintln(w, heading.Render(fmt.Sprintf("%s (stream %d)", result.MediaID, result.StreamIndex)))
	fmt.Fprintf(w, "  frames:            %d\n", result.TotalFrames)
	if result.LeadingNonKeyframes > 0 {
		fmt.Fprintf(w, "  leading frames:    %d before the first keyframe\n", result.LeadingNonKeyframes)
	}
	fmt.Fprintf(w, "  GOPs:              %d\n", stats.TotalGOPs)
	fmt.Fprintf(w, "  GOP size:          avg %.2f, min %d, max %d, variance %.2f\n",
		stats.AvgGOPSize, stats.MinGOPSize, stats.MaxGOPSize, stats.GOPSizeVariance)
	fmt.Fprintf(w, "  keyframe interval: %.3fs\n", stats.KeyframeIntervalSec)
	fmt.Fprintf(w, "  frame types:       I %.1f%%  P %.1f%%  B %.1f%%\n",
		stats.IFrameRatio, stats.PFrameRatio, stats.BFrameRatio)
	fmt.Fprintf(w, "  seekability:       %.1f / 100\n", stats.SeekabilityScore)

	if len(result.GOPs) == 0 {
		return
	}

	gops := result.GOPs
	if maxGOPs > 0 && len(gops) > maxGOPs {
		gops = gops[:maxGOPs]
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "frames", "start", "duration", "I/P/B", "bytes", "I-frame %", "ratio", "pattern")
	for _, g := range gops {
		counts := gop.CountFrameTypes(g.Structure)
		ratio := "-"
		if g.CompressionRatio != nil {
			ratio = strconv.FormatFloat(*g.CompressionRatio, 'f', 1, 64)
		}
		t.Row(
			strconv.Itoa(g.Index),
			strconv.Itoa(g.FrameCount),
			fmt.Sprintf("%.3f", g.StartPTSSec),
			fmt.Sprintf("%.3f", g.DurationSec),
			fmt.Sprintf("%d/%d/%d", counts.I, counts.P, counts.B),
			strconv.FormatInt(g.TotalBytes, 10),
			fmt.Sprintf("%.1f", gop.IFrameOverhead(g)),
			ratio,
			truncatePattern(gop.Pattern(g), 24),
		)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, t.String())
	if len(gops) < len(result.GOPs) {
		fmt.Fprintf(w, "  ... %d more GOPs (use --max-gops 0 or --json)\n", len(result.GOPs)-len(gops))
	}
}

func truncatePattern(p string, n int) string {
	if len(p) <= n {
		return p
	}
	return p[:n] + "..."
}

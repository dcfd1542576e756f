package gop

import (
	"strings"

	"gopscope/pkg/models"
)

// ChromaFactor420 is the bytes-per-pixel of raw YUV 4:2:0 video, used to
// estimate the uncompressed size of a GOP.
const ChromaFactor420 = 1.5

// BuildGOP derives a GOP record from a finished run of frames. run must not
// be empty. The first frame is taken as the reference frame without checking
// its picture type.
func BuildGOP(index int, run []models.Frame, dims *models.Dimensions) models.GOP {
	first, last := run[0], run[len(run)-1]

	structure := make([]string, len(run))
	var total int64
	for i, f := range run {
		structure[i] = f.PictType
		total += f.ByteSize
	}

	return models.GOP{
		Index:            index,
		StartFrame:       first.FrameNumber,
		EndFrame:         last.FrameNumber,
		StartPTSSec:      first.PTSTime,
		EndPTSSec:        last.PTSTime,
		DurationSec:      last.PTSTime - first.PTSTime,
		FrameCount:       len(run),
		Structure:        structure,
		TotalBytes:       total,
		IFrameBytes:      first.ByteSize,
		CompressionRatio: CompressionRatio(total, len(run), dims),
	}
}

// CompressionRatio returns the estimated raw size over the encoded size, or
// nil when the dimensions are unknown or totalBytes is 0.
func CompressionRatio(totalBytes int64, frameCount int, dims *models.Dimensions) *float64 {
	if !dims.Known() || totalBytes == 0 {
		return nil
	}
	uncompressed := float64(dims.Width) * float64(dims.Height) * ChromaFactor420 * float64(frameCount)
	ratio := uncompressed / float64(totalBytes)
	return &ratio
}

// IFrameOverhead is the share of the GOP's bytes spent on its first frame, in
// percent. It is 0 for a GOP with no bytes.
func IFrameOverhead(g models.GOP) float64 {
	if g.TotalBytes == 0 {
		return 0
	}
	return float64(g.IFrameBytes) * 100 / float64(g.TotalBytes)
}

// CountFrameTypes tallies I, P and B symbols case-insensitively. Anything
// else, "?" included, is ignored.
func CountFrameTypes(structure []string) models.FrameTypeCounts {
	var counts models.FrameTypeCounts
	for _, t := range structure {
		switch {
		case strings.EqualFold(t, models.PictTypeI):
			counts.I++
		case strings.EqualFold(t, models.PictTypeP):
			counts.P++
		case strings.EqualFold(t, models.PictTypeB):
			counts.B++
		}
	}
	return counts
}

// Pattern joins the GOP structure into a single string such as "IBBPBBP".
func Pattern(g models.GOP) string {
	return strings.Join(g.Structure, "")
}

package probe

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"gopscope/pkg/models"
)

// frameEntries keeps -show_frames output to the fields the analysis reads.
// pkt_pts_time covers ffprobe builds older than 5.0, and
// best_effort_timestamp_time covers frames without a presentation timestamp.
const frameEntries = "frame=pict_type,key_frame,pts_time,pkt_pts_time,best_effort_timestamp_time,pkt_size"

// ErrNoVideoStream is returned when a file has nothing to analyze.
var ErrNoVideoStream = errors.New("no video stream found")

// Runner executes ffprobe with a bounded number of concurrent processes
type Runner struct {
	binary  string
	timeout time.Duration
	sem     *semaphore.Weighted
	observe func(time.Duration, error)
}

// Result is the raw material for one GOP analysis
type Result struct {
	StreamIndex int
	FramesJSON  []byte             // ffprobe -show_frames output
	Streams     []Stream           // every stream in the container
	Dimensions  *models.Dimensions // nil when the stream size is unknown
}

// NewRunner creates a new ffprobe runner
func NewRunner(binary string, timeout time.Duration, maxConcurrent int) *Runner {
	if binary == "" {
		binary = "ffprobe"
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Runner{
		binary:  binary,
		timeout: timeout,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// SetObserver registers fn to be called after every ffprobe process exits
func (r *Runner) SetObserver(fn func(elapsed time.Duration, err error)) {
	r.observe = fn
}

// Streams runs ffprobe -show_streams against input
func (r *Runner) Streams(ctx context.Context, input string) ([]Stream, error) {
	out, err := r.run(ctx, "-v", "error", "-show_streams", "-of", "json", input)
	if err != nil {
		return nil, err
	}
	return ParseStreams(out)
}

// Frames runs ffprobe -show_frames for one stream and returns its JSON output
func (r *Runner) Frames(ctx context.Context, input string, streamIndex int) ([]byte, error) {
	return r.run(ctx,
		"-v", "error",
		"-select_streams", strconv.Itoa(streamIndex),
		"-show_frames",
		"-show_entries", frameEntries,
		"-of", "json",
		input,
	)
}

// Probe collects frames and stream metadata for input. A negative
// streamIndex selects the primary video stream, which costs one extra
// sequential ffprobe call; otherwise both calls run concurrently.
func (r *Runner) Probe(ctx context.Context, input string, streamIndex int) (*Result, error) {
	res := &Result{StreamIndex: streamIndex}

	if streamIndex < 0 {
		streams, err := r.Streams(ctx, input)
		if err != nil {
			return nil, err
		}
		idx, ok := PrimaryVideoIndex(streams)
		if !ok {
			return nil, ErrNoVideoStream
		}
		res.StreamIndex = idx
		res.Streams = streams
		if res.FramesJSON, err = r.Frames(ctx, input, idx); err != nil {
			return nil, err
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			streams, err := r.Streams(gctx, input)
			res.Streams = streams
			return err
		})
		g.Go(func() error {
			frames, err := r.Frames(gctx, input, streamIndex)
			res.FramesJSON = frames
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if !isVideoStream(res.Streams, streamIndex) {
			return nil, errors.Wrapf(ErrNoVideoStream, "stream %d", streamIndex)
		}
	}

	res.Dimensions = Dimensions(res.Streams, res.StreamIndex)
	if res.Dimensions == nil {
		log.WithField("stream", res.StreamIndex).Debug("stream dimensions unknown, compression ratios will be omitted")
	}
	return res, nil
}

func (r *Runner) run(ctx context.Context, args ...string) ([]byte, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrap(err, "wait for ffprobe slot")
	}
	defer r.sem.Release(1)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	log.WithFields(log.Fields{
		"args":     strings.Join(args, " "),
		"duration": elapsed,
	}).Debug("ffprobe finished")
	if r.observe != nil {
		r.observe(elapsed, err)
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrap(ctxErr, "ffprobe interrupted")
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, errors.Wrapf(err, "ffprobe failed: %s", msg)
		}
		return nil, errors.Wrap(err, "ffprobe failed")
	}
	return stdout.Bytes(), nil
}

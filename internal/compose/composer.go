// Package compose concatenates rendered slides into a single delivery-ready
// MP4. Each still is held for its requested duration by looping the image
// input, faded, then folded into the accumulated stream pairwise so every
// boundary keeps its own timing.
package compose

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"newsreel/internal/filtergraph"
)

// CompositionError is a fatal encoding-backend failure. Output carries the
// backend's diagnostic text; it is the primary debugging signal for filter
// graph construction bugs, so it is preserved rather than swallowed.
type CompositionError struct {
	Output string
	Err    error
}

func (e *CompositionError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("compose video: %v: %s", e.Err, e.Output)
	}
	return fmt.Sprintf("compose video: %v", e.Err)
}

func (e *CompositionError) Unwrap() error { return e.Err }

// Request describes one composition: ordered slide paths with their
// authoritative durations, an optional audio track, and the output path.
type Request struct {
	SlidePaths   []string
	DurationsSec []float64
	AudioPath    string
	OutputPath   string
}

// TotalDuration is the exact sum of the requested per-slide durations.
// The composer realizes these timings, so the sum is reported as the video
// duration instead of re-probing the encoded file.
func (r Request) TotalDuration() float64 {
	var total float64
	for _, d := range r.DurationsSec {
		total += d
	}
	return total
}

func (r Request) validate() error {
	if len(r.SlidePaths) == 0 {
		return fmt.Errorf("no slides to compose")
	}
	if len(r.SlidePaths) != len(r.DurationsSec) {
		return fmt.Errorf("slide/duration count mismatch: %d slides, %d durations",
			len(r.SlidePaths), len(r.DurationsSec))
	}
	for i, d := range r.DurationsSec {
		if d <= 0 {
			return fmt.Errorf("slide %d has non-positive duration %f", i, d)
		}
	}
	if r.OutputPath == "" {
		return fmt.Errorf("output path not set")
	}
	return nil
}

// Composer encodes slide sequences with libx264/aac and a faststart
// container layout, tuned for turnaround over compression.
type Composer struct {
	width   int
	height  int
	fps     int
	fadeSec float64
	preset  string
	crf     int
	timeout time.Duration
	logger  *slog.Logger
}

func New(width, height, fps int, fadeSec float64, preset string, crf int, timeout time.Duration, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	if preset == "" {
		preset = "fast"
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Composer{
		width:   width,
		height:  height,
		fps:     fps,
		fadeSec: fadeSec,
		preset:  preset,
		crf:     crf,
		timeout: timeout,
		logger:  logger,
	}
}

// Compose runs the encode and returns the realized total duration.
// The encode runs under the composer's timeout; it is the only step of the
// pipeline with unbounded external-process latency.
func (c *Composer) Compose(ctx context.Context, req Request) (float64, error) {
	args, err := c.Args(req)
	if err != nil {
		return 0, &CompositionError{Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Info("composing video", "slides", len(req.SlidePaths), "output", req.OutputPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// A failed encode may leave a truncated file behind; there is no
		// partial-output recovery, so remove it.
		_ = os.Remove(req.OutputPath)
		return 0, &CompositionError{Output: tail(stderr.String(), 4000), Err: err}
	}

	return req.TotalDuration(), nil
}

// Args builds the complete ffmpeg argument list: one looped image input per
// slide, the transition filter graph, and the encoder settings.
func (c *Composer) Args(req Request) ([]string, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	args := []string{"-y", "-nostats", "-hide_banner", "-loglevel", "error"}

	// A still image has no intrinsic duration: loop each input and bound it
	// with -t so the single frame is clone-extended to the slide's length.
	for i, path := range req.SlidePaths {
		args = append(args,
			"-loop", "1",
			"-t", fmt.Sprintf("%.3f", req.DurationsSec[i]),
			"-framerate", fmt.Sprintf("%d", c.fps),
			"-i", path,
		)
	}

	hasAudio := req.AudioPath != ""
	if hasAudio {
		args = append(args, "-i", req.AudioPath)
	}

	g, err := c.graph(req, hasAudio)
	if err != nil {
		return nil, err
	}

	args = append(args, "-filter_complex", g.String(), "-map", "[vout]")
	if hasAudio {
		args = append(args, "-map", "[aout]")
	}

	args = append(args,
		"-c:v", "libx264",
		"-preset", c.preset,
		"-crf", fmt.Sprintf("%d", c.crf),
	)
	if hasAudio {
		args = append(args, "-c:a", "aac", "-b:a", "192k")
	}
	// The output length is pinned to the requested timeline: a shorter audio
	// track is silence-padded by the graph, a longer one is trimmed here.
	args = append(args,
		"-t", fmt.Sprintf("%.3f", req.TotalDuration()),
		"-movflags", "+faststart", req.OutputPath)

	return args, nil
}

// graph builds the transition graph: per-slide normalize+hold+fade chains,
// a pairwise left-fold concat in strict input order, and a final frame-rate
// normalization (clone-extension alone does not guarantee the inputs agree
// on a rate).
func (c *Composer) graph(req Request, hasAudio bool) (*filtergraph.Graph, error) {
	g := &filtergraph.Graph{}
	n := len(req.SlidePaths)

	for i := 0; i < n; i++ {
		filters := []filtergraph.Filter{
			filtergraph.F("scale",
				filtergraph.P("w", fmt.Sprintf("%d", c.width)),
				filtergraph.P("h", fmt.Sprintf("%d", c.height)),
				filtergraph.P("force_original_aspect_ratio", "decrease"),
			),
			filtergraph.F("pad",
				filtergraph.P("w", fmt.Sprintf("%d", c.width)),
				filtergraph.P("h", fmt.Sprintf("%d", c.height)),
				filtergraph.P("x", "(ow-iw)/2"),
				filtergraph.P("y", "(oh-ih)/2"),
			),
			filtergraph.F("setsar", filtergraph.P("sar", "1")),
			filtergraph.F("setpts", filtergraph.P("expr", "PTS-STARTPTS")),
		}
		filters = append(filters, c.fadeFilters(i, n, req.DurationsSec[i])...)

		g.Chain(fmt.Sprintf("%d:v", i), fmt.Sprintf("hold%d", i), filters...)
	}

	// Left-fold: each step concatenates the accumulated stream with the
	// next held slide. Order is the narrative sequence and is never
	// reordered.
	acc := "hold0"
	for i := 1; i < n; i++ {
		out := fmt.Sprintf("cat%d", i)
		g.Add(filtergraph.Node{
			Inputs: []string{acc, fmt.Sprintf("hold%d", i)},
			Filters: []filtergraph.Filter{
				filtergraph.F("concat",
					filtergraph.P("n", "2"),
					filtergraph.P("v", "1"),
					filtergraph.P("a", "0"),
				),
			},
			Outputs: []string{out},
		})
		acc = out
	}

	g.Chain(acc, "vout",
		filtergraph.F("fps", filtergraph.P("fps", fmt.Sprintf("%d", c.fps))),
		filtergraph.F("format", filtergraph.P("pix_fmts", "yuv420p")),
	)

	if hasAudio {
		g.Chain(fmt.Sprintf("%d:a", n), "aout",
			filtergraph.F("aresample", filtergraph.P("sample_rate", "44100")),
			filtergraph.F("apad"),
		)
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// fadeFilters: every slide fades in; interior slides (all but first and
// last) also fade out, so each internal boundary dissolves while the video
// still opens and closes on a full frame.
func (c *Composer) fadeFilters(i, n int, duration float64) []filtergraph.Filter {
	if c.fadeSec <= 0 {
		return nil
	}
	fade := c.fadeSec
	if fade > duration/2 {
		fade = duration / 2
	}

	filters := []filtergraph.Filter{
		filtergraph.F("fade",
			filtergraph.P("t", "in"),
			filtergraph.P("st", "0"),
			filtergraph.P("d", fmt.Sprintf("%.3f", fade)),
		),
	}
	if i > 0 && i < n-1 {
		filters = append(filters, filtergraph.F("fade",
			filtergraph.P("t", "out"),
			filtergraph.P("st", fmt.Sprintf("%.3f", duration-fade)),
			filtergraph.P("d", fmt.Sprintf("%.3f", fade)),
		))
	}
	return filters
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

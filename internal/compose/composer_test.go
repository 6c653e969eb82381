package compose

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testComposer() *Composer {
	return New(1920, 1080, 30, 0.4, "fast", 23, time.Minute, nil)
}

func threeSlides() Request {
	return Request{
		SlidePaths:   []string{"/tmp/s0.png", "/tmp/s1.png", "/tmp/s2.png"},
		DurationsSec: []float64{3, 12.5, 3},
		OutputPath:   "/tmp/out.mp4",
	}
}

func TestArgsHoldEachSlideForItsDuration(t *testing.T) {
	args, err := testComposer().Args(threeSlides())
	require.NoError(t, err)

	joined := strings.Join(args, " ")
	// Every still is looped and bounded with -t: that is what synthesizes a
	// duration for a single static frame.
	assert.Equal(t, 3, strings.Count(joined, "-loop 1"))
	assert.Contains(t, joined, "-loop 1 -t 3.000 -framerate 30 -i /tmp/s0.png")
	assert.Contains(t, joined, "-loop 1 -t 12.500 -framerate 30 -i /tmp/s1.png")
}

func TestArgsFoldSlidesPairwiseInOrder(t *testing.T) {
	args, err := testComposer().Args(threeSlides())
	require.NoError(t, err)

	graph := filterComplex(t, args)
	// Two concat steps for three slides, each folding the accumulator with
	// the next held slide.
	assert.Equal(t, 2, strings.Count(graph, "concat=n=2:v=1:a=0"))
	assert.Contains(t, graph, "[hold0][hold1]concat")
	assert.Contains(t, graph, "[cat1][hold2]concat")

	// Strict input order: hold labels appear in sequence.
	assert.Less(t, strings.Index(graph, "[0:v]"), strings.Index(graph, "[1:v]"))
	assert.Less(t, strings.Index(graph, "[1:v]"), strings.Index(graph, "[2:v]"))
}

func TestArgsNormalizeFrameRateAndFormat(t *testing.T) {
	args, err := testComposer().Args(threeSlides())
	require.NoError(t, err)

	graph := filterComplex(t, args)
	assert.Contains(t, graph, "fps=fps=30")
	assert.Contains(t, graph, "format=pix_fmts=yuv420p")

	for i := range threeSlides().SlidePaths {
		assert.Contains(t, graph, fmt.Sprintf("[%d:v]scale=", i), "every slide is normalized to the canonical size")
	}
}

func TestFadePlacement(t *testing.T) {
	args, err := testComposer().Args(threeSlides())
	require.NoError(t, err)

	graph := filterComplex(t, args)
	assert.Equal(t, 3, strings.Count(graph, "fade=t=in"), "every slide fades in")
	assert.Equal(t, 1, strings.Count(graph, "fade=t=out"), "only the interior slide fades out")
	assert.Contains(t, graph, "fade=t=out:st=12.100:d=0.400")
}

func TestFadeShorterThanTinySlide(t *testing.T) {
	c := testComposer()
	req := Request{
		SlidePaths:   []string{"/a.png", "/b.png", "/c.png"},
		DurationsSec: []float64{0.5, 0.5, 0.5},
		OutputPath:   "/tmp/out.mp4",
	}
	args, err := c.Args(req)
	require.NoError(t, err)

	graph := filterComplex(t, args)
	// The fade never exceeds half the slide's duration.
	assert.Contains(t, graph, "fade=t=in:st=0:d=0.250")
}

func TestEncoderSettings(t *testing.T) {
	args, err := testComposer().Args(threeSlides())
	require.NoError(t, err)

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-c:v libx264")
	assert.Contains(t, joined, "-preset fast")
	assert.Contains(t, joined, "-crf 23")
	assert.Contains(t, joined, "-movflags +faststart")
	assert.Contains(t, joined, "-map [vout]")
	assert.NotContains(t, joined, "-c:a", "silent output carries no audio codec")
	assert.Equal(t, "/tmp/out.mp4", args[len(args)-1])
}

func TestAudioTrackIsResampledAndMuxed(t *testing.T) {
	req := threeSlides()
	req.AudioPath = "/tmp/music.mp3"

	args, err := testComposer().Args(req)
	require.NoError(t, err)

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-i /tmp/music.mp3")
	assert.Contains(t, joined, "-map [aout]")
	assert.Contains(t, joined, "-c:a aac")
	assert.Contains(t, joined, "-b:a 192k")

	graph := filterComplex(t, args)
	// The audio input index comes after all slide inputs.
	assert.Contains(t, graph, "[3:a]aresample=sample_rate=44100,apad[aout]")
}

func TestOutputDurationIsPinnedRegardlessOfAudioLength(t *testing.T) {
	req := threeSlides()
	req.AudioPath = "/tmp/music.mp3"

	args, err := testComposer().Args(req)
	require.NoError(t, err)

	joined := strings.Join(args, " ")
	// 3 + 12.5 + 3 seconds: the output is cut at the requested timeline, so
	// a track longer than the slideshow is trimmed and a shorter one rides
	// on the graph's silence padding instead of ending the encode early.
	assert.Contains(t, joined, "-t 18.500 -movflags")
	assert.NotContains(t, joined, "-shortest")

	graph := filterComplex(t, args)
	assert.Contains(t, graph, "apad")
}

func TestSingleSlideComposition(t *testing.T) {
	req := Request{
		SlidePaths:   []string{"/tmp/only.png"},
		DurationsSec: []float64{5},
		OutputPath:   "/tmp/out.mp4",
	}
	args, err := testComposer().Args(req)
	require.NoError(t, err)

	graph := filterComplex(t, args)
	assert.NotContains(t, graph, "concat")
	assert.Contains(t, graph, "[hold0]fps=fps=30")
}

func TestArgsRejectBadRequests(t *testing.T) {
	c := testComposer()

	_, err := c.Args(Request{OutputPath: "/tmp/o.mp4"})
	assert.ErrorContains(t, err, "no slides")

	_, err = c.Args(Request{
		SlidePaths:   []string{"/a.png", "/b.png"},
		DurationsSec: []float64{1},
		OutputPath:   "/tmp/o.mp4",
	})
	assert.ErrorContains(t, err, "mismatch")

	_, err = c.Args(Request{
		SlidePaths:   []string{"/a.png"},
		DurationsSec: []float64{0},
		OutputPath:   "/tmp/o.mp4",
	})
	assert.ErrorContains(t, err, "non-positive duration")

	_, err = c.Args(Request{SlidePaths: []string{"/a.png"}, DurationsSec: []float64{1}})
	assert.ErrorContains(t, err, "output path")
}

func TestTotalDurationIsExactSum(t *testing.T) {
	req := Request{DurationsSec: []float64{3, 5, 8.4, 20}}
	assert.InDelta(t, 36.4, req.TotalDuration(), 1e-9)
}

func TestCompositionErrorKeepsBackendDiagnostic(t *testing.T) {
	err := &CompositionError{Output: "No such filter: 'bogus'", Err: fmt.Errorf("exit status 1")}
	assert.Contains(t, err.Error(), "No such filter")
	assert.Contains(t, err.Error(), "exit status 1")
}

func filterComplex(t *testing.T, args []string) string {
	t.Helper()
	for i, a := range args {
		if a == "-filter_complex" {
			require.Less(t, i+1, len(args))
			return args[i+1]
		}
	}
	t.Fatal("no -filter_complex in args")
	return ""
}

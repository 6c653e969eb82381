package videogen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsreel/internal/compose"
	"newsreel/internal/segmenter"
	"newsreel/internal/types"
)

// fakeRenderer records renders and writes an empty file per slide.
type fakeRenderer struct {
	mu       sync.Mutex
	rendered []types.Segment
	failAt   int // order to fail at, -1 for never
}

func (f *fakeRenderer) Render(_ context.Context, seg types.Segment, outPath string) error {
	f.mu.Lock()
	f.rendered = append(f.rendered, seg)
	f.mu.Unlock()
	if f.failAt >= 0 && seg.Order == f.failAt {
		return fmt.Errorf("boom at %d", seg.Order)
	}
	return os.WriteFile(outPath, []byte("png"), 0644)
}

// fakeComposer records the request and reports the requested total.
type fakeComposer struct {
	mu   sync.Mutex
	req  compose.Request
	fail bool
}

func (f *fakeComposer) Compose(_ context.Context, req compose.Request) (float64, error) {
	f.mu.Lock()
	f.req = req
	f.mu.Unlock()
	if f.fail {
		return 0, &compose.CompositionError{Err: fmt.Errorf("encode failed")}
	}
	// The output would be written here in production; the caller only needs
	// the path and the realized duration.
	return req.TotalDuration(), nil
}

func newTestService(t *testing.T, fr *fakeRenderer, fc *fakeComposer) *Service {
	t.Helper()
	return NewService(
		segmenter.New(segmenter.DefaultOptions()),
		fr, fc,
		t.TempDir(), "", 3, nil,
	)
}

func TestGenerateReportsSumOfSegmentDurations(t *testing.T) {
	fr := &fakeRenderer{failAt: -1}
	fc := &fakeComposer{}
	svc := newTestService(t, fr, fc)

	res, err := svc.Generate(context.Background(), VideoRequest{
		Title:   "X",
		Content: "First sentence goes here. Second sentence goes here.",
	})
	require.NoError(t, err)

	opts := segmenter.DefaultOptions()
	assert.Equal(t, 4, res.SegmentCount)
	assert.InDelta(t, opts.TitleSec+opts.HookSec+opts.CTASec+fc.req.DurationsSec[2], res.DurationSec, 1e-9)

	var sum float64
	for _, d := range fc.req.DurationsSec {
		sum += d
	}
	assert.InDelta(t, sum, res.DurationSec, 1e-9, "reported duration is the exact sum handed to the composer")
}

func TestGenerateEmptyContentStillSucceeds(t *testing.T) {
	fr := &fakeRenderer{failAt: -1}
	fc := &fakeComposer{}
	svc := newTestService(t, fr, fc)

	res, err := svc.Generate(context.Background(), VideoRequest{Title: "X"})
	require.NoError(t, err)

	assert.Equal(t, 3, res.SegmentCount)
	opts := segmenter.DefaultOptions()
	assert.GreaterOrEqual(t, res.DurationSec, opts.TitleSec+opts.HookSec+opts.CTASec)
	assert.Equal(t, ".mp4", filepath.Ext(res.VideoPath))
}

func TestSlideOrderMatchesSegmentOrder(t *testing.T) {
	fr := &fakeRenderer{failAt: -1}
	fc := &fakeComposer{}
	svc := newTestService(t, fr, fc)

	_, err := svc.Generate(context.Background(), VideoRequest{
		Title:   "T",
		Content: "One sentence here. Two sentences here. Three sentences here. Four sentences here.",
	})
	require.NoError(t, err)

	require.Len(t, fc.req.SlidePaths, 5)
	for i, path := range fc.req.SlidePaths {
		assert.Contains(t, path, fmt.Sprintf("slide_%03d.png", i),
			"composer consumes slides in segment order even with parallel rendering")
	}
	assert.Len(t, fr.rendered, 5)
}

func TestTempSlidesAreRemovedOnSuccess(t *testing.T) {
	fr := &fakeRenderer{failAt: -1}
	fc := &fakeComposer{}
	svc := newTestService(t, fr, fc)

	res, err := svc.Generate(context.Background(), VideoRequest{Title: "X"})
	require.NoError(t, err)

	tmpRoot := filepath.Join(filepath.Dir(res.VideoPath), "tmp")
	entries, err := os.ReadDir(tmpRoot)
	if err == nil {
		assert.Empty(t, entries, "job temp dir must be removed after composition")
	}
}

func TestTempSlidesAreRemovedOnRenderFailure(t *testing.T) {
	fr := &fakeRenderer{failAt: 1}
	fc := &fakeComposer{}
	svc := newTestService(t, fr, fc)

	_, err := svc.Generate(context.Background(), VideoRequest{Title: "X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	// The renderer failed, so composition never ran.
	assert.Empty(t, fc.req.SlidePaths)
}

func TestComposeFailureIsFatalAndTyped(t *testing.T) {
	fr := &fakeRenderer{failAt: -1}
	fc := &fakeComposer{fail: true}
	svc := newTestService(t, fr, fc)

	_, err := svc.Generate(context.Background(), VideoRequest{Title: "X"})
	require.Error(t, err)

	var compErr *compose.CompositionError
	assert.ErrorAs(t, err, &compErr)
}

func TestGenerateCompilationCountsArticles(t *testing.T) {
	fr := &fakeRenderer{failAt: -1}
	fc := &fakeComposer{}
	svc := newTestService(t, fr, fc)

	res, err := svc.GenerateCompilation(context.Background(), CompilationRequest{
		Articles: []types.Article{
			{Title: "A1", Body: "Alpha body sentence. Another alpha sentence.", Source: "r/news"},
			{Title: "A2", Body: "Beta body sentence goes on.", Source: "Wire"},
		},
		CompilationTitle: "Roundup",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.ArticleCount)
	// title + hook + 2×(numbering, subtitle, body, source) + cta
	assert.Equal(t, 11, res.SegmentCount)
}

func TestControlCharactersAreStrippedBeforeSegmentation(t *testing.T) {
	fr := &fakeRenderer{failAt: -1}
	fc := &fakeComposer{}
	svc := newTestService(t, fr, fc)

	_, err := svc.Generate(context.Background(), VideoRequest{
		Title:   "Tit\x00le",
		Content: "Line one\nstill the same sentence. Second\x07 sentence here.",
	})
	require.NoError(t, err)

	for _, seg := range fr.rendered {
		assert.NotContains(t, seg.Text, "\x00")
		assert.NotContains(t, seg.Text, "\x07")
		assert.NotContains(t, seg.Text, "\n")
	}
}

func TestConcurrentJobsUseDistinctPaths(t *testing.T) {
	fr := &fakeRenderer{failAt: -1}
	svc := NewService(
		segmenter.New(segmenter.DefaultOptions()),
		fr, &fakeComposer{},
		t.TempDir(), "", 2, nil,
	)

	var wg sync.WaitGroup
	paths := make([]string, 4)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Generate(context.Background(), VideoRequest{Title: fmt.Sprintf("T%d", i)})
			if err == nil {
				paths[i] = res.VideoPath
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, p := range paths {
		require.NotEmpty(t, p)
		assert.False(t, seen[p], "output paths must not collide")
		seen[p] = true
	}
}

// Package videogen is the public entry point of the composition pipeline:
// it wires the segmenter, the frame renderer and the timeline composer,
// owns the job-scoped temp directory, and reports the output path and the
// realized duration.
package videogen

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"newsreel/internal/compose"
	"newsreel/internal/frames"
	"newsreel/internal/segmenter"
	"newsreel/internal/types"
)

// FrameRenderer renders one segment into a still image at path.
type FrameRenderer interface {
	Render(ctx context.Context, seg types.Segment, outPath string) error
}

// Composer encodes held slides into the final video.
type Composer interface {
	Compose(ctx context.Context, req compose.Request) (float64, error)
}

// VideoRequest is one single-article generation call.
type VideoRequest struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	Hook          string `json:"hook"`
	ThumbnailText string `json:"thumbnailText"`
}

// CompilationRequest is one multi-article roundup call.
type CompilationRequest struct {
	Articles         []types.Article `json:"articles"`
	CompilationTitle string          `json:"compilationTitle"`
	Hook             string          `json:"hook"`
	ThumbnailText    string          `json:"thumbnailText"`
}

// Result is the job's externally visible deliverable.
type Result struct {
	VideoPath    string  `json:"videoPath"`
	DurationSec  float64 `json:"duration"`
	SegmentCount int     `json:"segmentCount"`
	ArticleCount int     `json:"articleCount,omitempty"`
}

// Service runs composition jobs. Each call is synchronous, single-attempt
// and independent; concurrent jobs never collide because all paths are
// namespaced by the job ID.
type Service struct {
	segmenter     *segmenter.Segmenter
	frames        FrameRenderer
	composer      Composer
	outputDir     string
	audioPath     string
	renderWorkers int
	logger        *slog.Logger
}

func NewService(seg *segmenter.Segmenter, fr FrameRenderer, comp Composer, outputDir, audioPath string, renderWorkers int, logger *slog.Logger) *Service {
	if renderWorkers < 1 {
		renderWorkers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		segmenter:     seg,
		frames:        fr,
		composer:      comp,
		outputDir:     outputDir,
		audioPath:     audioPath,
		renderWorkers: renderWorkers,
		logger:        logger,
	}
}

// Generate produces a video for a single article.
func (s *Service) Generate(ctx context.Context, req VideoRequest) (*Result, error) {
	segs := s.segmenter.Segment(
		clean(req.Title), clean(req.Hook), clean(req.Content), clean(req.ThumbnailText),
	)
	return s.run(ctx, segs, 0)
}

// GenerateCompilation produces a multi-article roundup video.
func (s *Service) GenerateCompilation(ctx context.Context, req CompilationRequest) (*Result, error) {
	articles := make([]types.Article, len(req.Articles))
	for i, a := range req.Articles {
		a.Title = clean(a.Title)
		a.Body = clean(a.Body)
		a.Source = clean(a.Source)
		articles[i] = a
	}

	segs := s.segmenter.SegmentCompilation(
		articles, clean(req.CompilationTitle), clean(req.Hook), clean(req.ThumbnailText),
	)
	res, err := s.run(ctx, segs, len(req.Articles))
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) run(ctx context.Context, segs []types.Segment, articleCount int) (*Result, error) {
	if len(segs) == 0 {
		return nil, segmenter.ErrNoSegments
	}

	jobID := newJobID()
	start := time.Now()
	s.logger.Info("starting composition job", "job", jobID, "segments", len(segs))

	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	// Slide rasters are intermediate artifacts; scope them to the job and
	// remove them on every exit path, success or failure.
	tmpDir := filepath.Join(s.outputDir, "tmp", jobID)
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return nil, fmt.Errorf("create job temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	slides, err := s.renderSlides(ctx, segs, tmpDir)
	if err != nil {
		return nil, err
	}

	outputPath := filepath.Join(s.outputDir, fmt.Sprintf("newsreel_%s.mp4", jobID))
	creq := compose.Request{
		SlidePaths:   slidePaths(slides),
		DurationsSec: durations(segs),
		AudioPath:    s.audioPath,
		OutputPath:   outputPath,
	}

	duration, err := s.composer.Compose(ctx, creq)
	if err != nil {
		return nil, err
	}

	s.logger.Info("composition job done",
		"job", jobID, "duration_sec", duration, "elapsed", time.Since(start).Round(time.Millisecond))

	return &Result{
		VideoPath:    outputPath,
		DurationSec:  duration,
		SegmentCount: len(segs),
		ArticleCount: articleCount,
	}, nil
}

// renderSlides renders every segment's slide, 1:1 and order-preserving.
// Frames are pure functions of their segment, so independent renders run on
// a bounded worker pool; the slide slice is indexed by segment order and
// the narrative sequence is untouched.
func (s *Service) renderSlides(ctx context.Context, segs []types.Segment, tmpDir string) ([]types.Slide, error) {
	slides := make([]types.Slide, len(segs))
	errs := make([]error, len(segs))

	sem := make(chan struct{}, s.renderWorkers)
	var wg sync.WaitGroup

	for i, seg := range segs {
		wg.Add(1)
		go func(i int, seg types.Segment) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			path := filepath.Join(tmpDir, fmt.Sprintf("slide_%03d.png", seg.Order))
			if err := s.frames.Render(ctx, seg, path); err != nil {
				errs[i] = err
				return
			}
			slides[i] = types.Slide{
				SourceSegmentOrder: seg.Order,
				ImagePath:          path,
				StyleVariant:       frames.StyleVariant(seg.Kind, seg.Order),
			}
		}(i, seg)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return slides, nil
}

// newJobID is time-based-unique: collision-acceptable at human request
// rates, and sortable by creation time in the output directory.
func newJobID() string {
	return fmt.Sprintf("%d_%s", time.Now().Unix(), uuid.NewString()[:8])
}

// clean strips control characters from user-supplied text before it can
// reach filter-graph construction.
func clean(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

func slidePaths(slides []types.Slide) []string {
	paths := make([]string, len(slides))
	for i, sl := range slides {
		paths[i] = sl.ImagePath
	}
	return paths
}

func durations(segs []types.Segment) []float64 {
	ds := make([]float64, len(segs))
	for i, seg := range segs {
		ds[i] = seg.DurationSec
	}
	return ds
}

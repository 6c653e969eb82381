package segmenter

import (
	"errors"
	"fmt"
	"strings"

	"newsreel/internal/types"
)

// ErrNoSegments is returned when a caller tries to build a job out of an
// empty segment sequence. Segment itself never produces one: even fully
// empty input yields title, hook and CTA segments.
var ErrNoSegments = errors.New("segmenter: no segments produced")

// Options controls segment durations and body batching.
type Options struct {
	WordsPerSec    float64
	MinBodySec     float64
	MaxBodySec     float64
	TitleSec       float64
	HookSec        float64
	NumberingSec   float64
	SubtitleSec    float64
	SourceSec      float64
	CTASec         float64
	BatchSize      int
	MinSentenceLen int
}

// DefaultOptions returns the timing band used for production videos:
// a ~2.5 words/sec reading rate with body slides clamped to 8-20 seconds.
func DefaultOptions() Options {
	return Options{
		WordsPerSec:    2.5,
		MinBodySec:     8,
		MaxBodySec:     20,
		TitleSec:       3,
		HookSec:        5,
		NumberingSec:   2,
		SubtitleSec:    4,
		SourceSec:      3,
		CTASec:         3,
		BatchSize:      2,
		MinSentenceLen: 10,
	}
}

// Segmenter turns raw article text into an ordered narration sequence.
// It is a pure in-memory transform: no I/O, no failure modes on valid input.
type Segmenter struct {
	opts Options
}

func New(opts Options) *Segmenter {
	if opts.WordsPerSec <= 0 {
		opts.WordsPerSec = 2.5
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 2
	}
	return &Segmenter{opts: opts}
}

// Segment builds the narration sequence for a single-article video:
// title card, hook, batched body slides, call to action.
func (s *Segmenter) Segment(title, hook, body, caption string) []types.Segment {
	title, hook, caption = s.fallbacks(title, hook, caption)

	segs := []types.Segment{
		{Kind: types.KindTitle, Text: caption, DurationSec: s.opts.TitleSec},
		{Kind: types.KindHook, Text: hook, DurationSec: s.opts.HookSec},
	}
	segs = append(segs, s.bodySegments(body)...)
	segs = append(segs, types.Segment{
		Kind:        types.KindCTA,
		Text:        "Follow for more stories like this",
		DurationSec: s.opts.CTASec,
	})

	return renumber(segs)
}

// SegmentCompilation builds the interleaved sequence for a multi-article
// roundup: the title/hook wrapper, then per article a numbering card, the
// article headline, one body slide and a source-attribution card, in input
// order, closed by the CTA.
func (s *Segmenter) SegmentCompilation(articles []types.Article, title, hook, caption string) []types.Segment {
	title, hook, caption = s.fallbacks(title, hook, caption)

	segs := []types.Segment{
		{Kind: types.KindTitle, Text: caption, DurationSec: s.opts.TitleSec},
		{Kind: types.KindHook, Text: hook, DurationSec: s.opts.HookSec},
	}

	for i, art := range articles {
		segs = append(segs, types.Segment{
			Kind:        types.KindNumbering,
			Text:        fmt.Sprintf("#%d", i+1),
			DurationSec: s.opts.NumberingSec,
		})
		segs = append(segs, types.Segment{
			Kind:        types.KindSubtitle,
			Text:        strings.TrimSpace(art.Title),
			DurationSec: s.opts.SubtitleSec,
		})
		segs = append(segs, s.articleBodySegment(art))
		segs = append(segs, types.Segment{
			Kind:        types.KindSource,
			Text:        sourceLine(art),
			DurationSec: s.opts.SourceSec,
		})
	}

	segs = append(segs, types.Segment{
		Kind:        types.KindCTA,
		Text:        "Follow for more stories like this",
		DurationSec: s.opts.CTASec,
	})

	return renumber(segs)
}

// TotalDuration returns the exact sum of per-segment durations. This sum
// is authoritative for the whole job: the composer realizes it rather than
// re-measuring the encoded output.
func TotalDuration(segs []types.Segment) float64 {
	var total float64
	for _, seg := range segs {
		total += seg.DurationSec
	}
	return total
}

func (s *Segmenter) fallbacks(title, hook, caption string) (string, string, string) {
	title = strings.TrimSpace(title)
	hook = strings.TrimSpace(hook)
	caption = strings.TrimSpace(caption)

	if title == "" {
		title = "Today's Top Story"
	}
	if hook == "" {
		hook = title + " — here's what we know"
	}
	if caption == "" {
		caption = title
	}
	return title, hook, caption
}

// bodySegments splits the body on sentence terminators, drops fragments too
// short to be real sentences, and groups the rest into fixed-size batches,
// one slide per batch.
func (s *Segmenter) bodySegments(body string) []types.Segment {
	sentences := SplitSentences(body, s.opts.MinSentenceLen)

	var segs []types.Segment
	for start := 0; start < len(sentences); start += s.opts.BatchSize {
		end := start + s.opts.BatchSize
		if end > len(sentences) {
			end = len(sentences)
		}
		text := strings.Join(sentences[start:end], " ")
		segs = append(segs, types.Segment{
			Kind:        types.KindBody,
			Text:        text,
			DurationSec: s.clampDuration(text),
		})
	}
	return segs
}

// articleBodySegment condenses one article into a single body slide: the
// first batch of usable sentences, falling back to the headline when the
// body has nothing displayable.
func (s *Segmenter) articleBodySegment(art types.Article) types.Segment {
	sentences := SplitSentences(art.Body, s.opts.MinSentenceLen)
	if len(sentences) > s.opts.BatchSize {
		sentences = sentences[:s.opts.BatchSize]
	}

	text := strings.Join(sentences, " ")
	if text == "" {
		text = strings.TrimSpace(art.Title)
	}
	return types.Segment{
		Kind:        types.KindBody,
		Text:        text,
		DurationSec: s.clampDuration(text),
	}
}

// clampDuration derives a display duration from word count at the assumed
// reading rate, clamped to the configured band. Monotonic in word count
// within the band and always positive.
func (s *Segmenter) clampDuration(text string) float64 {
	words := len(strings.Fields(text))
	d := float64(words) / s.opts.WordsPerSec
	if d < s.opts.MinBodySec {
		return s.opts.MinBodySec
	}
	if d > s.opts.MaxBodySec {
		return s.opts.MaxBodySec
	}
	return d
}

// SplitSentences cuts text on sentence-terminating punctuation and discards
// trimmed fragments shorter than minLen runes (boilerplate, stray initials).
func SplitSentences(text string, minLen int) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		sentence := strings.TrimSpace(current.String())
		current.Reset()
		if len([]rune(sentence)) >= minLen {
			sentences = append(sentences, sentence)
		}
	}

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			flush()
		}
	}
	flush()

	return sentences
}

func sourceLine(art types.Article) string {
	src := strings.TrimSpace(art.Source)
	if src == "" {
		src = "our newsroom"
	}
	return "Source: " + src
}

func renumber(segs []types.Segment) []types.Segment {
	for i := range segs {
		segs[i].Order = i
		segs[i].Text = strings.TrimSpace(segs[i].Text)
	}
	return segs
}

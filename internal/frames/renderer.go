// Package frames renders narration segments into fixed-resolution still
// slides by shelling out to ffmpeg: a deterministic two-color gradient
// background, a faint grid motif, the word-wrapped caption with an outline,
// and a banner strip on body slides.
package frames

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"newsreel/internal/filtergraph"
	"newsreel/internal/types"
)

// RenderError is a filesystem or raster-encoding failure while producing a
// slide. Fatal to the job; never caused by the caption content itself.
type RenderError struct {
	Path   string
	Output string
	Err    error
}

func (e *RenderError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("render slide %s: %v: %s", e.Path, e.Err, e.Output)
	}
	return fmt.Sprintf("render slide %s: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// style is a top/bottom gradient color pair, as 0xRRGGBB.
type style struct {
	top    string
	bottom string
}

// palette holds the rotating background pairs. Title and hook slides use
// fixed entries so every video opens with the same brand look; other kinds
// rotate by segment order so consecutive slides stay visually distinct.
var palette = [...]style{
	{top: "0x101935", bottom: "0x2C4875"}, // midnight blue
	{top: "0x2B0F33", bottom: "0x6B2D5C"}, // plum
	{top: "0x0D2818", bottom: "0x1F6E4A"}, // forest
	{top: "0x33160D", bottom: "0x8A4B24"}, // amber
	{top: "0x19191F", bottom: "0x44445A"}, // slate
}

// PaletteSize is the modulus for the order-based style variant.
const PaletteSize = len(palette)

// Renderer produces slides at a fixed resolution. Rendering the same
// segment with the same variant index twice yields pixel-identical output:
// every filter in the chain is deterministic.
type Renderer struct {
	width    int
	height   int
	fontFile string
	logger   *slog.Logger
}

func New(width, height int, fontFile string, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{width: width, height: height, fontFile: fontFile, logger: logger}
}

// StyleVariant is the deterministic palette index for a segment.
func StyleVariant(kind types.SegmentKind, order int) int {
	switch kind {
	case types.KindTitle:
		return 0
	case types.KindHook:
		return 1
	default:
		return order % PaletteSize
	}
}

// Render writes the slide for seg to outPath as a PNG.
func (r *Renderer) Render(ctx context.Context, seg types.Segment, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return &RenderError{Path: outPath, Err: err}
	}

	args := r.Args(seg, outPath)
	r.logger.Debug("rendering slide", "order", seg.Order, "kind", seg.Kind, "path", outPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &RenderError{Path: outPath, Output: tail(stderr.String(), 2000), Err: err}
	}
	return nil
}

// Args builds the full ffmpeg argument list for one slide. Pure function of
// the segment and the renderer config, so identical segments produce
// identical commands.
func (r *Renderer) Args(seg types.Segment, outPath string) []string {
	g := r.graph(seg)
	return []string{
		"-y", "-nostats", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=black:s=%dx%d", r.width, r.height),
		"-filter_complex", g.String(),
		"-map", "[slide]",
		"-frames:v", "1",
		outPath,
	}
}

func (r *Renderer) graph(seg types.Segment) *filtergraph.Graph {
	st := palette[StyleVariant(seg.Kind, seg.Order)]
	topR, topG, topB := splitHex(st.top)
	botR, botG, botB := splitHex(st.bottom)

	filters := []filtergraph.Filter{
		filtergraph.F("format", filtergraph.P("pix_fmts", "rgb24")),
		// Vertical gradient interpolated per row between the pair.
		filtergraph.F("geq",
			filtergraph.P("r", gradientExpr(topR, botR, r.height)),
			filtergraph.P("g", gradientExpr(topG, botG, r.height)),
			filtergraph.P("b", gradientExpr(topB, botB, r.height)),
		),
		filtergraph.F("drawgrid",
			filtergraph.P("width", "96"),
			filtergraph.P("height", "96"),
			filtergraph.P("thickness", "1"),
			filtergraph.P("color", "white@0.05"),
		),
	}

	if seg.Kind == types.KindBody {
		filters = append(filters, r.bannerFilters()...)
	}
	filters = append(filters, r.captionFilters(seg.Text)...)

	g := &filtergraph.Graph{}
	g.Chain("0:v", "slide", filters...)
	return g
}

// bannerFilters draw the fixed "BREAKING" strip near the top of body slides.
func (r *Renderer) bannerFilters() []filtergraph.Filter {
	bannerY := r.height / 9
	return []filtergraph.Filter{
		filtergraph.F("drawbox",
			filtergraph.P("x", "0"),
			filtergraph.P("y", fmt.Sprintf("%d", bannerY)),
			filtergraph.P("w", fmt.Sprintf("%d", r.width)),
			filtergraph.P("h", "90"),
			filtergraph.P("color", "0xC81E1E@0.92"),
			filtergraph.P("t", "fill"),
		),
		r.drawtext("BREAKING", 56, "60", fmt.Sprintf("%d", bannerY+17)),
	}
}

// captionFilters lay out the wrapped caption as one drawtext per line,
// centered horizontally, with the block centered vertically.
func (r *Renderer) captionFilters(text string) []filtergraph.Filter {
	lines, fontSize := Layout(text, r.width, r.height)

	lineHeight := fontSize * 5 / 4
	blockTop := (r.height - lineHeight*len(lines)) / 2

	filters := make([]filtergraph.Filter, 0, len(lines))
	for i, line := range lines {
		y := blockTop + i*lineHeight
		filters = append(filters, r.drawtext(line, fontSize, "(w-text_w)/2", fmt.Sprintf("%d", y)))
	}
	return filters
}

func (r *Renderer) drawtext(text string, fontSize int, x, y string) filtergraph.Filter {
	params := []filtergraph.Param{
		filtergraph.P("text", filtergraph.EscapeText(text)),
		filtergraph.P("fontsize", fmt.Sprintf("%d", fontSize)),
		filtergraph.P("fontcolor", "white"),
		filtergraph.P("borderw", "4"),
		filtergraph.P("bordercolor", "black"),
		filtergraph.P("x", x),
		filtergraph.P("y", y),
	}
	if r.fontFile != "" {
		params = append(params, filtergraph.P("fontfile", r.fontFile))
	}
	return filtergraph.F("drawtext", params...)
}

const (
	maxFontSize   = 96
	minFontSize   = 40
	fontSizeStep  = 8
	widthFraction = 0.82
	// Approximate advance width of a glyph as a fraction of the font size.
	// Good enough for layout: drawtext centers each line itself.
	glyphWidthRatio = 0.56
	heightFraction  = 0.72
)

// Layout word-wraps text to fit the frame's width budget, shrinking the
// font from maxFontSize down to minFontSize until the longest line and the
// block height fit. At the floor size, overlong lines are truncated with an
// ellipsis rather than shrinking further.
func Layout(text string, frameWidth, frameHeight int) ([]string, int) {
	maxWidth := float64(frameWidth) * widthFraction
	maxHeight := float64(frameHeight) * heightFraction

	for size := maxFontSize; size >= minFontSize; size -= fontSizeStep {
		lines := wrap(text, maxChars(size, maxWidth))
		blockHeight := float64(len(lines)) * float64(size) * 1.25
		if longestLine(lines) <= maxChars(size, maxWidth) && blockHeight <= maxHeight {
			return lines, size
		}
	}

	limit := maxChars(minFontSize, maxWidth)
	lines := wrap(text, limit)
	maxLines := int(maxHeight / (float64(minFontSize) * 1.25))
	if maxLines < 1 {
		maxLines = 1
	}
	for i, line := range lines {
		lines[i] = truncate(line, limit)
	}
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		last := []rune(lines[maxLines-1])
		if len(last)+1 > limit {
			last = last[:limit-1]
		}
		lines[maxLines-1] = string(last) + "…"
	}
	return lines, minFontSize
}

func maxChars(fontSize int, maxWidth float64) int {
	n := int(maxWidth / (float64(fontSize) * glyphWidthRatio))
	if n < 1 {
		return 1
	}
	return n
}

// wrap greedily packs words into lines of at most limit runes. A single
// word longer than the limit gets its own line; worst case is one word per
// line, which is always representable.
func wrap(text string, limit int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if len([]rune(current))+1+len([]rune(word)) <= limit {
			current += " " + word
		} else {
			lines = append(lines, current)
			current = word
		}
	}
	return append(lines, current)
}

func longestLine(lines []string) int {
	longest := 0
	for _, line := range lines {
		if n := len([]rune(line)); n > longest {
			longest = n
		}
	}
	return longest
}

func truncate(line string, limit int) string {
	runes := []rune(line)
	if len(runes) <= limit {
		return line
	}
	if limit < 2 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}

// gradientExpr interpolates one color component across the frame height.
func gradientExpr(from, to, height int) string {
	return fmt.Sprintf("%d+(%d-%d)*Y/%d", from, to, from, height)
}

func splitHex(hex string) (int, int, int) {
	var r, g, b int
	fmt.Sscanf(hex, "0x%02X%02X%02X", &r, &g, &b)
	return r, g, b
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

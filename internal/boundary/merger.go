package boundary

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/anthonynsimon/bild/blend"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/ocr-decoder/internal/shape"
)

// Merger decides whether two sequentially adjacent shapes belong to one
// glyph and builds the merged shape.
//
// Both methods must accept any two non-nil shapes. Merging a shape with
// itself is the caller's responsibility to avoid.
type Merger interface {
	// CheckMerge returns the probability, in [0, 1], that a and b are
	// fragments of one glyph. It has no side effects.
	CheckMerge(a, b *shape.Shape) float64

	// Merge returns the shape obtained by merging a and b: the union of the
	// bounding boxes, the darker of the two brightness grids at each pixel,
	// and the joined ground-truth letters (see shape.JoinLetters).
	Merge(a, b *shape.Shape) *shape.Shape
}

// Default GapMerger parameters.
const (
	DefaultGapScale      = 0.15
	DefaultMaxWidthRatio = 1.6
)

// GapMerger is a geometric Merger.
//
// # Scoring
//
// For side-by-side shapes the score decays exponentially with the gap between
// them, measured in units of the taller shape's height:
//
//	p = exp(-gap / (GapScale * height))
//
// Shapes that share columns (a dot above a stem, an accent over a vowel) are
// scored by the fraction of the narrower shape's width that overlaps the
// other one.
//
// In both cases, if the merged box would be wider than MaxWidthRatio times
// its height, p is scaled down by MaxWidthRatio / ratio. Real glyphs are
// rarely much wider than tall, so this keeps whole letters apart even when
// the gap between them is small.
type GapMerger struct {
	// GapScale is the gap, as a fraction of height, at which the score drops
	// to 1/e.
	GapScale float64

	// MaxWidthRatio is the widest width/height ratio accepted without
	// penalty.
	MaxWidthRatio float64
}

// NewGapMerger returns a GapMerger with the default parameters.
func NewGapMerger() *GapMerger {
	return &GapMerger{GapScale: DefaultGapScale, MaxWidthRatio: DefaultMaxWidthRatio}
}

// CheckMerge implements Merger.
func (m *GapMerger) CheckMerge(a, b *shape.Shape) float64 {
	union := a.Bounds.Union(b.Bounds)
	height := max(a.Height(), b.Height())
	if height <= 0 || union.Empty() {
		return 0
	}

	var p float64
	overlap := a.Bounds.HorizontalOverlap(b.Bounds)
	narrower := min(a.Width(), b.Width())
	if overlap > 0 && narrower > 0 {
		p = float64(overlap) / float64(narrower)
	} else {
		scale := m.GapScale
		if scale <= 0 {
			scale = DefaultGapScale
		}
		gap := a.Bounds.HorizontalGap(b.Bounds)
		p = math.Exp(-float64(gap) / (scale * float64(height)))
	}

	limit := m.MaxWidthRatio
	if limit <= 0 {
		limit = DefaultMaxWidthRatio
	}
	if ratio := float64(union.Width()) / float64(union.Height()); ratio > limit {
		p *= limit / ratio
	}
	return clamp(p)
}

// Merge implements Merger. Each shape is pasted onto a blank canvas the size
// of the union box and the two canvases are combined with a darken blend.
func (m *GapMerger) Merge(a, b *shape.Shape) *shape.Shape {
	union := a.Bounds.Union(b.Bounds)
	w, h := union.Width(), union.Height()

	combined := blend.Darken(canvas(a, union), canvas(b, union))

	pixels := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(pixels, pixels.Bounds(), combined, combined.Bounds().Min, draw.Src)

	merged := shape.New(union, pixels)
	merged.Letter = shape.JoinLetters(a.Letter, b.Letter)
	return merged
}

// canvas renders s onto a paper-white image covering union.
func canvas(s *shape.Shape, union shape.Bounds) *image.NRGBA {
	bg := imaging.New(union.Width(), union.Height(), color.Gray{Y: shape.Paper})
	if s.Pixels == nil {
		return bg
	}
	return imaging.Paste(bg, s.Pixels, image.Pt(s.Bounds.X1-union.X1, s.Bounds.Y1-union.Y1))
}

func clamp(p float64) float64 {
	switch {
	case math.IsNaN(p) || p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/ocr-decoder/internal/feature"
	"github.com/ironsheep/ocr-decoder/internal/model"
	"github.com/ironsheep/ocr-decoder/internal/shape"
)

// GlyphImageName is the name of the GlyphImage feature result.
const GlyphImageName = "GlyphImage"

const (
	defaultPadding   = 8
	defaultMinHeight = 32
)

// GlyphImage renders the unit's shape as PNG bytes. Tesseract reads small,
// tightly cropped glyphs poorly, so the shape is upscaled to MinHeight and
// framed with Padding pixels of paper.
type GlyphImage struct {
	Padding   int
	MinHeight int
}

// Name implements feature.Feature.
func (GlyphImage) Name() string { return GlyphImageName }

// Check implements feature.Feature.
func (f GlyphImage) Check(ctx *feature.Context) (*model.FeatureResult, error) {
	s := ctx.Shape()
	if s == nil {
		return nil, fmt.Errorf("shape %d not in arena", ctx.Unit.Shape)
	}
	b, err := EncodeGlyph(s, f.Padding, f.MinHeight)
	if err != nil {
		return nil, err
	}
	r := model.StringResult(GlyphImageName, string(b))
	return &r, nil
}

// Register adds GlyphImage to r. The descriptor takes an optional padding
// and minimum height: GlyphImage, GlyphImage(4) or GlyphImage(4,48).
func Register(r feature.Registry) {
	r[GlyphImageName] = func(args []int) ([]feature.Feature, error) {
		f := GlyphImage{Padding: defaultPadding, MinHeight: defaultMinHeight}
		switch len(args) {
		case 0:
		case 2:
			f.MinHeight = args[1]
			fallthrough
		case 1:
			f.Padding = args[0]
		default:
			return nil, fmt.Errorf("GlyphImage takes at most (padding,min_height)")
		}
		if f.Padding < 0 || f.MinHeight < 0 {
			return nil, fmt.Errorf("GlyphImage arguments must not be negative")
		}
		return []feature.Feature{f}, nil
	}
}

// EncodeGlyph renders s as a PNG: upscaled so its height is at least
// minHeight, then padded on every side.
func EncodeGlyph(s *shape.Shape, padding, minHeight int) ([]byte, error) {
	if s.Pixels == nil || s.Pixels.Bounds().Empty() {
		return nil, fmt.Errorf("shape %d has no pixels", s.ID)
	}
	var img image.Image = s.Pixels
	if h := s.Pixels.Bounds().Dy(); minHeight > 0 && h < minHeight {
		img = imaging.Resize(img, 0, minHeight, imaging.NearestNeighbor)
	}
	r := img.Bounds()
	canvas := imaging.New(r.Dx()+2*padding, r.Dy()+2*padding, color.White)
	canvas = imaging.Paste(canvas, img, image.Pt(padding, padding))

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode glyph: %w", err)
	}
	return buf.Bytes(), nil
}

// GlyphFromResults returns the PNG bytes carried by a GlyphImage result.
func GlyphFromResults(results []model.FeatureResult) ([]byte, bool) {
	r, ok := model.Find(results, GlyphImageName)
	if !ok {
		return nil, false
	}
	text, ok := r.Text()
	if !ok || text == "" {
		return nil, false
	}
	return []byte(text), true
}

// Symbol is one character recognised by Tesseract with its confidence in
// percent.
type Symbol struct {
	Text       string
	Confidence float64
}

// decisions turns recognised symbols into a ranked distribution. The best
// reading of each distinct text wins; the probability left over by the
// readings goes to the smudge outcome, which is also the only outcome when
// nothing was read.
func decisions(symbols []Symbol, minConfidence float64) []model.Decision {
	best := map[string]float64{}
	var order []string
	for _, s := range symbols {
		if s.Text == "" {
			continue
		}
		p := clampUnit(s.Confidence / 100)
		if p < minConfidence {
			continue
		}
		prev, seen := best[s.Text]
		if !seen {
			order = append(order, s.Text)
		}
		if p > prev {
			best[s.Text] = p
		}
	}

	var out []model.Decision
	total := 0.0
	for _, text := range order {
		out = append(out, model.Decision{Outcome: text, Probability: best[text]})
		total += best[text]
	}
	if total > 1 {
		for i := range out {
			out[i].Probability /= total
		}
		total = 1
	}
	if rest := 1 - total; rest > 0 {
		out = append(out, model.Decision{Outcome: "", Probability: rest})
	}
	model.SortDecisions(out)
	return out
}

func clampUnit(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

package shape

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/ocr-decoder/internal/model"
)

// ID identifies a shape within its Arena.
type ID int

// NoID marks a shape that has not been added to an arena yet.
const NoID ID = -1

// Paper is the brightness value of an empty pixel.
const Paper = 255

// Shape is a connected-component image fragment.
type Shape struct {
	// ID is the arena index, assigned by Arena.Add.
	ID ID `json:"id"`

	// Key is the persistent identifier used by split storage. Zero means the
	// shape was never saved.
	Key int64 `json:"key,omitempty"`

	// Bounds is the bounding box in page coordinates.
	Bounds Bounds `json:"bounds"`

	// Pixels is the brightness grid of the bounding box (255 = paper). Its
	// origin is (0, 0).
	Pixels *image.Gray `json:"-"`

	// Letter is the ground-truth letter when known. The empty string marks an
	// ink smudge. Split fragments carry "|" markers ("a|", "|a").
	Letter string `json:"letter,omitempty"`

	guesses []model.Decision
}

// New creates a shape with the given bounds and brightness grid. A nil grid
// is replaced by a blank one of the right size.
func New(b Bounds, pixels *image.Gray) *Shape {
	if pixels == nil {
		pixels = blank(b.Width(), b.Height())
	}
	return &Shape{ID: NoID, Bounds: b, Pixels: pixels}
}

// FromImage cuts the region b out of a page image and converts it to a
// brightness grid using perceptual (CIE L*) lightness.
func FromImage(img image.Image, b Bounds) *Shape {
	cropped := imaging.Crop(img, b.Rect())
	r := cropped.Bounds()
	pixels := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			pixels.SetGray(x, y, color.Gray{Y: lightness(cropped.NRGBAAt(r.Min.X+x, r.Min.Y+y))})
		}
	}
	return New(b, pixels)
}

// lightness maps a color to 0..255 using the L* channel of CIE Lab.
// Fully transparent pixels count as paper.
func lightness(c color.Color) uint8 {
	cf, ok := colorful.MakeColor(c)
	if !ok {
		return Paper
	}
	l, _, _ := cf.Lab()
	v := l * 255
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func blank(w, h int) *image.Gray {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	g := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(g, g.Bounds(), image.NewUniform(color.Gray{Y: Paper}), image.Point{}, draw.Src)
	return g
}

// Width is the bounding box width.
func (s *Shape) Width() int { return s.Bounds.Width() }

// Height is the bounding box height.
func (s *Shape) Height() int { return s.Bounds.Height() }

// Ink returns the ink value (0 = paper, 255 = solid) at local coordinates.
// Points outside the grid are paper.
func (s *Shape) Ink(x, y int) int {
	if s.Pixels == nil || !(image.Point{X: x, Y: y}).In(s.Pixels.Rect) {
		return 0
	}
	return Paper - int(s.Pixels.GrayAt(x, y).Y)
}

// InkDensity is the mean ink value over the bounding box, in [0, 1].
func (s *Shape) InkDensity() float64 {
	w, h := s.Width(), s.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	total := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			total += s.Ink(x, y)
		}
	}
	return float64(total) / float64(w*h*Paper)
}

// InkBySection divides the bounding box into columns x rows sections and
// returns the mean ink of each section relative to the darkest section, so
// the darkest section is always 1. The grid is indexed [column][row].
func (s *Shape) InkBySection(columns, rows int) [][]float64 {
	grid := make([][]float64, columns)
	for c := range grid {
		grid[c] = make([]float64, rows)
	}
	w, h := s.Width(), s.Height()
	if columns <= 0 || rows <= 0 || w <= 0 || h <= 0 {
		return grid
	}

	maxInk := 0.0
	for c := 0; c < columns; c++ {
		x1, x2 := c*w/columns, (c+1)*w/columns
		for r := 0; r < rows; r++ {
			y1, y2 := r*h/rows, (r+1)*h/rows
			count, total := 0, 0
			for y := y1; y < y2; y++ {
				for x := x1; x < x2; x++ {
					total += s.Ink(x, y)
					count++
				}
			}
			if count > 0 {
				grid[c][r] = float64(total) / float64(count)
			}
			if grid[c][r] > maxInk {
				maxInk = grid[c][r]
			}
		}
	}

	if maxInk == 0 {
		return grid
	}
	for c := range grid {
		for r := range grid[c] {
			grid[c][r] /= maxInk
		}
	}
	return grid
}

// SplitAt cuts the shape vertically at the given offsets (relative to
// Bounds.X1) and returns the fragments left to right. Offsets outside
// (0, width) are ignored. Fragments get "|" letter markers so that reports
// can recognise split letters.
func (s *Shape) SplitAt(offsets []int) []*Shape {
	cuts := make([]int, 0, len(offsets)+2)
	cuts = append(cuts, 0)
	last := 0
	for _, o := range sortedInts(offsets) {
		if o <= last || o >= s.Width() {
			continue
		}
		cuts = append(cuts, o)
		last = o
	}
	cuts = append(cuts, s.Width())
	if len(cuts) == 2 {
		return []*Shape{s}
	}

	pieces := make([]*Shape, 0, len(cuts)-1)
	for i := 0; i+1 < len(cuts); i++ {
		local := image.Rect(cuts[i], 0, cuts[i+1], s.Height())
		pixels := image.NewGray(image.Rect(0, 0, local.Dx(), local.Dy()))
		draw.Draw(pixels, pixels.Bounds(), s.Pixels, local.Min, draw.Src)

		piece := New(Bounds{
			X1: s.Bounds.X1 + cuts[i],
			Y1: s.Bounds.Y1,
			X2: s.Bounds.X1 + cuts[i+1],
			Y2: s.Bounds.Y2,
		}, pixels)

		switch {
		case i == 0:
			piece.Letter = s.Letter + "|"
		case i == len(cuts)-2:
			piece.Letter = "|" + s.Letter
		default:
			piece.Letter = "|" + s.Letter + "|"
		}
		pieces = append(pieces, piece)
	}
	return pieces
}

// JoinLetters appends the letter of a shape to the letters before it.
// Matching split markers collapse, so "a|" followed by "|a" gives "a" and
// "xa|" followed by "|a|" gives "xa|".
func JoinLetters(a, b string) string {
	if !strings.HasSuffix(a, "|") || !strings.HasPrefix(b, "|") {
		return a + b
	}
	left := strings.TrimSuffix(a, "|")
	right := strings.TrimPrefix(b, "|")
	core := strings.TrimSuffix(right, "|")
	if core == "" || !strings.HasSuffix(left, core) {
		return a + b
	}
	if strings.HasSuffix(right, "|") {
		return left + "|"
	}
	return left
}

func sortedInts(in []int) []int {
	out := append([]int(nil), in...)
	sort.Ints(out)
	return out
}

// Copy returns a copy of s outside any arena. The copy shares the pixel grid
// and carries no guesses.
func (s *Shape) Copy() *Shape {
	c := *s
	c.ID = NoID
	c.guesses = nil
	return &c
}

// SetGuesses replaces the stored letter guesses.
func (s *Shape) SetGuesses(guesses []model.Decision) {
	s.guesses = append(s.guesses[:0], guesses...)
}

// ClearGuesses removes all stored letter guesses.
func (s *Shape) ClearGuesses() {
	s.guesses = s.guesses[:0]
}

// Guesses returns a copy of the stored letter guesses, highest probability
// first.
func (s *Shape) Guesses() []model.Decision {
	return append([]model.Decision(nil), s.guesses...)
}

// BestGuess returns the highest probability guess, if any.
func (s *Shape) BestGuess() (model.Decision, bool) {
	if len(s.guesses) == 0 {
		return model.Decision{}, false
	}
	return s.guesses[0], true
}

func (s *Shape) String() string {
	return fmt.Sprintf("Shape{id=%d, bounds=%s, letter=%q}", s.ID, s.Bounds, s.Letter)
}

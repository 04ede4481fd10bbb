package detection

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/ironsheep/ocr-decoder/internal/shape"
)

// createPage creates a white page of the given size.
func createPage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

// fill paints the half-open rectangle [x1,x2)x[y1,y2) black.
func fill(img *image.RGBA, x1, y1, x2, y2 int) {
	draw.Draw(img, image.Rect(x1, y1, x2, y2), image.NewUniform(color.Black), image.Point{}, draw.Src)
}

// twoRowPage has "i" + glyph + gap + two glyphs on the first row and one
// glyph on the second.
func twoRowPage() *image.RGBA {
	img := createPage(60, 40)
	fill(img, 5, 5, 10, 15)
	fill(img, 6, 1, 8, 3) // dot
	fill(img, 13, 5, 18, 15)
	fill(img, 35, 5, 40, 15)
	fill(img, 43, 5, 48, 15)
	fill(img, 5, 25, 10, 35)
	return img
}

func groupX1s(p *Page, g shape.Group) []int {
	xs := make([]int, len(g.Shapes))
	for i, id := range g.Shapes {
		xs[i] = p.Arena.Get(id).Bounds.X1
	}
	return xs
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestExtractPage(t *testing.T) {
	p, err := ExtractPage(twoRowPage(), PageRef{Document: "doc", Page: 3}, DefaultOptions())
	if err != nil {
		t.Fatalf("ExtractPage() error = %v", err)
	}

	if p.GlyphHeight != 10 {
		t.Errorf("GlyphHeight = %d, want 10", p.GlyphHeight)
	}
	if p.Rows != 2 || p.Paragraphs != 1 {
		t.Errorf("Rows, Paragraphs = %d, %d, want 2, 1", p.Rows, p.Paragraphs)
	}
	if p.Arena.Len() != 6 {
		t.Errorf("Arena.Len() = %d, want 6", p.Arena.Len())
	}

	tests := []struct {
		id    int64
		row   int
		index int
		xs    []int
	}{
		{id: 1, row: 0, index: 0, xs: []int{5, 6, 13}},
		{id: 2, row: 0, index: 1, xs: []int{35, 43}},
		{id: 3, row: 1, index: 0, xs: []int{5}},
	}
	if len(p.Groups) != len(tests) {
		t.Fatalf("got %d groups, want %d", len(p.Groups), len(tests))
	}
	for i, tt := range tests {
		g := p.Groups[i]
		if g.ID != tt.id || g.Row != tt.row || g.Index != tt.index {
			t.Errorf("group %d = id %d row %d index %d, want %d %d %d", i, g.ID, g.Row, g.Index, tt.id, tt.row, tt.index)
		}
		if g.Document != "doc" || g.Page != 3 {
			t.Errorf("group %d = %s page %d, want doc page 3", i, g.Document, g.Page)
		}
		if got := groupX1s(p, g); !equalInts(got, tt.xs) {
			t.Errorf("group %d shapes at %v, want %v", i, got, tt.xs)
		}
	}
}

func TestExtractPageRightToLeft(t *testing.T) {
	opts := DefaultOptions()
	opts.RightToLeft = true
	p, err := ExtractPage(twoRowPage(), PageRef{Document: "doc", FirstGroup: 10}, opts)
	if err != nil {
		t.Fatalf("ExtractPage() error = %v", err)
	}
	if len(p.Groups) != 3 {
		t.Fatalf("got %d groups, want 3", len(p.Groups))
	}
	if p.Groups[0].ID != 10 || !p.Groups[0].RightToLeft {
		t.Errorf("first group = id %d rtl %v, want 10 true", p.Groups[0].ID, p.Groups[0].RightToLeft)
	}
	if got := groupX1s(p, p.Groups[0]); !equalInts(got, []int{43, 35}) {
		t.Errorf("first word shapes at %v, want [43 35]", got)
	}
	if got := groupX1s(p, p.Groups[1]); !equalInts(got, []int{13, 5, 6}) {
		t.Errorf("second word shapes at %v, want [13 5 6]", got)
	}
}

func TestExtractPageKeepsOwnInk(t *testing.T) {
	img := createPage(30, 20)
	fill(img, 5, 5, 7, 15)   // L stem
	fill(img, 5, 13, 15, 15) // L foot
	fill(img, 10, 5, 13, 9)  // square inside the L's box

	p, err := ExtractPage(img, PageRef{}, DefaultOptions())
	if err != nil {
		t.Fatalf("ExtractPage() error = %v", err)
	}
	if len(p.Groups) != 1 || len(p.Groups[0].Shapes) != 2 {
		t.Fatalf("groups = %+v, want one word of two shapes", p.Groups)
	}
	l := p.Arena.Get(p.Groups[0].Shapes[0])
	sq := p.Arena.Get(p.Groups[0].Shapes[1])
	if l.Bounds != (shape.Bounds{X1: 5, Y1: 5, X2: 15, Y2: 15}) {
		t.Errorf("L bounds = %v", l.Bounds)
	}
	if got := l.Ink(5, 0); got != 0 {
		t.Errorf("L ink under the square = %d, want 0", got)
	}
	if got := l.Ink(0, 0); got == 0 {
		t.Error("L stem has no ink")
	}
	if got := sq.Ink(0, 0); got == 0 {
		t.Error("square has no ink")
	}
}

func TestExtractPageBlank(t *testing.T) {
	p, err := ExtractPage(createPage(20, 20), PageRef{}, DefaultOptions())
	if err != nil {
		t.Fatalf("ExtractPage() error = %v", err)
	}
	if len(p.Groups) != 0 || p.Arena.Len() != 0 {
		t.Errorf("blank page produced %d groups, %d shapes", len(p.Groups), p.Arena.Len())
	}
}

func TestExtractPageDropsSpecks(t *testing.T) {
	img := createPage(30, 20)
	fill(img, 5, 5, 10, 15)
	fill(img, 20, 2, 21, 3) // single pixel

	p, err := ExtractPage(img, PageRef{}, DefaultOptions())
	if err != nil {
		t.Fatalf("ExtractPage() error = %v", err)
	}
	if p.Arena.Len() != 1 {
		t.Errorf("Arena.Len() = %d, want 1", p.Arena.Len())
	}
}

func TestExtractPageParagraphs(t *testing.T) {
	img := createPage(30, 80)
	fill(img, 5, 5, 10, 15)
	fill(img, 5, 20, 10, 30)
	fill(img, 5, 60, 10, 70)

	p, err := ExtractPage(img, PageRef{}, DefaultOptions())
	if err != nil {
		t.Fatalf("ExtractPage() error = %v", err)
	}
	want := []int{0, 0, 1}
	for i, g := range p.Groups {
		if g.Paragraph != want[i] {
			t.Errorf("group %d paragraph = %d, want %d", i, g.Paragraph, want[i])
		}
	}
	if p.Paragraphs != 2 {
		t.Errorf("Paragraphs = %d, want 2", p.Paragraphs)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"zero threshold", func(o *Options) { o.Threshold = 0 }},
		{"zero min area", func(o *Options) { o.MinArea = 0 }},
		{"zero word gap", func(o *Options) { o.WordGap = 0 }},
		{"row overlap above one", func(o *Options) { o.RowOverlap = 1.5 }},
		{"small mark of one", func(o *Options) { o.SmallMark = 1 }},
		{"negative paragraph gap", func(o *Options) { o.ParagraphGap = -1 }},
	}
	if err := DefaultOptions().Validate(); err != nil {
		t.Fatalf("DefaultOptions().Validate() = %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.modify(&o)
			if err := o.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
			if _, err := ExtractPage(twoRowPage(), PageRef{}, o); err == nil {
				t.Error("ExtractPage() accepted invalid options")
			}
		})
	}
}

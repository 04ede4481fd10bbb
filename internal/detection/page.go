package detection

import (
	"fmt"
	"image"
	"sort"

	"github.com/ironsheep/ocr-decoder/internal/shape"
)

// Options tunes page extraction.
type Options struct {
	// Threshold is the brightness below which a pixel counts as ink.
	Threshold uint8 `mapstructure:"threshold" json:"threshold"`

	// MinArea drops components with fewer ink pixels (specks).
	MinArea int `mapstructure:"min_area" json:"min_area"`

	// WordGap is the horizontal gap, relative to the median glyph height,
	// that separates two words.
	WordGap float64 `mapstructure:"word_gap" json:"word_gap"`

	// RowOverlap is the fraction of the shorter height two components must
	// share vertically to sit in the same row.
	RowOverlap float64 `mapstructure:"row_overlap" json:"row_overlap"`

	// SmallMark is the height, relative to the median glyph height, below
	// which a component is attached to the nearest row instead of opening
	// one.
	SmallMark float64 `mapstructure:"small_mark" json:"small_mark"`

	// ParagraphGap is the vertical gap between rows, relative to the median
	// row height, that starts a new paragraph.
	ParagraphGap float64 `mapstructure:"paragraph_gap" json:"paragraph_gap"`

	// RightToLeft orders words and shapes right to left.
	RightToLeft bool `mapstructure:"right_to_left" json:"right_to_left"`
}

// DefaultOptions returns options suited to clean printed pages.
func DefaultOptions() Options {
	return Options{
		Threshold:    128,
		MinArea:      3,
		WordGap:      0.5,
		RowOverlap:   0.5,
		SmallMark:    0.4,
		ParagraphGap: 1.5,
	}
}

// Validate reports out-of-range options.
func (o Options) Validate() error {
	if o.Threshold == 0 {
		return fmt.Errorf("threshold must be above 0")
	}
	if o.MinArea < 1 {
		return fmt.Errorf("min area must be at least 1, got %d", o.MinArea)
	}
	if o.WordGap <= 0 {
		return fmt.Errorf("word gap must be positive, got %v", o.WordGap)
	}
	if o.RowOverlap <= 0 || o.RowOverlap > 1 {
		return fmt.Errorf("row overlap must be in (0, 1], got %v", o.RowOverlap)
	}
	if o.SmallMark < 0 || o.SmallMark >= 1 {
		return fmt.Errorf("small mark must be in [0, 1), got %v", o.SmallMark)
	}
	if o.ParagraphGap <= 0 {
		return fmt.Errorf("paragraph gap must be positive, got %v", o.ParagraphGap)
	}
	return nil
}

// PageRef names the page being extracted.
type PageRef struct {
	Document string
	Page     int

	// FirstGroup is the ID given to the first word group. Zero means 1.
	FirstGroup int64
}

// Page is the result of extracting one page image.
type Page struct {
	Arena  *shape.Arena  `json:"-"`
	Groups []shape.Group `json:"groups"`

	Width      int `json:"width"`
	Height     int `json:"height"`
	Rows       int `json:"rows"`
	Paragraphs int `json:"paragraphs"`

	// GlyphHeight is the median component height used for the gap rules.
	GlyphHeight int `json:"glyph_height"`
}

// Shapes returns the page's shapes in arena order.
func (p *Page) Shapes() []*shape.Shape {
	return p.Arena.Shapes()
}

type row struct {
	band  shape.Bounds
	comps []Component
}

// ExtractPage finds the shapes on a page image and groups them into words.
func ExtractPage(img image.Image, ref PageRef, opts Options) (*Page, error) {
	if img == nil {
		return nil, fmt.Errorf("image is nil")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detection options: %w", err)
	}
	bounds := img.Bounds()
	page := &Page{Arena: shape.NewArena(), Width: bounds.Dx(), Height: bounds.Dy()}
	if bounds.Empty() {
		return page, nil
	}

	labels, comps := labelComponents(binarise(img, opts.Threshold), bounds.Min, opts.MinArea)
	if len(comps) == 0 {
		return page, nil
	}
	page.GlyphHeight = medianHeight(comps)

	rows := buildRows(comps, page.GlyphHeight, opts)
	page.Rows = len(rows)

	next := ref.FirstGroup
	if next == 0 {
		next = 1
	}
	paragraph := 0
	rowHeight := medianRowHeight(rows)
	for r, rw := range rows {
		if r > 0 {
			gap := rw.band.Y1 - rows[r-1].band.Y2
			if float64(gap) > opts.ParagraphGap*float64(rowHeight) {
				paragraph++
			}
		}
		for i, word := range splitWords(rw.comps, page.GlyphHeight, opts) {
			g := shape.Group{
				ID:          next,
				Document:    ref.Document,
				Page:        ref.Page,
				Paragraph:   paragraph,
				Row:         r,
				Index:       i,
				RightToLeft: opts.RightToLeft,
			}
			for _, c := range word {
				g.Shapes = append(g.Shapes, page.Arena.Add(cutShape(img, labels, c)))
			}
			page.Groups = append(page.Groups, g)
			next++
		}
	}
	page.Paragraphs = paragraph + 1
	return page, nil
}

// cutShape builds the shape of component c, keeping only its own ink.
func cutShape(img image.Image, labels [][]int, c Component) *shape.Shape {
	s := shape.FromImage(img, c.Bounds)
	origin := img.Bounds().Min
	for y := 0; y < c.Bounds.Height(); y++ {
		for x := 0; x < c.Bounds.Width(); x++ {
			if labels[c.Bounds.Y1-origin.Y+y][c.Bounds.X1-origin.X+x] != c.Label {
				s.Pixels.Pix[y*s.Pixels.Stride+x] = shape.Paper
			}
		}
	}
	return s
}

func medianHeight(comps []Component) int {
	heights := make([]int, len(comps))
	for i, c := range comps {
		heights[i] = c.Bounds.Height()
	}
	sort.Ints(heights)
	return heights[len(heights)/2]
}

func medianRowHeight(rows []*row) int {
	heights := make([]int, len(rows))
	for i, r := range rows {
		heights[i] = r.band.Height()
	}
	sort.Ints(heights)
	return max(heights[len(heights)/2], 1)
}

// buildRows bands ordinary components into rows from top to bottom, then
// attaches small marks to the vertically nearest row.
func buildRows(comps []Component, glyphHeight int, opts Options) []*row {
	sorted := append([]Component(nil), comps...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci, cj := sorted[i].Bounds, sorted[j].Bounds
		if ci.Y1+ci.Y2 != cj.Y1+cj.Y2 {
			return ci.Y1+ci.Y2 < cj.Y1+cj.Y2
		}
		return ci.X1 < cj.X1
	})

	smallLimit := opts.SmallMark * float64(glyphHeight)
	var rows []*row
	var marks []Component
	for _, c := range sorted {
		if float64(c.Bounds.Height()) < smallLimit {
			marks = append(marks, c)
			continue
		}
		var best *row
		bestShare := 0.0
		for _, r := range rows {
			shorter := min(c.Bounds.Height(), r.band.Height())
			if shorter == 0 {
				continue
			}
			share := float64(c.Bounds.VerticalOverlap(r.band)) / float64(shorter)
			if share >= opts.RowOverlap && share > bestShare {
				best, bestShare = r, share
			}
		}
		if best == nil {
			rows = append(rows, &row{band: c.Bounds, comps: []Component{c}})
			continue
		}
		best.comps = append(best.comps, c)
		best.band = best.band.Union(c.Bounds)
	}

	for _, m := range marks {
		if len(rows) == 0 {
			rows = append(rows, &row{band: m.Bounds, comps: []Component{m}})
			continue
		}
		best := rows[0]
		bestDist := verticalDistance(m.Bounds, best.band)
		for _, r := range rows[1:] {
			if d := verticalDistance(m.Bounds, r.band); d < bestDist {
				best, bestDist = r, d
			}
		}
		best.comps = append(best.comps, m)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].band.Y1 < rows[j].band.Y1 })
	return rows
}

func verticalDistance(a, b shape.Bounds) int {
	if a.VerticalOverlap(b) > 0 {
		return 0
	}
	if a.Y2 <= b.Y1 {
		return b.Y1 - a.Y2
	}
	return a.Y1 - b.Y2
}

// splitWords orders a row's components in reading order and cuts them into
// words at wide gaps.
func splitWords(comps []Component, glyphHeight int, opts Options) [][]Component {
	sorted := append([]Component(nil), comps...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Bounds.X1 != sorted[j].Bounds.X1 {
			return sorted[i].Bounds.X1 < sorted[j].Bounds.X1
		}
		return sorted[i].Bounds.Y1 < sorted[j].Bounds.Y1
	})

	limit := opts.WordGap * float64(glyphHeight)
	var words [][]Component
	var current []Component
	right := 0
	for _, c := range sorted {
		if len(current) > 0 && float64(c.Bounds.X1-right) > limit {
			words = append(words, current)
			current = nil
		}
		if len(current) == 0 {
			right = c.Bounds.X2
		}
		current = append(current, c)
		right = max(right, c.Bounds.X2)
	}
	if len(current) > 0 {
		words = append(words, current)
	}

	if opts.RightToLeft {
		for i, j := 0, len(words)-1; i < j; i, j = i+1, j-1 {
			words[i], words[j] = words[j], words[i]
		}
		for _, w := range words {
			sort.SliceStable(w, func(i, j int) bool { return w[i].Bounds.X2 > w[j].Bounds.X2 })
		}
	}
	return words
}

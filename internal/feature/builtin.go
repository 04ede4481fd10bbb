package feature

import (
	"fmt"

	"github.com/ironsheep/ocr-decoder/internal/model"
)

// AspectRatio is width / height of the unit's shape.
type AspectRatio struct{}

func (AspectRatio) Name() string { return "AspectRatio" }

func (f AspectRatio) Check(ctx *Context) (*model.FeatureResult, error) {
	s := ctx.Shape()
	if s == nil {
		return nil, fmt.Errorf("shape %d not in arena", ctx.Unit.Shape)
	}
	if s.Height() <= 0 {
		return nil, nil
	}
	return result(model.FloatResult(f.Name(), float64(s.Width())/float64(s.Height()))), nil
}

// InkDensity is the mean ink of the unit's shape, in [0, 1].
type InkDensity struct{}

func (InkDensity) Name() string { return "InkDensity" }

func (f InkDensity) Check(ctx *Context) (*model.FeatureResult, error) {
	s := ctx.Shape()
	if s == nil {
		return nil, fmt.Errorf("shape %d not in arena", ctx.Unit.Shape)
	}
	return result(model.FloatResult(f.Name(), s.InkDensity())), nil
}

// SectionInk is the ink of one section of a Columns x Rows grid laid over
// the shape, relative to the darkest section (which scores 1).
type SectionInk struct {
	Columns, Rows int
	Column, Row   int
}

func (f SectionInk) Name() string {
	return fmt.Sprintf("SectionInk(%d,%d,%d,%d)", f.Column, f.Row, f.Columns, f.Rows)
}

func (f SectionInk) Check(ctx *Context) (*model.FeatureResult, error) {
	if f.Column < 0 || f.Column >= f.Columns || f.Row < 0 || f.Row >= f.Rows {
		return nil, fmt.Errorf("section (%d,%d) outside %dx%d grid", f.Column, f.Row, f.Columns, f.Rows)
	}
	s := ctx.Shape()
	if s == nil {
		return nil, fmt.Errorf("shape %d not in arena", ctx.Unit.Shape)
	}
	grid := s.InkBySection(f.Columns, f.Rows)
	return result(model.FloatResult(f.Name(), grid[f.Column][f.Row])), nil
}

// SectionInkGrid returns one SectionInk feature per section of a
// columns x rows grid, column by column.
func SectionInkGrid(columns, rows int) []Feature {
	features := make([]Feature, 0, columns*rows)
	for c := 0; c < columns; c++ {
		for r := 0; r < rows; r++ {
			features = append(features, SectionInk{Columns: columns, Rows: rows, Column: c, Row: r})
		}
	}
	return features
}

// PreviousLetter is the last letter decoded in the current word. It does
// not apply to the first unit of a word.
type PreviousLetter struct{}

func (PreviousLetter) Name() string { return "PreviousLetter" }

func (f PreviousLetter) Check(ctx *Context) (*model.FeatureResult, error) {
	if ctx.History == nil {
		return nil, nil
	}
	last, ok := ctx.History.Last()
	if !ok {
		return nil, nil
	}
	return result(model.StringResult(f.Name(), string(last))), nil
}

// HistoryLength is the number of letters already decoded in the word.
type HistoryLength struct{}

func (HistoryLength) Name() string { return "HistoryLength" }

func (f HistoryLength) Check(ctx *Context) (*model.FeatureResult, error) {
	n := 0
	if ctx.History != nil {
		n = ctx.History.Len()
	}
	return result(model.IntResult(f.Name(), n)), nil
}

// Merged reports whether the unit combines several original shapes.
type Merged struct{}

func (Merged) Name() string { return "Merged" }

func (f Merged) Check(ctx *Context) (*model.FeatureResult, error) {
	return result(model.BoolResult(f.Name(), ctx.Unit.Merged())), nil
}

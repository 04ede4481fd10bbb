package boundary

import (
	"context"

	"github.com/ironsheep/ocr-decoder/internal/shape"
)

// Split is a persisted cut point inside a shape.
type Split struct {
	ID       int64 `json:"id"`
	ShapeKey int64 `json:"shape_key"`

	// Position is the x offset of the cut from the shape's left edge.
	Position int `json:"position"`
}

// SplitSource supplies pre-computed cut points for a shape. Implementations
// return splits ordered by position; an unknown shape has none.
type SplitSource interface {
	FindSplits(ctx context.Context, s *shape.Shape) ([]Split, error)
}

// StaticSplits is an in-memory SplitSource keyed by shape Key.
type StaticSplits map[int64][]int

// FindSplits implements SplitSource.
func (m StaticSplits) FindSplits(_ context.Context, s *shape.Shape) ([]Split, error) {
	positions := m[s.Key]
	if len(positions) == 0 {
		return nil, nil
	}
	splits := make([]Split, len(positions))
	for i, p := range positions {
		splits[i] = Split{ShapeKey: s.Key, Position: p}
	}
	return splits, nil
}

func positions(splits []Split) []int {
	out := make([]int, len(splits))
	for i, sp := range splits {
		out[i] = sp.Position
	}
	return out
}

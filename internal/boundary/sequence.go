package boundary

import (
	"context"
	"fmt"
	"strings"

	"github.com/ironsheep/ocr-decoder/internal/shape"
)

// ShapeInSequence is one recognition unit: the shape to classify and the
// original shapes it was built from. For an unmodified shape, Originals holds
// just that shape's ID. For a split piece it holds the shape that was cut.
// Shape belongs to one hypothesis; when several hypotheses keep the same
// original, all but the best ranked classify a copy of it.
type ShapeInSequence struct {
	Shape     shape.ID   `json:"shape"`
	Originals []shape.ID `json:"originals"`
}

// Merged reports whether the unit combines more than one original shape.
func (u ShapeInSequence) Merged() bool { return len(u.Originals) > 1 }

// ShapeSequence is one segmentation hypothesis for a group.
type ShapeSequence struct {
	Units []ShapeInSequence `json:"units"`

	// Score is the product of the merge and no-merge decisions that produced
	// the hypothesis. The pass-through sequence scores 1.
	Score float64 `json:"score"`
}

// Len is the number of units.
func (s ShapeSequence) Len() int { return len(s.Units) }

func (s ShapeSequence) String() string {
	parts := make([]string, len(s.Units))
	for i, u := range s.Units {
		if len(u.Originals) == 1 && u.Originals[0] == u.Shape {
			parts[i] = fmt.Sprint(u.Shape)
			continue
		}
		parts[i] = fmt.Sprintf("%d%v", u.Shape, u.Originals)
	}
	return fmt.Sprintf("[%s] score=%.4f", strings.Join(parts, " "), s.Score)
}

// Detector produces ranked segmentation hypotheses for one group. Index 0 of
// the result is the default hypothesis. An empty group yields an empty list
// and no error.
type Detector interface {
	FindBoundaries(ctx context.Context, arena *shape.Arena, g shape.Group) ([]ShapeSequence, error)
}

// PassThrough returns the one-to-one sequence of g: every shape is its own
// unit, in group order.
func PassThrough(g shape.Group) ShapeSequence {
	units := make([]ShapeInSequence, len(g.Shapes))
	for i, id := range g.Shapes {
		units[i] = ShapeInSequence{Shape: id, Originals: []shape.ID{id}}
	}
	return ShapeSequence{Units: units, Score: 1}
}

// Find runs d over g. With a nil detector it returns the pass-through
// sequence as the sole hypothesis.
func Find(ctx context.Context, d Detector, arena *shape.Arena, g shape.Group) ([]ShapeSequence, error) {
	if len(g.Shapes) == 0 {
		return nil, nil
	}
	if d == nil {
		return []ShapeSequence{PassThrough(g)}, nil
	}
	return d.FindBoundaries(ctx, arena, g)
}

// Package feature computes the named measurements handed to the decision
// oracle for one recognition unit.
//
// A [Feature] inspects a [Context] (the unit to classify plus the letters
// already decoded in the same word) and returns one typed result. Features
// that do not apply to a unit return a nil result and are skipped; an error
// means the feature set is misconfigured and aborts the document.
//
// Feature sets are usually built from descriptors with [Registry.Parse], for
// example:
//
//	AspectRatio
//	SectionInk(4,4)
//	PreviousLetter
package feature

import (
	"fmt"

	"github.com/ironsheep/ocr-decoder/internal/boundary"
	"github.com/ironsheep/ocr-decoder/internal/letter"
	"github.com/ironsheep/ocr-decoder/internal/model"
	"github.com/ironsheep/ocr-decoder/internal/shape"
)

// Context is what a feature sees: one unit and its word history.
type Context struct {
	Arena *shape.Arena
	Unit  boundary.ShapeInSequence

	// History holds the letters decoded so far in the current word. It is
	// empty, never nil, for the first unit.
	History *letter.Sequence
}

// Shape returns the unit's shape.
func (c *Context) Shape() *shape.Shape {
	return c.Arena.Get(c.Unit.Shape)
}

// Feature computes one named value for a context.
type Feature interface {
	Name() string

	// Check returns nil, nil when the feature does not apply.
	Check(ctx *Context) (*model.FeatureResult, error)
}

// Func adapts a function to the Feature interface.
type Func struct {
	FeatureName string
	Fn          func(ctx *Context) (*model.FeatureResult, error)
}

// Name implements Feature.
func (f Func) Name() string { return f.FeatureName }

// Check implements Feature.
func (f Func) Check(ctx *Context) (*model.FeatureResult, error) { return f.Fn(ctx) }

// Evaluate runs every feature against ctx and returns the non-nil results in
// feature order.
func Evaluate(features []Feature, ctx *Context) ([]model.FeatureResult, error) {
	results := make([]model.FeatureResult, 0, len(features))
	for _, f := range features {
		r, err := f.Check(ctx)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", f.Name(), err)
		}
		if r != nil {
			results = append(results, *r)
		}
	}
	return results, nil
}

func result(r model.FeatureResult) *model.FeatureResult { return &r }

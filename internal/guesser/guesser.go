// Package guesser classifies recognition units: it evaluates the feature
// set, asks the decision oracle for a ranked letter distribution, stores the
// retained guesses on the unit's shape and returns the best letter.
package guesser

import (
	stderrors "errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/ocr-decoder/internal/boundary"
	ocrerrors "github.com/ironsheep/ocr-decoder/internal/errors"
	"github.com/ironsheep/ocr-decoder/internal/feature"
	"github.com/ironsheep/ocr-decoder/internal/letter"
	"github.com/ironsheep/ocr-decoder/internal/logging"
	"github.com/ironsheep/ocr-decoder/internal/model"
	"github.com/ironsheep/ocr-decoder/internal/shape"
)

// MinProbabilityToStore is the lowest guess probability kept on a shape.
const MinProbabilityToStore = 0.001

var (
	// ErrNoDecision is returned when the oracle proposes no outcome at all.
	ErrNoDecision = stderrors.New("decision oracle returned no decision")

	// ErrNoHypotheses is returned when every proposed outcome falls below
	// MinProbabilityToStore.
	ErrNoHypotheses = stderrors.New("no letter guess above the minimum probability")
)

// Guesser classifies units with a fixed feature set and oracle. It holds no
// per-document state and may be shared by concurrent decoders as long as
// the decider is safe for concurrent use.
type Guesser struct {
	features []feature.Feature
	decider  model.Decider
	log      logrus.FieldLogger
}

// New creates a Guesser. A nil logger discards output.
func New(features []feature.Feature, decider model.Decider, log logrus.FieldLogger) (*Guesser, error) {
	if decider == nil {
		return nil, ocrerrors.NewConfigurationError("letter guesser requires a decider", nil)
	}
	return &Guesser{
		features: append([]feature.Feature(nil), features...),
		decider:  decider,
		log:      logging.OrDiscard(log),
	}, nil
}

// Features returns the feature set.
func (g *Guesser) Features() []feature.Feature {
	return append([]feature.Feature(nil), g.features...)
}

// GuessLetter classifies unit given the letters already decoded in its word.
//
// The unit's shape loses any previous guesses and receives every decision
// with probability >= MinProbabilityToStore, highest first. The outcome of
// the best decision is returned.
//
// Returns a configuration error wrapping ErrNoDecision when the oracle
// returns nothing and ErrNoHypotheses when nothing survives the cut-off.
func (g *Guesser) GuessLetter(arena *shape.Arena, unit boundary.ShapeInSequence, history *letter.Sequence) (string, error) {
	s := arena.Get(unit.Shape)
	if s == nil {
		return "", ocrerrors.NewLogicError(fmt.Sprintf("unit shape %d not in arena", unit.Shape), nil)
	}

	results, err := feature.Evaluate(g.features, &feature.Context{Arena: arena, Unit: unit, History: history})
	if err != nil {
		return "", ocrerrors.NewConfigurationError("feature evaluation failed", err)
	}

	decisions, err := g.decider.Decide(results)
	if err != nil {
		return "", ocrerrors.NewConfigurationError("decision oracle failed", err)
	}
	if len(decisions) == 0 {
		return "", ocrerrors.NewConfigurationError(fmt.Sprintf("shape %d is unclassifiable", unit.Shape), ErrNoDecision)
	}

	kept := make([]model.Decision, 0, len(decisions))
	for _, d := range decisions {
		if d.Probability >= MinProbabilityToStore {
			kept = append(kept, d)
		}
	}
	model.SortDecisions(kept)

	s.ClearGuesses()
	s.SetGuesses(kept)
	best, ok := s.BestGuess()
	if !ok {
		return "", ocrerrors.NewConfigurationError(fmt.Sprintf("shape %d has no stored guess", unit.Shape), ErrNoHypotheses)
	}

	g.log.WithFields(logrus.Fields{
		"shape":    unit.Shape,
		"features": len(results),
		"guesses":  len(kept),
		"best":     best.String(),
	}).Trace("letter guessed")
	return best.Outcome, nil
}

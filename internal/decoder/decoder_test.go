package decoder

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ocrerrors "github.com/ironsheep/ocr-decoder/internal/errors"
	"github.com/ironsheep/ocr-decoder/internal/feature"
	"github.com/ironsheep/ocr-decoder/internal/guesser"
	"github.com/ironsheep/ocr-decoder/internal/letter"
	"github.com/ironsheep/ocr-decoder/internal/model"
	"github.com/ironsheep/ocr-decoder/internal/shape"
)

func p(outcome string, prob float64) model.Decision {
	return model.Decision{Outcome: outcome, Probability: prob}
}

// oracle answers with a fixed distribution per shape, identified through a
// ShapeID feature.
type oracle map[shape.ID][]model.Decision

func (o oracle) Decide(results []model.FeatureResult) ([]model.Decision, error) {
	r, ok := model.Find(results, "ShapeID")
	if !ok {
		return nil, errors.New("ShapeID feature missing")
	}
	id, _ := r.Int()
	return append([]model.Decision(nil), o[shape.ID(id)]...), nil
}

var shapeIDFeature = feature.Func{FeatureName: "ShapeID", Fn: func(ctx *feature.Context) (*model.FeatureResult, error) {
	r := model.IntResult("ShapeID", int(ctx.Unit.Shape))
	return &r, nil
}}

// newImage builds an image with one group per word and one shape per unit.
// Each unit is given as the distribution the oracle returns for it.
func newImage(words ...[][]model.Decision) (*Image, oracle) {
	arena := shape.NewArena()
	o := oracle{}
	img := &Image{Document: "doc", Name: "page-1", Page: 1, Arena: arena}
	x := 0
	for wi, units := range words {
		g := shape.Group{ID: int64(wi + 1), Document: "doc", Page: 1, Index: wi}
		for _, dist := range units {
			s := shape.New(shape.Bounds{X1: x, Y1: 0, X2: x + 8, Y2: 12}, nil)
			id := arena.Add(s)
			o[id] = dist
			g.Shapes = append(g.Shapes, id)
			x += 10
		}
		x += 10
		img.Groups = append(img.Groups, g)
	}
	return img, o
}

func newDecoder(t *testing.T, cfg Config, o oracle, opts ...Option) (*Decoder, *Recorder) {
	t.Helper()
	g, err := guesser.New([]feature.Feature{shapeIDFeature}, o, nil)
	require.NoError(t, err)
	rec := &Recorder{}
	d, err := New(cfg, g, append([]Option{WithObserver(rec)}, opts...)...)
	require.NoError(t, err)
	return d, rec
}

type mapLexicon map[string]int

func (m mapLexicon) Frequency(_ context.Context, word string) (int, error) {
	return m[word], nil
}

func TestDecodeSingleWordBeamWidthOne(t *testing.T) {
	img, o := newImage([][]model.Decision{
		{p("a", 0.9), p("b", 0.1)},
		{p("b", 0.8), p("c", 0.2)},
	})
	cfg := DefaultConfig()
	cfg.BeamWidth = 1
	d, _ := newDecoder(t, cfg, o)

	words, err := d.DecodeImage(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, words, 1)
	assert.Equal(t, "ab", words[0].GuessedWord())
	assert.InDelta(t, 0.72, words[0].Probability(), 1e-9)
}

func TestDecodeSingleWordObserverOrder(t *testing.T) {
	img, o := newImage([][]model.Decision{
		{p("a", 0.9), p("b", 0.1)},
		{p("b", 0.8), p("c", 0.2)},
	})
	d, rec := newDecoder(t, DefaultConfig(), o)

	_, err := d.DecodeImage(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, []Event{
		EventImageStart,
		EventGuessLetter, EventGuessLetter,
		EventStartSequence,
		EventBeamSearchEnd,
		EventGuessSequence,
		EventImageEnd,
	}, rec.Events())

	records := rec.Records()
	assert.Equal(t, "a", records[1].Guess)
	assert.Equal(t, "b", records[2].Guess)
	assert.Equal(t, "ab", records[3].Word.GuessedWord())
	assert.Equal(t, "ab", records[4].Word.GuessedWord())
	assert.Equal(t, "ab", records[5].Word.GuessedWord())
}

func TestDecodeAmbiguousWordIsHeldOver(t *testing.T) {
	img, o := newImage(
		[][]model.Decision{{p("x", 0.51), p("y", 0.49)}},
		[][]model.Decision{{p("z", 1)}},
	)
	d, rec := newDecoder(t, DefaultConfig(), o)

	words, err := d.DecodeImage(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, []Event{
		EventImageStart,
		EventBeamSearchEnd,
		EventGuessLetter, EventStartSequence,
		EventGuessLetter, EventStartSequence,
		EventBeamSearchEnd,
		EventGuessSequence, EventGuessSequence,
		EventImageEnd,
	}, rec.Events())

	ends := rec.BeamSearchEnds()
	require.Len(t, ends, 2)
	first := ends[0]
	require.Len(t, first.Holdover, 2, "both near-tied hypotheses must be held over")
	assert.Equal(t, "x", first.Holdover[0].GuessedWord())
	assert.Equal(t, "y", first.Holdover[1].GuessedWord())

	// The second word's beam was seeded from both held-over hypotheses.
	second := ends[1]
	require.Len(t, second.Finals, 2)
	var previous []string
	for _, f := range second.Finals {
		require.NotNil(t, f.Previous())
		previous = append(previous, f.Previous().GuessedWord())
	}
	assert.ElementsMatch(t, []string{"x", "y"}, previous)

	require.Len(t, words, 2)
	assert.Equal(t, "x", words[0].GuessedWord())
	assert.Equal(t, "z", words[1].GuessedWord())
	assert.Equal(t, int64(1), words[0].Group().ID)
	assert.Equal(t, int64(2), words[1].Group().ID)
}

func TestDecodeWithoutHoldoverCommitsImmediately(t *testing.T) {
	img, o := newImage(
		[][]model.Decision{{p("x", 0.51), p("y", 0.49)}},
		[][]model.Decision{{p("z", 1)}},
	)
	cfg := DefaultConfig()
	cfg.MaxHoldoverWords = 0
	d, rec := newDecoder(t, cfg, o)

	_, err := d.DecodeImage(context.Background(), img)
	require.NoError(t, err)

	events := rec.Events()
	require.GreaterOrEqual(t, len(events), 5)
	assert.Equal(t, []Event{EventImageStart, EventGuessLetter, EventStartSequence, EventBeamSearchEnd, EventGuessSequence}, events[:5])
	assert.Empty(t, rec.BeamSearchEnds()[0].Holdover)
}

func TestDecodeHoldoverBudgetForcesCommit(t *testing.T) {
	ambiguous := [][]model.Decision{{p("x", 0.5), p("y", 0.5)}}
	img, o := newImage(ambiguous, ambiguous, ambiguous, [][]model.Decision{{p("z", 1)}})
	cfg := DefaultConfig()
	cfg.MaxHoldoverWords = 1
	d, rec := newDecoder(t, cfg, o)

	words, err := d.DecodeImage(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, words, 4)

	var holdovers []int
	for _, r := range rec.Records() {
		if r.Event == EventBeamSearchEnd {
			holdovers = append(holdovers, len(r.Holdover))
		}
	}
	// Held, forced, held, last word.
	assert.Equal(t, []int{2, 0, 2, 0}, holdovers)
	assert.Len(t, rec.Committed(), 4)
}

func TestDecodeClearMarginCommits(t *testing.T) {
	img, o := newImage(
		[][]model.Decision{{p("x", 0.8), p("y", 0.2)}},
		[][]model.Decision{{p("z", 1)}},
	)
	d, rec := newDecoder(t, DefaultConfig(), o)

	_, err := d.DecodeImage(context.Background(), img)
	require.NoError(t, err)

	records := rec.Records()
	assert.Equal(t, []Event{EventGuessLetter, EventStartSequence, EventBeamSearchEnd, EventGuessSequence},
		[]Event{records[1].Event, records[2].Event, records[3].Event, records[4].Event})
	first := records[3]
	assert.Empty(t, first.Holdover)
	assert.Equal(t, "x", first.Word.GuessedWord())
	require.Len(t, first.Finals, 2)
}

func TestDecodeBeamNeverExceedsWidth(t *testing.T) {
	unit := []model.Decision{p("a", 0.5), p("b", 0.3), p("c", 0.2)}
	img, o := newImage([][]model.Decision{unit, unit, unit, unit})

	for _, width := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("width=%d", width), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.BeamWidth = width
			d, rec := newDecoder(t, cfg, o)

			_, err := d.DecodeImage(context.Background(), img)
			require.NoError(t, err)
			for _, r := range rec.Records() {
				if r.Event == EventBeamSearchEnd {
					assert.LessOrEqual(t, len(r.Finals), width)
					for i := 1; i < len(r.Finals); i++ {
						assert.GreaterOrEqual(t, r.Finals[i-1].Probability(), r.Finals[i].Probability())
					}
				}
			}
		})
	}
}

func TestDecodeTiesKeepInsertionOrder(t *testing.T) {
	img, o := newImage([][]model.Decision{{p("m", 0.5), p("n", 0.5)}})
	cfg := DefaultConfig()
	cfg.BeamWidth = 1
	d, _ := newDecoder(t, cfg, o)

	words, err := d.DecodeImage(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, words, 1)
	assert.Equal(t, "m", words[0].GuessedWord())
}

func TestDecodeProbabilityIsProductOfGuesses(t *testing.T) {
	img, o := newImage(
		[][]model.Decision{{p("o", 0.55), p("a", 0.45)}, {p("f", 0.7), p("t", 0.3)}},
		[][]model.Decision{{p("i", 0.6), p("l", 0.4)}, {p("t", 0.9), p("f", 0.1)}},
	)
	d, _ := newDecoder(t, DefaultConfig(), o)

	words, err := d.DecodeImage(context.Background(), img)
	require.NoError(t, err)
	require.NotEmpty(t, words)

	for _, w := range words {
		product := 1.0
		for _, chained := range w.Words() {
			for i := 0; i < chained.Len(); i++ {
				product *= chained.Guess(i)
			}
		}
		assert.InDelta(t, product, w.Probability(), 1e-12, "word %s", w.GuessedWord())
	}
}

func TestDecodeZeroRetainedGuessesIsFatal(t *testing.T) {
	img, o := newImage(
		[][]model.Decision{{p("a", 1)}},
		[][]model.Decision{{p("b", 1)}, {p("c", 0.0004)}},
	)
	d, rec := newDecoder(t, DefaultConfig(), o)

	words, err := d.DecodeImage(context.Background(), img)
	require.Error(t, err)
	assert.True(t, ocrerrors.IsFatal(err))
	assert.ErrorIs(t, err, guesser.ErrNoHypotheses)

	var de *ocrerrors.DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, ocrerrors.ErrorConfiguration, de.Code)
	assert.Equal(t, "doc", de.Document)
	assert.Equal(t, "page-1", de.Image)
	assert.Equal(t, int64(2), de.Group)
	assert.Equal(t, 1, de.Unit)

	require.Len(t, words, 1, "words committed before the failure are returned")
	assert.NotContains(t, rec.Events(), EventImageEnd)
}

func TestDecodeNoDecisionIsFatal(t *testing.T) {
	img, o := newImage([][]model.Decision{{}})
	d, _ := newDecoder(t, DefaultConfig(), o)

	_, err := d.DecodeImage(context.Background(), img)
	assert.ErrorIs(t, err, guesser.ErrNoDecision)
}

func TestDecodeKnownWordBoost(t *testing.T) {
	img, o := newImage([][]model.Decision{{p("x", 0.6), p("y", 0.4)}}, [][]model.Decision{{p("z", 1)}})
	cfg := DefaultConfig()
	cfg.KnownWordBoost = 2
	d, rec := newDecoder(t, cfg, o, WithLexicon(mapLexicon{"y": 10}))

	words, err := d.DecodeImage(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, "y", words[0].GuessedWord())
	assert.Equal(t, 10, words[0].Frequency())
	assert.InDelta(t, 0.4, words[0].Probability(), 1e-9, "the boost must not change the probability")
	assert.Empty(t, rec.BeamSearchEnds()[0].Holdover)
}

func TestDecodeObserverOrder(t *testing.T) {
	img, o := newImage(
		[][]model.Decision{{p("h", 1)}, {p("i", 1)}},
		[][]model.Decision{{p("o", 1)}},
	)
	d, rec := newDecoder(t, DefaultConfig(), o)

	_, err := d.DecodeImage(context.Background(), img)
	require.NoError(t, err)
	require.NoError(t, d.Finish())
	require.NoError(t, d.Finish())

	assert.Equal(t, []Event{
		EventImageStart,
		EventGuessLetter, EventGuessLetter, EventStartSequence, EventBeamSearchEnd, EventGuessSequence,
		EventGuessLetter, EventStartSequence, EventBeamSearchEnd, EventGuessSequence,
		EventImageEnd,
		EventFinish,
	}, rec.Events())

	var guesses []string
	for _, r := range rec.Records() {
		if r.Event == EventGuessLetter {
			guesses = append(guesses, r.Guess)
		}
	}
	assert.Equal(t, []string{"h", "i", "o"}, guesses)

	_, err = d.DecodeImage(context.Background(), img)
	assert.Error(t, err, "decoding after Finish is a logic error")
}

func TestDecodeObserversGetSnapshots(t *testing.T) {
	img, o := newImage([][]model.Decision{{p("a", 1)}})
	var seen *letter.Sequence
	obs := ObserverFuncs{GuessSequence: func(w *letter.Sequence) { seen = w }}
	d, _ := newDecoder(t, DefaultConfig(), o, WithObserver(obs))

	words, err := d.DecodeImage(context.Background(), img)
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.NotSame(t, words[0], seen)
	assert.Equal(t, words[0].GuessedWord(), seen.GuessedWord())
}

func TestDecodeStopsAtWordBoundaryOnCancel(t *testing.T) {
	img, o := newImage([][]model.Decision{{p("a", 1)}})
	d, rec := newDecoder(t, DefaultConfig(), o)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	words, err := d.DecodeImage(ctx, img)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, words)
	assert.NotContains(t, rec.Events(), EventGuessSequence)
}

func TestDecodeSkipsEmptyGroups(t *testing.T) {
	img, o := newImage([][]model.Decision{{p("a", 1)}})
	img.Groups = append(img.Groups, shape.Group{ID: 99})
	d, _ := newDecoder(t, DefaultConfig(), o)

	words, err := d.DecodeImage(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, words, 1)
}

func TestNewRejectsBadConfig(t *testing.T) {
	g, err := guesser.New(nil, oracle{}, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero beam width", func(c *Config) { c.BeamWidth = 0 }},
		{"margin above one", func(c *Config) { c.MarginThreshold = 1.5 }},
		{"negative holdover", func(c *Config) { c.MaxHoldoverWords = -1 }},
		{"negative boost", func(c *Config) { c.KnownWordBoost = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg, g)
			require.Error(t, err)
			code, ok := ocrerrors.CodeOf(err)
			require.True(t, ok)
			assert.Equal(t, ocrerrors.ErrorConfiguration, code)
		})
	}

	_, err = New(DefaultConfig(), nil)
	assert.Error(t, err)
}

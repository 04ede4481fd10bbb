package letter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/ocr-decoder/internal/boundary"
	"github.com/ironsheep/ocr-decoder/internal/shape"
)

func newWord(letters ...string) (*shape.Arena, shape.Group) {
	arena := shape.NewArena()
	g := shape.Group{ID: 1}
	for i, l := range letters {
		s := shape.New(shape.Bounds{X1: i * 10, Y1: 0, X2: i*10 + 8, Y2: 10}, nil)
		s.Letter = l
		g.Shapes = append(g.Shapes, arena.Add(s))
	}
	return arena, g
}

func TestSequenceExtendIsCopyOnWrite(t *testing.T) {
	arena, g := newWord("a", "b")
	root := NewSequence(arena, g, boundary.PassThrough(g), nil)

	a := root.Extend("a", 0.9)
	ab := a.Extend("b", 0.8)
	ac := a.Extend("c", 0.2)

	assert.Equal(t, 0, root.Len())
	assert.Equal(t, "a", a.GuessedWord())
	assert.Equal(t, "ab", ab.GuessedWord())
	assert.Equal(t, "ac", ac.GuessedWord())
	assert.InDelta(t, 0.72, ab.Probability(), 1e-9)
	assert.InDelta(t, 0.18, ac.Probability(), 1e-9)
	assert.True(t, ab.Complete())
	assert.False(t, a.Complete())

	last, ok := ab.Last()
	require.True(t, ok)
	assert.Equal(t, Letter("b"), last)
	assert.InDelta(t, 0.8, ab.Guess(1), 1e-9)
}

func TestSequenceCloneIsIndependent(t *testing.T) {
	arena, g := newWord("a")
	s := NewSequence(arena, g, boundary.PassThrough(g), nil).Extend("a", 0.5)

	c := s.Clone()
	letters := c.Letters()
	letters[0] = "z"

	assert.Equal(t, "a", s.GuessedWord())
	assert.Equal(t, "a", c.GuessedWord())

	f := s.WithFrequency(12)
	assert.Equal(t, 12, f.Frequency())
	assert.Equal(t, 0, s.Frequency())
}

func TestSequenceHoldoverChain(t *testing.T) {
	arena, g1 := newWord("o", "f")
	first := NewSequence(arena, g1, boundary.PassThrough(g1), nil).Extend("o", 0.6).Extend("f", 0.85)

	_, g2 := newWord("a")
	g2.ID = 2
	second := NewSequence(arena, g2, boundary.PassThrough(g2), first).Extend("a", 0.5)

	assert.InDelta(t, 0.6*0.85*0.5, second.Probability(), 1e-9)
	assert.InDelta(t, 0.5, second.WordProbability(), 1e-9)

	words := second.Words()
	require.Len(t, words, 2)
	assert.Same(t, first, words[0])
	assert.Same(t, second, words[1])
	assert.Equal(t, "a", second.GuessedWord())
}

func TestSequenceRealWord(t *testing.T) {
	arena, g := newWord("a|", "|a", "b", "")
	merged := shape.New(shape.Bounds{X1: 0, Y1: 0, X2: 18, Y2: 10}, nil)
	merged.Letter = shape.JoinLetters("a|", "|a")
	mergedID := arena.Add(merged)

	shapes := boundary.ShapeSequence{Units: []boundary.ShapeInSequence{
		{Shape: mergedID, Originals: g.Shapes[:2]},
		{Shape: g.Shapes[2], Originals: g.Shapes[2:3]},
		{Shape: g.Shapes[3], Originals: g.Shapes[3:4]},
	}}
	s := NewSequence(arena, g, shapes, nil).Extend("a", 1).Extend("b", 1).Extend(Smudge, 1)

	assert.Equal(t, "ab", s.RealWord())
	assert.Equal(t, "ab[]", s.RealSequence())
	assert.Equal(t, "ab", s.GuessedWord())
	assert.Equal(t, "ab[]", s.GuessedSequence())
}

func TestSequenceRealSequenceShowsSplitPieces(t *testing.T) {
	arena, g := newWord("a|", "|a", "ch")
	s := NewSequence(arena, g, boundary.PassThrough(g), nil)

	assert.Equal(t, "[a|][|a][ch]", s.RealSequence())
	assert.Equal(t, "ach", s.RealWord())
}

func TestAlphabetValidator(t *testing.T) {
	v := NewAlphabetValidator("abcאב", "ch", "װ")

	tests := []struct {
		letter string
		want   bool
	}{
		{"", true},
		{"a", true},
		{"א", true},
		{"ch", true},
		{"װ", true},
		{"z", false},
		{"ab", false},
		{"a|", false},
		{"\xff", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, v.Validate(tt.letter), "Validate(%q)", tt.letter)
	}
	assert.True(t, v.IsMultiLetter("ch"))
	assert.False(t, v.IsMultiLetter("a"))
}

func TestValidatorFuncAcceptsSmudge(t *testing.T) {
	never := ValidatorFunc(func(string) bool { return false })
	assert.True(t, never.Validate(""))
	assert.False(t, never.Validate("a"))
}

func TestLetterDisplay(t *testing.T) {
	assert.Equal(t, "a", Letter("a").Display())
	assert.Equal(t, "[ch]", Letter("ch").Display())
	assert.Equal(t, "[]", Smudge.Display())
	assert.True(t, Smudge.IsSmudge())
}

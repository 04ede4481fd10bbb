package letter

import (
	"fmt"
	"strings"

	"github.com/ironsheep/ocr-decoder/internal/boundary"
	"github.com/ironsheep/ocr-decoder/internal/shape"
)

// Sequence is a hypothesis for the letters of one word, decoded from one
// segmentation of the word's group.
//
// A Sequence may continue a held-over hypothesis of the previous word; in
// that case Previous is set and Probability covers the whole chain.
//
// Sequences are never modified once created: Extend returns a new value.
type Sequence struct {
	letters []Letter
	guesses []float64

	shapes boundary.ShapeSequence
	group  shape.Group
	arena  *shape.Arena
	prev   *Sequence

	probability float64
	frequency   int
}

// NewSequence starts an empty hypothesis for group g decoded from shapes. If
// prev is non-nil the new word continues that held-over hypothesis and
// inherits its probability.
func NewSequence(arena *shape.Arena, g shape.Group, shapes boundary.ShapeSequence, prev *Sequence) *Sequence {
	p := 1.0
	if prev != nil {
		p = prev.probability
	}
	return &Sequence{
		letters:     make([]Letter, 0, shapes.Len()),
		guesses:     make([]float64, 0, shapes.Len()),
		shapes:      shapes,
		group:       g,
		arena:       arena,
		prev:        prev,
		probability: p,
	}
}

// Extend returns a new sequence with l appended, chosen with probability p.
func (s *Sequence) Extend(l Letter, p float64) *Sequence {
	c := s.Clone()
	c.letters = append(c.letters, l)
	c.guesses = append(c.guesses, p)
	c.probability *= p
	return c
}

// Clone returns a copy of s that shares nothing mutable with it.
func (s *Sequence) Clone() *Sequence {
	c := *s
	c.letters = make([]Letter, len(s.letters), len(s.letters)+1)
	copy(c.letters, s.letters)
	c.guesses = make([]float64, len(s.guesses), len(s.guesses)+1)
	copy(c.guesses, s.guesses)
	return &c
}

// Len is the number of letters decoded so far.
func (s *Sequence) Len() int { return len(s.letters) }

// Complete reports whether every unit of the shape sequence has a letter.
func (s *Sequence) Complete() bool { return len(s.letters) == s.shapes.Len() }

// Letters returns a copy of the decoded letters.
func (s *Sequence) Letters() []Letter { return append([]Letter(nil), s.letters...) }

// Letter returns the i-th letter.
func (s *Sequence) Letter(i int) Letter { return s.letters[i] }

// Guess returns the probability with which the i-th letter was chosen.
func (s *Sequence) Guess(i int) float64 { return s.guesses[i] }

// Last returns the most recent letter, if any.
func (s *Sequence) Last() (Letter, bool) {
	if len(s.letters) == 0 {
		return Smudge, false
	}
	return s.letters[len(s.letters)-1], true
}

// Probability is the product of the chosen letter probabilities along the
// whole path, held-over words included.
func (s *Sequence) Probability() float64 { return s.probability }

// WordProbability is the product of this word's letter probabilities only.
func (s *Sequence) WordProbability() float64 {
	p := 1.0
	for _, g := range s.guesses {
		p *= g
	}
	return p
}

// Frequency is the lexicon frequency of the guessed word, 0 if unknown or
// not looked up.
func (s *Sequence) Frequency() int { return s.frequency }

// WithFrequency returns a copy of s carrying the given lexicon frequency.
func (s *Sequence) WithFrequency(f int) *Sequence {
	c := s.Clone()
	c.frequency = f
	return c
}

// Shapes is the segmentation the sequence was decoded from.
func (s *Sequence) Shapes() boundary.ShapeSequence { return s.shapes }

// Group is the word's group of shapes.
func (s *Sequence) Group() shape.Group { return s.group }

// Arena is the arena the shape IDs resolve in.
func (s *Sequence) Arena() *shape.Arena { return s.arena }

// Previous is the held-over hypothesis this word continues, or nil.
func (s *Sequence) Previous() *Sequence { return s.prev }

// Words returns the chain of words ending in s, oldest first. A sequence
// without a held-over predecessor returns just itself.
func (s *Sequence) Words() []*Sequence {
	var chain []*Sequence
	for w := s; w != nil; w = w.prev {
		chain = append(chain, w)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// GuessedWord is the concatenation of the decoded letters.
func (s *Sequence) GuessedWord() string {
	var b strings.Builder
	for _, l := range s.letters {
		b.WriteString(string(l))
	}
	return b.String()
}

// GuessedSequence shows the decoded letters one per unit, bracketing
// multi-character letters and smudges.
func (s *Sequence) GuessedSequence() string {
	var b strings.Builder
	for _, l := range s.letters {
		b.WriteString(l.Display())
	}
	return b.String()
}

// RealWord is the ground-truth word: the letters of the original shapes in
// reading order, split markers resolved.
func (s *Sequence) RealWord() string {
	if s.arena == nil {
		return ""
	}
	word := ""
	var last shape.ID = shape.NoID
	for _, u := range s.shapes.Units {
		for _, id := range u.Originals {
			if id == last {
				continue
			}
			last = id
			if o := s.arena.Get(id); o != nil {
				word = shape.JoinLetters(word, o.Letter)
			}
		}
	}
	return word
}

// RealSequence shows the ground-truth letter of each unit. Units whose
// letter is not a single character (merged letters, split pieces, smudges)
// are bracketed, which makes segmentation errors visible.
func (s *Sequence) RealSequence() string {
	if s.arena == nil {
		return ""
	}
	var b strings.Builder
	for _, u := range s.shapes.Units {
		if sh := s.arena.Get(u.Shape); sh != nil {
			b.WriteString(Letter(sh.Letter).Display())
		}
	}
	return b.String()
}

func (s *Sequence) String() string {
	return fmt.Sprintf("%s (%.4f)", s.GuessedSequence(), s.probability)
}

package eventstream

import (
	"context"
	"io"
	"strings"

	"github.com/ironsheep/ocr-decoder/internal/shape"
)

// TruthReader labels detected groups with a ground-truth transcription and
// reads them back as corpus groups. The transcription holds one
// whitespace-separated word per group, in reading order, and one rune per
// shape.
//
// Groups whose shape count does not match their word are not labelled and
// are skipped.
type TruthReader struct {
	image  string
	arena  *shape.Arena
	groups []shape.Group
	words  []string

	pos        int
	mismatched int
}

// NewTruthReader creates a reader for the groups of one image.
func NewTruthReader(image string, arena *shape.Arena, groups []shape.Group, transcription string) *TruthReader {
	return &TruthReader{
		image:  image,
		arena:  arena,
		groups: groups,
		words:  strings.Fields(transcription),
	}
}

// Next implements GroupReader.
func (r *TruthReader) Next(ctx context.Context) (*CorpusGroup, error) {
	for r.pos < len(r.groups) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g := r.groups[r.pos]
		word := ""
		if r.pos < len(r.words) {
			word = r.words[r.pos]
		}
		r.pos++

		runes := []rune(word)
		if len(runes) != len(g.Shapes) {
			r.mismatched++
			continue
		}
		for i, id := range g.Shapes {
			if s := r.arena.Get(id); s != nil {
				s.Letter = string(runes[i])
			}
		}
		return &CorpusGroup{Image: r.image, Arena: r.arena, Group: g}, nil
	}
	return nil, io.EOF
}

// Mismatched returns the number of groups skipped because their shape count
// did not match their word.
func (r *TruthReader) Mismatched() int { return r.mismatched }

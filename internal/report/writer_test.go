package report

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/ocr-decoder/internal/boundary"
	"github.com/ironsheep/ocr-decoder/internal/decoder"
	"github.com/ironsheep/ocr-decoder/internal/letter"
	"github.com/ironsheep/ocr-decoder/internal/shape"
)

type mapLexicon map[string]int

func (m mapLexicon) Frequency(_ context.Context, word string) (int, error) {
	return m[word], nil
}

// word builds a decoded word whose shapes carry truth and whose guessed
// letters are guess.
func word(arena *shape.Arena, id int64, truth []string, guess string) *letter.Sequence {
	g := shape.Group{ID: id, Document: "doc", Page: 1, Index: int(id)}
	for i, l := range truth {
		s := shape.New(shape.Bounds{X1: i * 10, X2: i*10 + 8, Y2: 10}, nil)
		s.Letter = l
		g.Shapes = append(g.Shapes, arena.Add(s))
	}
	seq := letter.NewSequence(arena, g, boundary.PassThrough(g), nil)
	for _, r := range guess {
		seq = seq.Extend(letter.Letter(string(r)), 0.9)
	}
	return seq
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	return records
}

func TestErrorWriter(t *testing.T) {
	dir := t.TempDir()
	w, err := NewErrorWriter(dir, "run",
		WithLexicon(mapLexicon{"cat": 5}),
		WithDocumentGroups(map[string][]string{"fiction": {"doc"}}))
	require.NoError(t, err)

	arena := shape.NewArena()
	cat := word(arena, 1, []string{"c", "a", "t"}, "cat")
	dig := word(arena, 2, []string{"d", "o", "g"}, "dig")
	dog := word(arena, 2, []string{"d", "o", "g"}, "dog")

	img := decoder.ImageInfo{Document: "doc", Name: "page-1", Page: 1}
	w.OnImageStart(img)
	w.OnBeamSearchEnd(cat, []*letter.Sequence{cat}, nil)
	w.OnGuessSequence(cat)
	w.OnBeamSearchEnd(dig, []*letter.Sequence{dig, dog}, nil)
	w.OnGuessSequence(dig)
	w.OnImageEnd(img)
	require.NoError(t, w.OnFinish())

	all, ok := w.Stats(AllGroup)
	require.True(t, ok)
	assert.Equal(t, 2, all.Words())
	assert.Equal(t, 1, all.KnownCorrect)
	assert.Equal(t, 1, all.UnknownError)
	assert.Equal(t, 3, all.KnownLettersCorrect)
	assert.Equal(t, 2, all.UnknownLettersCorrect)
	assert.Equal(t, 1, all.UnknownLettersError)
	assert.Equal(t, 1, all.InBeamCorrect)
	assert.Equal(t, 1, all.InBeamError)
	assert.Equal(t, 2, all.GoodSegCorrect+all.GoodSegError)
	assert.InDelta(t, 0.5, all.Accuracy(), 1e-9)

	for _, name := range []string{"doc", "fiction"} {
		s, ok := w.Stats(name)
		require.True(t, ok, name)
		assert.Equal(t, all, s, name)
	}

	lines := map[string]int{
		SuffixKnownCorrect:   2,
		SuffixKnownError:     1,
		SuffixUnknownError:   2,
		SuffixUnknownCorrect: 1,
		SuffixAll:            3,
		SuffixErrors:         2,
	}
	for suffix, want := range lines {
		assert.Len(t, readCSV(t, filepath.Join(dir, "run"+suffix)), want, suffix)
	}

	errRows := readCSV(t, filepath.Join(dir, "run"+SuffixErrors))
	assert.Equal(t, []string{"dog", "dog", "dig", "dig", "0", "1", "0", "0", "doc", "1", "0", "0", "2", "2"}, errRows[1])

	m := readCSV(t, filepath.Join(dir, "run"+SuffixMatrix))
	require.NotEmpty(t, m)
	assert.Equal(t, []string{AllGroup, "", "", "", "", "fiction", "", "", "", "", "doc", "", "", "", ""}, m[0])
	assert.Equal(t, []string{"known", "1", "0", "1", ""}, m[2][:5])
	assert.Equal(t, []string{"total%", "50", "50", "100", ""}, m[13][:5])
}

func TestErrorWriterBadSegmentation(t *testing.T) {
	w, err := NewErrorWriter(t.TempDir(), "seg", WithMultiLetters(letter.NewAlphabetValidator("ab", "ch")))
	require.NoError(t, err)

	arena := shape.NewArena()
	split := word(arena, 1, []string{"a|", "|a", "b"}, "aab")
	multi := word(arena, 2, []string{"ch", "a"}, "xa")

	w.OnImageStart(decoder.ImageInfo{Document: "d"})
	w.OnGuessSequence(split)
	w.OnGuessSequence(multi)
	require.NoError(t, w.OnFinish())

	s, _ := w.Stats(AllGroup)
	assert.Equal(t, 1, s.BadSegError, "split letters mark the word as badly segmented")
	assert.Equal(t, 2, s.BadSegLettersError)
	assert.Equal(t, 1, s.GoodSegError, "a configured multi-character letter is not a segmentation error")
	assert.Equal(t, 2, s.GoodSegLettersCorrect)
	assert.Equal(t, 1, s.GoodSegLettersError)
	assert.Zero(t, s.InBeamCorrect+s.InBeamError)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "0", percent(0, 0))
	assert.Equal(t, "0", percent(0, 3))
	assert.Equal(t, "33.33", percent(1, 3))
	assert.Equal(t, "50", percent(1, 2))
	assert.Equal(t, "12.5", percent(1, 8))
	assert.Equal(t, "100", percent(4, 4))
}

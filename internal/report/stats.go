package report

import (
	"strconv"
	"strings"
)

// Stats counts decoded words and letters for one document, one named group
// of documents, or the whole run.
//
// A word is known when its ground-truth spelling is in the lexicon. A word
// has bad segmentation when one of its units does not cover exactly one
// letter (split pieces, merged letters, smudges).
type Stats struct {
	KnownCorrect, KnownError     int
	UnknownCorrect, UnknownError int
	GoodSegCorrect, GoodSegError int
	BadSegCorrect, BadSegError   int

	KnownLettersCorrect, KnownLettersError     int
	UnknownLettersCorrect, UnknownLettersError int
	GoodSegLettersCorrect, GoodSegLettersError int
	BadSegLettersCorrect, BadSegLettersError   int

	// InBeamCorrect and InBeamError count words whose final beam contained
	// the right answer, split by whether the committed word was right.
	InBeamCorrect, InBeamError int
}

// Words returns the number of words counted.
func (s Stats) Words() int {
	return s.KnownCorrect + s.KnownError + s.UnknownCorrect + s.UnknownError
}

// Letters returns the number of letters counted.
func (s Stats) Letters() int {
	return s.KnownLettersCorrect + s.KnownLettersError + s.UnknownLettersCorrect + s.UnknownLettersError
}

// Accuracy returns the share of correct words, 0 when nothing was counted.
func (s Stats) Accuracy() float64 {
	if s.Words() == 0 {
		return 0
	}
	return float64(s.KnownCorrect+s.UnknownCorrect) / float64(s.Words())
}

// matrixRow is one line of the error matrix: a label and the correct and
// error counts it reports for each set of statistics.
type matrixRow struct {
	label   string
	correct func(Stats) int
	errors  func(Stats) int
}

var countRows = []matrixRow{
	{label: "known", correct: func(s Stats) int { return s.KnownCorrect }, errors: func(s Stats) int { return s.KnownError }},
	{label: "unknown", correct: func(s Stats) int { return s.UnknownCorrect }, errors: func(s Stats) int { return s.UnknownError }},
	{label: "goodSeg", correct: func(s Stats) int { return s.GoodSegCorrect }, errors: func(s Stats) int { return s.GoodSegError }},
	{label: "badSeg", correct: func(s Stats) int { return s.BadSegCorrect }, errors: func(s Stats) int { return s.BadSegError }},
	{label: "inBeam", correct: func(s Stats) int { return s.InBeamCorrect }, errors: func(s Stats) int { return s.InBeamError }},
	{label: "total", correct: func(s Stats) int { return s.KnownCorrect + s.UnknownCorrect }, errors: func(s Stats) int { return s.KnownError + s.UnknownError }},
}

var letterRows = []matrixRow{
	{label: "knownLetters", correct: func(s Stats) int { return s.KnownLettersCorrect }, errors: func(s Stats) int { return s.KnownLettersError }},
	{label: "unknownLetters", correct: func(s Stats) int { return s.UnknownLettersCorrect }, errors: func(s Stats) int { return s.UnknownLettersError }},
	{label: "goodSegLetters", correct: func(s Stats) int { return s.GoodSegLettersCorrect }, errors: func(s Stats) int { return s.GoodSegLettersError }},
	{label: "badSegLetters", correct: func(s Stats) int { return s.BadSegLettersCorrect }, errors: func(s Stats) int { return s.BadSegLettersError }},
	{label: "totalLetters", correct: func(s Stats) int { return s.KnownLettersCorrect + s.UnknownLettersCorrect }, errors: func(s Stats) int { return s.KnownLettersError + s.UnknownLettersError }},
}

// matrix lays out the statistics side by side, five columns per set: the
// count rows, their percentages, then the same for letters.
func matrix(names []string, stats map[string]*Stats) [][]string {
	var rows [][]string

	header := make([]string, 0, 5*len(names))
	sub := make([]string, 0, 5*len(names))
	for _, name := range names {
		header = append(header, name, "", "", "", "")
		sub = append(sub, "", "correct", "error", "total", "")
	}
	rows = append(rows, header, sub)

	block := func(defs []matrixRow, total func(Stats) int) {
		for _, def := range defs {
			row := make([]string, 0, 5*len(names))
			for _, name := range names {
				s := *stats[name]
				c, e := def.correct(s), def.errors(s)
				row = append(row, def.label, strconv.Itoa(c), strconv.Itoa(e), strconv.Itoa(c+e), "")
			}
			rows = append(rows, row)
		}
		for _, def := range defs {
			row := make([]string, 0, 5*len(names))
			for _, name := range names {
				s := *stats[name]
				c, e := def.correct(s), def.errors(s)
				row = append(row, def.label+"%", percent(c, c+e), percent(e, c+e), percent(c+e, total(s)), "")
			}
			rows = append(rows, row)
		}
	}
	block(countRows, Stats.Words)
	block(letterRows, Stats.Letters)
	return rows
}

// percent formats part/whole as a percentage with at most two decimals.
func percent(part, whole int) string {
	if whole == 0 {
		return "0"
	}
	s := strconv.FormatFloat(float64(part)/float64(whole)*100, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

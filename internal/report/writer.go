// Package report writes evaluation reports from decoder events. The
// [ErrorWriter] compares every committed word with its ground truth and
// sorts it into known/unknown and correct/error files, then writes an error
// matrix when the run finishes.
package report

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/ocr-decoder/internal/boundary"
	"github.com/ironsheep/ocr-decoder/internal/decoder"
	"github.com/ironsheep/ocr-decoder/internal/letter"
	"github.com/ironsheep/ocr-decoder/internal/logging"
)

// AllGroup names the statistics covering the whole run.
const AllGroup = "All"

// File suffixes written by ErrorWriter.
const (
	SuffixKnownError     = "_KE.csv"
	SuffixKnownCorrect   = "_KC.csv"
	SuffixUnknownError   = "_UE.csv"
	SuffixUnknownCorrect = "_UC.csv"
	SuffixAll            = "_all.csv"
	SuffixErrors         = "_err.csv"
	SuffixMatrix         = "_KEMatrix.csv"
)

var (
	categoryHeader = []string{"realSeq", "realWord", "guessSeq", "guessWord", "realFreq", "guessFreq", "file", "page", "par", "row", "group", "id"}
	allHeader      = []string{"realSeq", "realWord", "guessSeq", "guessWord", "known", "error", "realFreq", "guessFreq", "file", "page", "par", "row", "group", "id"}
)

// MultiLetters reports which multi-character strings are single letters of
// the script. *letter.AlphabetValidator implements it.
type MultiLetters interface {
	IsMultiLetter(l string) bool
}

// ErrorWriter is a decoder.Observer producing the evaluation report. It is
// not safe for concurrent use: give each decoder its own writer or decode
// documents one after another.
type ErrorWriter struct {
	dir, base string
	lexicon   decoder.Lexicon
	multi     MultiLetters
	log       logrus.FieldLogger

	files  map[string]*os.File
	csv    map[string]*csv.Writer
	names  []string
	stats  map[string]*Stats
	groups map[string]map[string]bool

	document string
	inBeam   bool
	err      error
}

var _ decoder.Observer = (*ErrorWriter)(nil)

// Option configures an ErrorWriter.
type Option func(*ErrorWriter)

// WithLexicon sets the lexicon deciding whether a ground-truth word is
// known.
func WithLexicon(l decoder.Lexicon) Option {
	return func(w *ErrorWriter) { w.lexicon = l }
}

// WithMultiLetters sets the multi-character letters that do not count as bad
// segmentation.
func WithMultiLetters(m MultiLetters) Option {
	return func(w *ErrorWriter) { w.multi = m }
}

// WithDocumentGroups adds named sets of documents with their own statistics.
func WithDocumentGroups(groups map[string][]string) Option {
	return func(w *ErrorWriter) {
		names := make([]string, 0, len(groups))
		for name := range groups {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			docs := groups[name]
			set := make(map[string]bool, len(docs))
			for _, d := range docs {
				set[d] = true
			}
			w.groups[name] = set
			w.addStats(name)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(w *ErrorWriter) { w.log = log }
}

// NewErrorWriter creates the report files dir/base_*.csv and writes their
// headers.
func NewErrorWriter(dir, base string, opts ...Option) (*ErrorWriter, error) {
	w := &ErrorWriter{
		dir:    dir,
		base:   base,
		files:  make(map[string]*os.File),
		csv:    make(map[string]*csv.Writer),
		stats:  make(map[string]*Stats),
		groups: make(map[string]map[string]bool),
	}
	w.addStats(AllGroup)
	for _, opt := range opts {
		opt(w)
	}
	w.log = logging.OrDiscard(w.log)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	for _, suffix := range []string{SuffixKnownError, SuffixKnownCorrect, SuffixUnknownError, SuffixUnknownCorrect, SuffixAll, SuffixErrors} {
		f, err := os.Create(w.path(suffix))
		if err != nil {
			w.closeFiles()
			return nil, fmt.Errorf("failed to create report file: %w", err)
		}
		w.files[suffix] = f
		w.csv[suffix] = csv.NewWriter(f)
		header := categoryHeader
		if suffix == SuffixAll || suffix == SuffixErrors {
			header = allHeader
		}
		w.write(suffix, header)
	}
	if w.err != nil {
		w.closeFiles()
		return nil, w.err
	}
	return w, nil
}

func (w *ErrorWriter) path(suffix string) string {
	return filepath.Join(w.dir, w.base+suffix)
}

func (w *ErrorWriter) addStats(name string) *Stats {
	if s, ok := w.stats[name]; ok {
		return s
	}
	s := &Stats{}
	w.stats[name] = s
	w.names = append(w.names, name)
	return s
}

// Stats returns a copy of the statistics called name: AllGroup, a document
// name or a document group name.
func (w *ErrorWriter) Stats(name string) (Stats, bool) {
	s, ok := w.stats[name]
	if !ok {
		return Stats{}, false
	}
	return *s, true
}

func (w *ErrorWriter) write(suffix string, record []string) {
	if w.err != nil {
		return
	}
	cw := w.csv[suffix]
	if err := cw.Write(record); err != nil {
		w.err = fmt.Errorf("failed to write %s: %w", w.base+suffix, err)
		return
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		w.err = fmt.Errorf("failed to write %s: %w", w.base+suffix, err)
	}
}

// OnImageStart implements decoder.Observer.
func (w *ErrorWriter) OnImageStart(img decoder.ImageInfo) {
	if img.Document != w.document {
		w.document = img.Document
		w.addStats(img.Document)
	}
}

// OnBeamSearchEnd records whether the right answer was in the final beam.
// When hypotheses are held over, the answer must also be among them.
func (w *ErrorWriter) OnBeamSearchEnd(_ *letter.Sequence, finals, holdover []*letter.Sequence) {
	w.inBeam = containsAnswer(finals)
	if w.inBeam && len(holdover) > 0 {
		w.inBeam = containsAnswer(holdover)
	}
}

func containsAnswer(seqs []*letter.Sequence) bool {
	for _, s := range seqs {
		if s.RealWord() == s.GuessedWord() {
			return true
		}
	}
	return false
}

func (w *ErrorWriter) OnStartSequence(*letter.Sequence) {}

func (w *ErrorWriter) OnGuessLetter(boundary.ShapeInSequence, string) {}

// OnGuessSequence classifies the committed word and writes it out.
func (w *ErrorWriter) OnGuessSequence(word *letter.Sequence) {
	realWord := word.RealWord()
	realFreq := 0
	if w.lexicon != nil {
		f, err := w.lexicon.Frequency(context.Background(), realWord)
		if err != nil && w.err == nil {
			w.err = fmt.Errorf("failed to look up %q: %w", realWord, err)
		}
		realFreq = f
	}
	known := realFreq > 0
	wrong := realWord != word.GuessedWord()
	realSeq := word.RealSequence()
	badSeg := w.badSegmentation(word)

	g := word.Group()
	doc := g.Document
	if doc == "" {
		doc = w.document
	}
	location := []string{
		doc,
		strconv.Itoa(g.Page),
		strconv.Itoa(g.Paragraph),
		strconv.Itoa(g.Row),
		strconv.Itoa(g.Index),
		strconv.FormatInt(g.ID, 10),
	}
	texts := []string{realSeq, realWord, word.GuessedSequence(), word.GuessedWord()}
	freqs := []string{strconv.Itoa(realFreq), strconv.Itoa(word.Frequency())}

	full := append(append(append(append([]string{}, texts...), flag(known), flag(wrong)), freqs...), location...)
	w.write(SuffixAll, full)
	if wrong {
		w.write(SuffixErrors, full)
	}

	var suffix string
	switch {
	case known && wrong:
		suffix = SuffixKnownError
	case known:
		suffix = SuffixKnownCorrect
	case wrong:
		suffix = SuffixUnknownError
	default:
		suffix = SuffixUnknownCorrect
	}
	w.write(suffix, append(append(append([]string{}, texts...), freqs...), location...))

	for _, s := range w.statsFor(doc) {
		w.count(s, word, known, wrong, badSeg)
	}
	w.inBeam = false

	w.log.WithFields(logrus.Fields{
		"real":  realWord,
		"guess": word.GuessedWord(),
		"known": known,
	}).Trace("word evaluated")
}

// statsFor returns the statistics a word of document counts towards.
func (w *ErrorWriter) statsFor(document string) []*Stats {
	out := []*Stats{w.stats[AllGroup], w.addStats(document)}
	for _, name := range w.names {
		if members, ok := w.groups[name]; ok && members[document] {
			out = append(out, w.stats[name])
		}
	}
	return out
}

func (w *ErrorWriter) count(s *Stats, word *letter.Sequence, known, wrong, badSeg bool) {
	if w.inBeam {
		if wrong {
			s.InBeamError++
		} else {
			s.InBeamCorrect++
		}
	}

	units := word.Shapes().Units
	for i := 0; i < word.Len() && i < len(units); i++ {
		truth := ""
		if sh := word.Arena().Get(units[i].Shape); sh != nil {
			truth = sh.Letter
		}
		right := truth == string(word.Letter(i))
		switch {
		case known && right:
			s.KnownLettersCorrect++
		case known:
			s.KnownLettersError++
		case right:
			s.UnknownLettersCorrect++
		default:
			s.UnknownLettersError++
		}
		switch {
		case w.badSegLetter(truth) && right:
			s.BadSegLettersCorrect++
		case w.badSegLetter(truth):
			s.BadSegLettersError++
		case right:
			s.GoodSegLettersCorrect++
		default:
			s.GoodSegLettersError++
		}
	}

	switch {
	case known && wrong:
		s.KnownError++
	case known:
		s.KnownCorrect++
	case wrong:
		s.UnknownError++
	default:
		s.UnknownCorrect++
	}
	switch {
	case badSeg && wrong:
		s.BadSegError++
	case badSeg:
		s.BadSegCorrect++
	case wrong:
		s.GoodSegError++
	default:
		s.GoodSegCorrect++
	}
}

// badSegmentation reports whether any unit of word covers something other
// than one letter.
func (w *ErrorWriter) badSegmentation(word *letter.Sequence) bool {
	for _, u := range word.Shapes().Units {
		if sh := word.Arena().Get(u.Shape); sh == nil || w.badSegLetter(sh.Letter) {
			return true
		}
	}
	return false
}

// badSegLetter reports whether a ground-truth letter shows a segmentation
// error: a split piece, a smudge, or several letters in one unit.
func (w *ErrorWriter) badSegLetter(l string) bool {
	if l == "" || strings.Contains(l, "|") {
		return true
	}
	if utf8.RuneCountInString(l) > 1 {
		return w.multi == nil || !w.multi.IsMultiLetter(l)
	}
	return false
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (w *ErrorWriter) OnImageEnd(decoder.ImageInfo) {}

// OnFinish closes the word files and writes the error matrix. It returns the
// first error met while writing.
func (w *ErrorWriter) OnFinish() error {
	errs := []error{w.err}
	errs = append(errs, w.closeFiles())

	f, err := os.Create(w.path(SuffixMatrix))
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to create error matrix: %w", err))
		return errors.Join(errs...)
	}
	cw := csv.NewWriter(f)
	if err := cw.WriteAll(matrix(w.names, w.stats)); err != nil {
		errs = append(errs, fmt.Errorf("failed to write error matrix: %w", err))
	}
	errs = append(errs, f.Close())

	all := w.stats[AllGroup]
	w.log.WithFields(logrus.Fields{
		"words":    all.Words(),
		"accuracy": all.Accuracy(),
		"report":   w.path(SuffixMatrix),
	}).Info("evaluation report written")
	return errors.Join(errs...)
}

func (w *ErrorWriter) closeFiles() error {
	var errs []error
	for suffix, f := range w.files {
		if cw, ok := w.csv[suffix]; ok {
			cw.Flush()
		}
		errs = append(errs, f.Close())
	}
	w.files = map[string]*os.File{}
	return errors.Join(errs...)
}

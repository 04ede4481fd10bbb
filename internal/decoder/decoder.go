package decoder

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/ocr-decoder/internal/boundary"
	ocrerrors "github.com/ironsheep/ocr-decoder/internal/errors"
	"github.com/ironsheep/ocr-decoder/internal/guesser"
	"github.com/ironsheep/ocr-decoder/internal/letter"
	"github.com/ironsheep/ocr-decoder/internal/logging"
	"github.com/ironsheep/ocr-decoder/internal/shape"
)

// LetterGuesser classifies one unit and stores its ranked guesses on the
// unit's shape. *guesser.Guesser implements it.
type LetterGuesser interface {
	GuessLetter(arena *shape.Arena, unit boundary.ShapeInSequence, history *letter.Sequence) (string, error)
}

var _ LetterGuesser = (*guesser.Guesser)(nil)

// Lexicon returns how often a word occurs; 0 means unknown. Implementations
// must be safe for concurrent reads.
type Lexicon interface {
	Frequency(ctx context.Context, word string) (int, error)
}

// Image is one page image ready for decoding: its shapes and its words in
// reading order.
type Image struct {
	Document string
	Name     string
	Page     int
	Arena    *shape.Arena
	Groups   []shape.Group
}

// Info returns the identifying part of img.
func (img *Image) Info() ImageInfo {
	return ImageInfo{Document: img.Document, Name: img.Name, Page: img.Page}
}

// Decoder runs the beam search over the images of one document.
type Decoder struct {
	cfg      Config
	guesser  LetterGuesser
	detector boundary.Detector
	lexicon  Lexicon
	observer Observer
	log      logrus.FieldLogger

	holdover      []*letter.Sequence
	holdoverWords int
	finished      bool
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithDetector sets the boundary detector. Without one every shape is its
// own unit.
func WithDetector(d boundary.Detector) Option {
	return func(dec *Decoder) { dec.detector = d }
}

// WithLexicon sets the lexicon used for word frequencies and the known-word
// boost.
func WithLexicon(l Lexicon) Option {
	return func(dec *Decoder) { dec.lexicon = l }
}

// WithObserver adds an observer. Observers are called in the order added.
func WithObserver(o Observer) Option {
	return func(dec *Decoder) {
		if existing, ok := dec.observer.(Observers); ok {
			dec.observer = append(existing, o)
			return
		}
		dec.observer = Observers{o}
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(dec *Decoder) { dec.log = log }
}

// New creates a Decoder. It returns a configuration error when cfg is
// invalid or g is nil.
func New(cfg Config, g LetterGuesser, opts ...Option) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ocrerrors.NewConfigurationError("decoder requires a letter guesser", nil)
	}
	d := &Decoder{cfg: cfg, guesser: g, observer: Observers{}}
	for _, opt := range opts {
		opt(d)
	}
	d.log = logging.OrDiscard(d.log)
	return d, nil
}

// Config returns the decoder's configuration.
func (d *Decoder) Config() Config { return d.cfg }

// DecodeImage decodes every group of img and returns the committed words in
// reading order. A fatal error aborts the image; the returned error is a
// *errors.DecodeError naming the document, image, group and unit.
//
// ctx is checked before each word. Cancellation never interrupts a word in
// progress.
func (d *Decoder) DecodeImage(ctx context.Context, img *Image) ([]*letter.Sequence, error) {
	if d.finished {
		return nil, ocrerrors.NewLogicError("decoder already finished", nil)
	}
	info := img.Info()
	log := d.log.WithFields(logrus.Fields{"document": img.Document, "image": img.Name})
	d.observer.OnImageStart(info)

	var committed []*letter.Sequence
	for gi, g := range img.Groups {
		if err := ctx.Err(); err != nil {
			d.resetHoldover()
			return committed, err
		}

		finals, err := d.searchWord(ctx, img, g)
		if err != nil {
			d.resetHoldover()
			return committed, locate(err, img, g)
		}
		if len(finals) == 0 {
			continue
		}

		last := gi == len(img.Groups)-1
		words, err := d.resolve(ctx, finals, last)
		if err != nil {
			d.resetHoldover()
			return committed, locate(err, img, g)
		}
		committed = append(committed, words...)
	}

	if len(d.holdover) > 0 {
		// Trailing empty groups can leave a holdover behind.
		committed = append(committed, d.commit(d.holdover[0], d.holdover, nil)...)
	}

	log.WithField("words", len(committed)).Debug("image decoded")
	d.observer.OnImageEnd(info)
	return committed, nil
}

// Finish notifies observers that the document is complete. Later calls do
// nothing.
func (d *Decoder) Finish() error {
	if d.finished {
		return nil
	}
	d.finished = true
	return d.observer.OnFinish()
}

func (d *Decoder) resetHoldover() {
	d.holdover = nil
	d.holdoverWords = 0
}

// searchWord runs one beam per segmentation of g and returns the pooled
// final beams.
func (d *Decoder) searchWord(ctx context.Context, img *Image, g shape.Group) ([]*letter.Sequence, error) {
	segmentations, err := boundary.Find(ctx, d.detector, img.Arena, g)
	if err != nil {
		if _, coded := ocrerrors.CodeOf(err); coded {
			return nil, err
		}
		return nil, ocrerrors.NewConfigurationError("boundary detection failed", err)
	}

	seeds := d.holdover
	if len(seeds) == 0 {
		seeds = []*letter.Sequence{nil}
	}

	var finals []*letter.Sequence
	for _, seg := range segmentations {
		beam := make([]*letter.Sequence, len(seeds))
		for i, seed := range seeds {
			beam[i] = letter.NewSequence(img.Arena, g, seg, seed)
		}

		for ui, unit := range seg.Units {
			beam, err = d.extend(img.Arena, unit, beam)
			if err != nil {
				var de *ocrerrors.DecodeError
				if errors.As(err, &de) {
					return nil, de.At("", "", 0, ui)
				}
				return nil, err
			}
		}
		finals = append(finals, beam...)
	}
	return finals, nil
}

// extend classifies unit and grows beam by one letter.
func (d *Decoder) extend(arena *shape.Arena, unit boundary.ShapeInSequence, beam []*letter.Sequence) ([]*letter.Sequence, error) {
	if len(beam) == 0 {
		return nil, ocrerrors.NewLogicError("beam is empty", nil)
	}
	if _, err := d.guesser.GuessLetter(arena, unit, beam[0]); err != nil {
		return nil, err
	}
	guesses := arena.Get(unit.Shape).Guesses()
	if len(guesses) == 0 {
		return nil, ocrerrors.NewConfigurationError(
			fmt.Sprintf("shape %d has no letter guesses", unit.Shape), guesser.ErrNoHypotheses)
	}

	next := make([]*letter.Sequence, 0, len(beam)*len(guesses))
	for _, h := range beam {
		for _, g := range guesses {
			next = append(next, h.Extend(letter.Letter(g.Outcome), g.Probability))
		}
	}
	sort.SliceStable(next, func(i, j int) bool {
		return next[i].Probability() > next[j].Probability()
	})
	if len(next) > d.cfg.BeamWidth {
		next = next[:d.cfg.BeamWidth]
	}
	if len(next) == 0 {
		return nil, ocrerrors.NewLogicError("beam is empty after extension", nil)
	}
	return next, nil
}

// ranked is a final hypothesis with its boundary score.
type ranked struct {
	seq   *letter.Sequence
	score float64
}

// resolve ranks the final hypotheses of a word and either commits the best
// one or holds the ambiguous ones over. It returns the committed words.
func (d *Decoder) resolve(ctx context.Context, finals []*letter.Sequence, last bool) ([]*letter.Sequence, error) {
	candidates := make([]ranked, len(finals))
	for i, seq := range finals {
		freq := 0
		if d.lexicon != nil {
			f, err := d.lexicon.Frequency(ctx, seq.GuessedWord())
			if err != nil {
				return nil, ocrerrors.NewStorageError("lexicon lookup failed", err)
			}
			freq = f
		}
		seq = seq.WithFrequency(freq)
		score := seq.Probability()
		if freq > 0 && d.cfg.KnownWordBoost > 1 {
			score *= d.cfg.KnownWordBoost
		}
		candidates[i] = ranked{seq: seq, score: score}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	shares := normalise(candidates)
	margin := shares[0]
	if len(shares) > 1 {
		margin = shares[0] - shares[1]
	}

	sequences := make([]*letter.Sequence, len(candidates))
	for i, c := range candidates {
		sequences[i] = c.seq
	}
	best := sequences[0]

	holdoverAllowed := d.cfg.MaxHoldoverWords > 0 && d.holdoverWords < d.cfg.MaxHoldoverWords && !last
	if margin > d.cfg.MarginThreshold || !holdoverAllowed {
		return d.commit(best, sequences, nil), nil
	}

	var hold []*letter.Sequence
	for i, s := range shares {
		if shares[0]-s > d.cfg.MarginThreshold || len(hold) == d.cfg.BeamWidth {
			break
		}
		hold = append(hold, sequences[i])
	}
	d.observer.OnBeamSearchEnd(best.Clone(), cloneAll(sequences), cloneAll(hold))
	d.holdover = hold
	d.holdoverWords++

	d.log.WithFields(logrus.Fields{
		"group":    best.Group().ID,
		"best":     best.GuessedWord(),
		"margin":   margin,
		"holdover": len(hold),
	}).Debug("word held over")
	return nil, nil
}

// commit emits best and the held-over words it continues: the letters and
// start of every word, then the end of the beam search, then each word.
func (d *Decoder) commit(best *letter.Sequence, finals, holdover []*letter.Sequence) []*letter.Sequence {
	d.resetHoldover()

	words := best.Words()
	for _, w := range words {
		units := w.Shapes().Units
		for i := 0; i < w.Len() && i < len(units); i++ {
			d.observer.OnGuessLetter(units[i], string(w.Letter(i)))
		}
		d.observer.OnStartSequence(w.Clone())
	}
	d.observer.OnBeamSearchEnd(best.Clone(), cloneAll(finals), cloneAll(holdover))
	for _, w := range words {
		d.observer.OnGuessSequence(w.Clone())
	}
	return words
}

// normalise returns each candidate's share of the total score.
func normalise(candidates []ranked) []float64 {
	shares := make([]float64, len(candidates))
	total := 0.0
	for _, c := range candidates {
		total += c.score
	}
	for i, c := range candidates {
		if total > 0 {
			shares[i] = c.score / total
		} else {
			shares[i] = 1 / float64(len(candidates))
		}
	}
	return shares
}

func cloneAll(seqs []*letter.Sequence) []*letter.Sequence {
	if seqs == nil {
		return nil
	}
	out := make([]*letter.Sequence, len(seqs))
	for i, s := range seqs {
		out[i] = s.Clone()
	}
	return out
}

// locate fills in the document position of a decode error.
func locate(err error, img *Image, g shape.Group) error {
	var de *ocrerrors.DecodeError
	if errors.As(err, &de) {
		return de.At(img.Document, img.Name, g.ID, -1)
	}
	return ocrerrors.NewLogicError("decoding failed", err).At(img.Document, img.Name, g.ID, -1)
}

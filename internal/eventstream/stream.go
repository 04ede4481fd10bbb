package eventstream

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/ocr-decoder/internal/boundary"
	ocrerrors "github.com/ironsheep/ocr-decoder/internal/errors"
	"github.com/ironsheep/ocr-decoder/internal/feature"
	"github.com/ironsheep/ocr-decoder/internal/letter"
	"github.com/ironsheep/ocr-decoder/internal/logging"
	"github.com/ironsheep/ocr-decoder/internal/model"
)

// Event is one classification example: the features of a unit and the
// letter it should be classified as.
type Event struct {
	Image   string
	Group   int64
	Index   int
	Unit    boundary.ShapeInSequence
	Outcome string
	Results []model.FeatureResult
}

// Stream turns corpus groups into events. Each group is segmented with the
// detector's default hypothesis (or one unit per shape without a detector)
// and every unit yields one event, in reading order.
//
// A unit whose ground-truth letter is rejected by the validator ends its
// group: the unit and all units after it are skipped.
type Stream struct {
	reader    GroupReader
	features  []feature.Feature
	detector  boundary.Detector
	validator letter.Validator
	log       logrus.FieldLogger

	current *CorpusGroup
	units   []boundary.ShapeInSequence
	pos     int
	history *letter.Sequence
	pending *Event

	groupsRead     int
	invalidLetters int
	skippedUnits   int
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithDetector segments each group with d.
func WithDetector(d boundary.Detector) StreamOption {
	return func(s *Stream) { s.detector = d }
}

// WithValidator sets the ground-truth letter validator. Without one every
// letter is accepted.
func WithValidator(v letter.Validator) StreamOption {
	return func(s *Stream) { s.validator = v }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) StreamOption {
	return func(s *Stream) { s.log = log }
}

// NewStream creates a stream over reader computing features.
func NewStream(reader GroupReader, features []feature.Feature, opts ...StreamOption) *Stream {
	s := &Stream{reader: reader, features: features}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = letter.ValidatorFunc(func(string) bool { return true })
	}
	s.log = logging.OrDiscard(s.log)
	return s
}

// HasNext reports whether another event is available, reading groups as
// needed.
func (s *Stream) HasNext(ctx context.Context) (bool, error) {
	if s.pending != nil {
		return true, nil
	}
	for {
		if s.current == nil || s.pos >= len(s.units) {
			ok, err := s.nextGroup(ctx)
			if err != nil || !ok {
				return false, err
			}
			continue
		}

		unit := s.units[s.pos]
		truth := ""
		if sh := s.current.Arena.Get(unit.Shape); sh != nil {
			truth = sh.Letter
		}
		if !s.validator.Validate(truth) {
			skipped := len(s.units) - s.pos
			s.invalidLetters++
			s.skippedUnits += skipped
			s.log.WithFields(logrus.Fields{
				"image":   s.current.Image,
				"group":   s.current.Group.ID,
				"unit":    s.pos,
				"letter":  truth,
				"skipped": skipped,
				"code":    ocrerrors.ErrorDataQuality,
			}).Debug("invalid ground-truth letter, skipping rest of group")
			s.current = nil
			continue
		}

		results, err := feature.Evaluate(s.features, &feature.Context{
			Arena:   s.current.Arena,
			Unit:    unit,
			History: s.history,
		})
		if err != nil {
			return false, ocrerrors.NewConfigurationError("feature evaluation failed", err).
				At(s.current.Group.Document, s.current.Image, s.current.Group.ID, s.pos)
		}
		s.pending = &Event{
			Image:   s.current.Image,
			Group:   s.current.Group.ID,
			Index:   s.pos,
			Unit:    unit,
			Outcome: truth,
			Results: results,
		}
		s.history = s.history.Extend(letter.Letter(truth), 1)
		s.pos++
		return true, nil
	}
}

// Next returns the next event, or io.EOF when the corpus is exhausted.
func (s *Stream) Next(ctx context.Context) (*Event, error) {
	ok, err := s.HasNext(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, io.EOF
	}
	ev := s.pending
	s.pending = nil
	return ev, nil
}

func (s *Stream) nextGroup(ctx context.Context) (bool, error) {
	cg, err := s.reader.Next(ctx)
	if errors.Is(err, io.EOF) {
		s.current = nil
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.groupsRead++

	seqs, err := boundary.Find(ctx, s.detector, cg.Arena, cg.Group)
	if err != nil {
		return false, ocrerrors.NewConfigurationError("boundary detection failed", err).
			At(cg.Group.Document, cg.Image, cg.Group.ID, -1)
	}
	s.current = cg
	s.pos = 0
	s.units = nil
	var seq boundary.ShapeSequence
	if len(seqs) > 0 {
		seq = seqs[0]
		s.units = seq.Units
	}
	s.history = letter.NewSequence(cg.Arena, cg.Group, seq, nil)
	return true, nil
}

// Attributes describes the stream and its reader.
func (s *Stream) Attributes() map[string]string {
	attrs := map[string]string{}
	if src, ok := s.reader.(AttributeSource); ok {
		for k, v := range src.Attributes() {
			attrs[k] = v
		}
	}
	names := make([]string, len(s.features))
	for i, f := range s.features {
		names[i] = f.Name()
	}
	attrs["eventStream"] = "letter"
	attrs["features"] = strings.Join(names, ";")
	attrs["groupsRead"] = strconv.Itoa(s.groupsRead)
	attrs["invalidLetterCount"] = strconv.Itoa(s.invalidLetters)
	attrs["skippedUnitCount"] = strconv.Itoa(s.skippedUnits)
	return attrs
}

// InvalidLetters returns the number of groups cut short by an invalid
// letter.
func (s *Stream) InvalidLetters() int { return s.invalidLetters }

// SkippedUnits returns the number of units skipped because of invalid
// letters.
func (s *Stream) SkippedUnits() int { return s.skippedUnits }

package decoder

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ironsheep/ocr-decoder/internal/boundary"
	"github.com/ironsheep/ocr-decoder/internal/letter"
)

// ImageInfo identifies the image being decoded.
type ImageInfo struct {
	Document string `json:"document"`
	Name     string `json:"name"`
	Page     int    `json:"page"`
}

// Observer receives decoder events. See the package documentation for the
// order of calls.
type Observer interface {
	OnImageStart(img ImageInfo)
	OnBeamSearchEnd(best *letter.Sequence, finalSequences, holdoverSequences []*letter.Sequence)
	OnStartSequence(word *letter.Sequence)
	OnGuessLetter(unit boundary.ShapeInSequence, guess string)
	OnGuessSequence(word *letter.Sequence)
	OnImageEnd(img ImageInfo)
	OnFinish() error
}

// ObserverFuncs is an Observer built from optional closures.
type ObserverFuncs struct {
	ImageStart    func(img ImageInfo)
	BeamSearchEnd func(best *letter.Sequence, finalSequences, holdoverSequences []*letter.Sequence)
	StartSequence func(word *letter.Sequence)
	GuessLetter   func(unit boundary.ShapeInSequence, guess string)
	GuessSequence func(word *letter.Sequence)
	ImageEnd      func(img ImageInfo)
	Finish        func() error
}

func (o ObserverFuncs) OnImageStart(img ImageInfo) {
	if o.ImageStart != nil {
		o.ImageStart(img)
	}
}

func (o ObserverFuncs) OnBeamSearchEnd(best *letter.Sequence, finals, holdover []*letter.Sequence) {
	if o.BeamSearchEnd != nil {
		o.BeamSearchEnd(best, finals, holdover)
	}
}

func (o ObserverFuncs) OnStartSequence(word *letter.Sequence) {
	if o.StartSequence != nil {
		o.StartSequence(word)
	}
}

func (o ObserverFuncs) OnGuessLetter(unit boundary.ShapeInSequence, guess string) {
	if o.GuessLetter != nil {
		o.GuessLetter(unit, guess)
	}
}

func (o ObserverFuncs) OnGuessSequence(word *letter.Sequence) {
	if o.GuessSequence != nil {
		o.GuessSequence(word)
	}
}

func (o ObserverFuncs) OnImageEnd(img ImageInfo) {
	if o.ImageEnd != nil {
		o.ImageEnd(img)
	}
}

func (o ObserverFuncs) OnFinish() error {
	if o.Finish != nil {
		return o.Finish()
	}
	return nil
}

// Observers fans events out to several observers, in order.
type Observers []Observer

func (os Observers) OnImageStart(img ImageInfo) {
	for _, o := range os {
		o.OnImageStart(img)
	}
}

func (os Observers) OnBeamSearchEnd(best *letter.Sequence, finals, holdover []*letter.Sequence) {
	for _, o := range os {
		o.OnBeamSearchEnd(best, finals, holdover)
	}
}

func (os Observers) OnStartSequence(word *letter.Sequence) {
	for _, o := range os {
		o.OnStartSequence(word)
	}
}

func (os Observers) OnGuessLetter(unit boundary.ShapeInSequence, guess string) {
	for _, o := range os {
		o.OnGuessLetter(unit, guess)
	}
}

func (os Observers) OnGuessSequence(word *letter.Sequence) {
	for _, o := range os {
		o.OnGuessSequence(word)
	}
}

func (os Observers) OnImageEnd(img ImageInfo) {
	for _, o := range os {
		o.OnImageEnd(img)
	}
}

// OnFinish calls every observer and joins their errors.
func (os Observers) OnFinish() error {
	var errs []error
	for _, o := range os {
		if err := o.OnFinish(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Event names a decoder callback.
type Event int

const (
	EventImageStart Event = iota
	EventBeamSearchEnd
	EventStartSequence
	EventGuessLetter
	EventGuessSequence
	EventImageEnd
	EventFinish
)

func (e Event) String() string {
	switch e {
	case EventImageStart:
		return "ImageStart"
	case EventBeamSearchEnd:
		return "BeamSearchEnd"
	case EventStartSequence:
		return "StartSequence"
	case EventGuessLetter:
		return "GuessLetter"
	case EventGuessSequence:
		return "GuessSequence"
	case EventImageEnd:
		return "ImageEnd"
	case EventFinish:
		return "Finish"
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// Record is one logged event. Only the fields relevant to the event are set.
type Record struct {
	Event    Event
	Image    ImageInfo
	Word     *letter.Sequence
	Finals   []*letter.Sequence
	Holdover []*letter.Sequence
	Unit     boundary.ShapeInSequence
	Guess    string
}

// Recorder is an Observer that logs every event in order. It is safe for
// concurrent use.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

func (r *Recorder) add(rec Record) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

// Records returns a copy of the log.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

// Events returns the logged event names in order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := make([]Event, len(r.records))
	for i, rec := range r.records {
		events[i] = rec.Event
	}
	return events
}

// Committed returns the words passed to OnGuessSequence, in order.
func (r *Recorder) Committed() []*letter.Sequence {
	r.mu.Lock()
	defer r.mu.Unlock()
	var words []*letter.Sequence
	for _, rec := range r.records {
		if rec.Event == EventGuessSequence {
			words = append(words, rec.Word)
		}
	}
	return words
}

// BeamSearchEnds returns the OnBeamSearchEnd records, in order.
func (r *Recorder) BeamSearchEnds() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ends []Record
	for _, rec := range r.records {
		if rec.Event == EventBeamSearchEnd {
			ends = append(ends, rec)
		}
	}
	return ends
}

func (r *Recorder) OnImageStart(img ImageInfo) {
	r.add(Record{Event: EventImageStart, Image: img})
}

func (r *Recorder) OnBeamSearchEnd(best *letter.Sequence, finals, holdover []*letter.Sequence) {
	r.add(Record{Event: EventBeamSearchEnd, Word: best, Finals: finals, Holdover: holdover})
}

func (r *Recorder) OnStartSequence(word *letter.Sequence) {
	r.add(Record{Event: EventStartSequence, Word: word})
}

func (r *Recorder) OnGuessLetter(unit boundary.ShapeInSequence, guess string) {
	r.add(Record{Event: EventGuessLetter, Unit: unit, Guess: guess})
}

func (r *Recorder) OnGuessSequence(word *letter.Sequence) {
	r.add(Record{Event: EventGuessSequence, Word: word})
}

func (r *Recorder) OnImageEnd(img ImageInfo) {
	r.add(Record{Event: EventImageEnd, Image: img})
}

func (r *Recorder) OnFinish() error {
	r.add(Record{Event: EventFinish})
	return nil
}

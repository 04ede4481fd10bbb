package boundary

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/ocr-decoder/internal/logging"
	"github.com/ironsheep/ocr-decoder/internal/shape"
)

// Policy selects how a MergeDetector applies merges.
type Policy int

const (
	// PolicyGreedy applies every merge that reaches the threshold, left to
	// right, and yields a single hypothesis.
	PolicyGreedy Policy = iota

	// PolicyExhaustive explores merge and no-merge for every adjacent pair,
	// keeping the top MaxHypotheses segmentations after each step.
	PolicyExhaustive
)

func (p Policy) String() string {
	switch p {
	case PolicyGreedy:
		return "greedy"
	case PolicyExhaustive:
		return "exhaustive"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy maps "greedy" or "exhaustive" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "greedy", "":
		return PolicyGreedy, nil
	case "exhaustive":
		return PolicyExhaustive, nil
	}
	return PolicyGreedy, fmt.Errorf("unknown merge policy %q (expected greedy or exhaustive)", s)
}

// Defaults for MergeDetector.
const (
	DefaultThreshold     = 0.5
	DefaultMaxHypotheses = 5
)

// MergeDetector is a Detector driven by a Merger and optional split
// candidates.
type MergeDetector struct {
	merger        Merger
	splits        SplitSource
	threshold     float64
	policy        Policy
	maxHypotheses int
	log           logrus.FieldLogger
}

// Option configures a MergeDetector.
type Option func(*MergeDetector)

// WithSplits sets the source of split candidates.
func WithSplits(src SplitSource) Option {
	return func(d *MergeDetector) { d.splits = src }
}

// WithThreshold sets the merge acceptance threshold.
func WithThreshold(t float64) Option {
	return func(d *MergeDetector) { d.threshold = t }
}

// WithPolicy sets the merge policy.
func WithPolicy(p Policy) Option {
	return func(d *MergeDetector) { d.policy = p }
}

// WithMaxHypotheses caps the number of hypotheses kept by the exhaustive
// policy.
func WithMaxHypotheses(n int) Option {
	return func(d *MergeDetector) { d.maxHypotheses = n }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(d *MergeDetector) { d.log = log }
}

// NewMergeDetector creates a detector. It fails if the merger is nil, the
// threshold lies outside [0, 1] or the hypothesis cap is below one.
func NewMergeDetector(m Merger, opts ...Option) (*MergeDetector, error) {
	d := &MergeDetector{
		merger:        m,
		threshold:     DefaultThreshold,
		policy:        PolicyGreedy,
		maxHypotheses: DefaultMaxHypotheses,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.merger == nil {
		return nil, fmt.Errorf("merge detector requires a merger")
	}
	if d.threshold < 0 || d.threshold > 1 {
		return nil, fmt.Errorf("merge threshold %v outside [0, 1]", d.threshold)
	}
	if d.maxHypotheses < 1 {
		return nil, fmt.Errorf("max hypotheses must be at least 1, got %d", d.maxHypotheses)
	}
	d.log = logging.OrDiscard(d.log)
	return d, nil
}

// Policy returns the configured policy.
func (d *MergeDetector) Policy() Policy { return d.policy }

// baseUnit is a shape after splits are applied.
type baseUnit struct {
	shape    *shape.Shape
	original shape.ID
	locked   bool // split piece, never merged
}

// span is an inclusive range of base units merged into one unit.
type span struct{ start, end int }

type hypothesis struct {
	spans []span
	score float64
}

func (h hypothesis) append(s span, p float64) hypothesis {
	spans := make([]span, len(h.spans), len(h.spans)+1)
	copy(spans, h.spans)
	return hypothesis{spans: append(spans, s), score: h.score * p}
}

func (h hypothesis) extend(end int, p float64) hypothesis {
	spans := append([]span(nil), h.spans...)
	spans[len(spans)-1].end = end
	return hypothesis{spans: spans, score: h.score * p}
}

// FindBoundaries implements Detector.
//
// # Algorithm
//
//  1. Each shape of the group is cut at its split candidates, if any. The
//     pieces are added to the arena and locked against merging.
//  2. The base units are walked in reading order. For each adjacent pair the
//     merger's probability p is computed once and cached.
//  3. Greedy: merge when p >= threshold (score *= p), else keep apart
//     (score *= 1-p). Exhaustive: branch on both outcomes, the merge branch
//     only when p >= threshold, then keep the MaxHypotheses best.
//  4. Surviving hypotheses are materialised: merged shapes are built once per
//     range and added to the arena. A shape already used by a better ranked
//     hypothesis is copied, so each shape belongs to one hypothesis and its
//     stored guesses come from that hypothesis alone.
//
// Pieces, merges and copies are recorded in the arena under keys derived
// from the shapes they come from. Running the same group again reuses them
// and leaves the arena size unchanged.
func (d *MergeDetector) FindBoundaries(ctx context.Context, arena *shape.Arena, g shape.Group) ([]ShapeSequence, error) {
	if len(g.Shapes) == 0 {
		return nil, nil
	}
	units, err := d.baseUnits(ctx, arena, g)
	if err != nil {
		return nil, err
	}

	b := &builder{detector: d, arena: arena, units: units, merged: make(map[span]*shape.Shape)}
	var hyps []hypothesis
	switch d.policy {
	case PolicyExhaustive:
		hyps = b.exhaustive()
	default:
		hyps = []hypothesis{b.greedy()}
	}

	owned := make(map[shape.ID]bool)
	sequences := make([]ShapeSequence, len(hyps))
	for i, h := range hyps {
		sequences[i] = b.materialise(i, h, owned)
	}

	d.log.WithFields(logrus.Fields{
		"group":      g.ID,
		"shapes":     len(g.Shapes),
		"units":      len(units),
		"hypotheses": len(sequences),
		"policy":     d.policy.String(),
	}).Debug("boundaries found")
	return sequences, nil
}

func (d *MergeDetector) baseUnits(ctx context.Context, arena *shape.Arena, g shape.Group) ([]baseUnit, error) {
	units := make([]baseUnit, 0, len(g.Shapes))
	for _, id := range g.Shapes {
		s := arena.Get(id)
		if s == nil {
			return nil, fmt.Errorf("group %d: shape %d not in arena", g.ID, id)
		}
		if d.splits != nil {
			splits, err := d.splits.FindSplits(ctx, s)
			if err != nil {
				return nil, fmt.Errorf("failed to load splits for shape %d: %w", id, err)
			}
			if pieces := splitPieces(arena, s, positions(splits)); len(pieces) > 1 {
				if g.RightToLeft {
					for i, j := 0, len(pieces)-1; i < j; i, j = i+1, j-1 {
						pieces[i], pieces[j] = pieces[j], pieces[i]
					}
				}
				for _, p := range pieces {
					units = append(units, baseUnit{shape: p, original: id, locked: true})
				}
				continue
			}
		}
		units = append(units, baseUnit{shape: s, original: id})
	}
	return units, nil
}

// splitPieces cuts s at offsets, reusing the pieces of an earlier cut at the
// same offsets. It returns s alone when no offset cuts it.
func splitPieces(arena *shape.Arena, s *shape.Shape, offsets []int) []*shape.Shape {
	if len(offsets) == 0 {
		return []*shape.Shape{s}
	}
	sorted := append([]int(nil), offsets...)
	sort.Ints(sorted)
	key := fmt.Sprintf("split/%d/%v", s.ID, sorted)
	if pieces, ok := arena.Derived(key); ok {
		return pieces
	}
	pieces := s.SplitAt(sorted)
	if len(pieces) > 1 {
		arena.AddDerived(key, pieces...)
	}
	return pieces
}

// builder holds the per-group state of one FindBoundaries call.
type builder struct {
	detector *MergeDetector
	arena    *shape.Arena
	units    []baseUnit
	merged   map[span]*shape.Shape
	probs    map[span]float64
}

// mergeable reports whether the unit covering sp may absorb unit next.
func (b *builder) mergeable(sp span, next int) bool {
	if b.units[next].locked || b.units[sp.end].locked {
		return false
	}
	return b.units[sp.end].shape != b.units[next].shape
}

// probability returns CheckMerge between the unit covering sp and unit next.
func (b *builder) probability(sp span, next int) float64 {
	key := span{sp.start, next}
	if b.probs == nil {
		b.probs = make(map[span]float64)
	}
	if p, ok := b.probs[key]; ok {
		return p
	}
	p := b.detector.merger.CheckMerge(b.shapeFor(sp), b.units[next].shape)
	b.probs[key] = p
	return p
}

// shapeFor returns the shape covering sp, building merged shapes lazily.
func (b *builder) shapeFor(sp span) *shape.Shape {
	if sp.start == sp.end {
		return b.units[sp.start].shape
	}
	if s, ok := b.merged[sp]; ok {
		return s
	}
	if found, ok := b.arena.Derived(b.mergeKey(sp)); ok {
		b.merged[sp] = found[0]
		return found[0]
	}
	left := b.shapeFor(span{sp.start, sp.end - 1})
	s := b.detector.merger.Merge(left, b.units[sp.end].shape)
	b.merged[sp] = s
	return s
}

// mergeKey names the merge of the units covered by sp.
func (b *builder) mergeKey(sp span) string {
	var sb strings.Builder
	sb.WriteString("merge")
	for i := sp.start; i <= sp.end; i++ {
		fmt.Fprintf(&sb, "/%d", b.units[i].shape.ID)
	}
	return sb.String()
}

func (b *builder) greedy() hypothesis {
	h := hypothesis{spans: []span{{0, 0}}, score: 1}
	for i := 1; i < len(b.units); i++ {
		last := h.spans[len(h.spans)-1]
		if !b.mergeable(last, i) {
			h = h.append(span{i, i}, 1)
			continue
		}
		p := b.probability(last, i)
		if p >= b.detector.threshold {
			h = h.extend(i, p)
		} else {
			h = h.append(span{i, i}, 1-p)
		}
	}
	return h
}

func (b *builder) exhaustive() []hypothesis {
	hyps := []hypothesis{{spans: []span{{0, 0}}, score: 1}}
	for i := 1; i < len(b.units); i++ {
		next := make([]hypothesis, 0, 2*len(hyps))
		for _, h := range hyps {
			last := h.spans[len(h.spans)-1]
			if !b.mergeable(last, i) {
				next = append(next, h.append(span{i, i}, 1))
				continue
			}
			p := b.probability(last, i)
			next = append(next, h.append(span{i, i}, 1-p))
			if p >= b.detector.threshold {
				next = append(next, h.extend(i, p))
			}
		}
		sort.SliceStable(next, func(x, y int) bool { return next[x].score > next[y].score })
		if len(next) > b.detector.maxHypotheses {
			next = next[:b.detector.maxHypotheses]
		}
		hyps = next
	}
	return hyps
}

// materialise turns hypothesis rank into a sequence. Shapes listed in owned
// belong to better ranked hypotheses and are replaced by copies.
func (b *builder) materialise(rank int, h hypothesis, owned map[shape.ID]bool) ShapeSequence {
	seq := ShapeSequence{Units: make([]ShapeInSequence, 0, len(h.spans)), Score: h.score}
	for _, sp := range h.spans {
		s := b.shapeFor(sp)
		if sp.start != sp.end {
			b.arena.AddDerived(b.mergeKey(sp), s)
		}
		id := b.arena.Add(s)
		if owned[id] {
			id = b.arena.AddDerived(fmt.Sprintf("hypothesis/%d/%d", rank, id), s.Copy())[0]
		}
		owned[id] = true

		var originals []shape.ID
		for i := sp.start; i <= sp.end; i++ {
			o := b.units[i].original
			if len(originals) == 0 || originals[len(originals)-1] != o {
				originals = append(originals, o)
			}
		}
		seq.Units = append(seq.Units, ShapeInSequence{Shape: id, Originals: originals})
	}
	return seq
}

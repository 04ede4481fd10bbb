// Package boundary decides which adjacent shapes of a word form one
// recognition unit.
//
// Connected-component extraction does not map one-to-one onto letters. A
// letter broken by a pixel gap produces two shapes; a diacritic floats above
// its base as a separate shape; two touching letters produce a single shape
// that must be cut. This package turns the raw shapes of a [shape.Group] into
// one or more ranked [ShapeSequence] hypotheses, each an ordered list of
// [ShapeInSequence] units ready for classification.
//
// # Merging
//
// A [Merger] answers two questions about a pair of sequentially adjacent
// shapes: how likely they are to be fragments of one glyph (CheckMerge) and
// what the merged shape would look like (Merge). [GapMerger] is the geometric
// implementation. It scores a pair from the horizontal gap relative to the
// taller shape, boosts vertically stacked pairs (diacritics), and penalises
// merges that would produce a glyph far wider than it is tall.
//
// # Detection
//
// A [Detector] produces ranked hypotheses for one group. [MergeDetector]
// supports two policies:
//
//   - PolicyGreedy walks the group left to right in reading order and merges
//     the running unit with the next shape whenever CheckMerge reaches the
//     threshold. It yields exactly one hypothesis.
//   - PolicyExhaustive branches on every adjacent pair (merge scored p,
//     no-merge scored 1-p) and keeps only the MaxHypotheses best partial
//     segmentations after each step, so the hypothesis count never grows
//     beyond that cap.
//
// Split candidates supplied by a [SplitSource] are applied before merging.
// The pieces of a split shape are never merged again.
//
// When no detector is configured, [Find] returns the one-to-one
// [PassThrough] sequence without touching the shapes.
//
// # Ownership
//
// Units refer to shapes by [shape.ID]. Merged shapes and split pieces are
// added to the document's [shape.Arena] when a hypothesis is materialised, so
// every ID in a returned sequence resolves through the arena. Original shapes
// are never modified.
//
// No shape is used by two hypotheses of the same group: the classifier
// stores its guesses on the shape, so a lower ranked hypothesis that keeps a
// shape of a better ranked one gets a copy of it. Pieces, merges and copies
// are recorded in the arena by what they were built from, and segmenting the
// same group again returns the same IDs without growing the arena.
package boundary

// Package shape models the connected-component fragments ("shapes") that the
// recognizer works on.
//
// # Ownership
//
// Every shape of a document lives in a single Arena. Recognition units and
// sequences refer to shapes by ID only, so a shape can be shared by several
// segmentation hypotheses without aliasing questions: whoever holds the arena
// owns the shapes.
//
// # Brightness
//
// A shape carries a grayscale grid of its bounding box where 255 is paper and
// 0 is solid ink. Helpers that talk about "ink" use the inverse (255 - value).
//
// # Coordinate System
//
// Bounds use page coordinates with (X1, Y1) inclusive and (X2, Y2) exclusive.
// The pixel grid of a shape is local: (0, 0) is the top-left of its bounds.
//
// # Letter Guesses
//
// The classifier stores its ranked guesses on the shape it classified. This is
// the only mutation the recognition pipeline performs on a shape; it happens
// once per classification and replaces any earlier guesses.
package shape

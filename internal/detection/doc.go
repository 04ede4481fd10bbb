// Package detection turns a page image into the shapes and word groups the
// decoder works on.
//
// # Algorithm Overview
//
//  1. Binarisation: convert to grayscale and threshold, so every pixel darker
//     than Options.Threshold is ink
//  2. Component labelling: flood-fill 8-connected ink pixels into components
//  3. Row building: components of ordinary height are banded into rows by
//     vertical overlap; small marks (dots, accents, punctuation) join the
//     nearest row
//  4. Word splitting: inside a row, a horizontal gap wider than
//     Options.WordGap times the median glyph height starts a new word
//  5. Paragraphs: a vertical gap wider than Options.ParagraphGap times the
//     median row height starts a new paragraph
//
// Each component becomes one shape.Shape whose pixel grid holds only the
// component's own ink, so overlapping bounding boxes do not leak strokes of
// neighbouring glyphs into each other.
//
// # Coordinate System
//
// Shape bounds are in page coordinates:
//   - Origin at the image's Bounds().Min
//   - Bounding boxes use inclusive top-left and exclusive bottom-right
//
// # Limitations
//
// The threshold is global, so the page should be reasonably evenly lit.
// Skewed pages produce rows that split or merge; deskewing is left to the
// caller.
package detection

// Package ocr lets Tesseract act as the letter oracle.
//
// The decoder asks an external model for a ranked list of letters for each
// recognition unit. This package provides that model on top of the Tesseract
// engine (via gosseract/v2):
//
//   - [GlyphImage] is a feature that renders the unit's shape as a padded,
//     upscaled PNG and hands it over as a string result
//   - [TesseractDecider] reads that image back, runs Tesseract in single
//     character mode and turns the recognised symbols into decisions
//
// Other features in the same vector are ignored by the decider, so a feature
// set used with Tesseract only needs GlyphImage.
//
// # Prerequisites
//
// Tesseract and the language data must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// A non-standard data directory can be set with Config.TessdataPrefix.
//
// # Concurrency
//
// A gosseract client is not safe for concurrent use. TesseractDecider
// serialises calls on one client; run one decider per worker for parallel
// decoding.
package ocr

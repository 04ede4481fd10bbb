// Package decoder turns classified recognition units into committed words
// with a beam search that can defer ambiguous words.
//
// # Per word
//
// For each group of an image the boundary detector proposes one or more
// segmentations. Each segmentation gets its own beam, seeded with the
// held-over hypotheses of the previous word (or an empty root). For each unit:
//
//  1. The unit is classified once, with the beam's current best hypothesis
//     as word history. The guesses are stored on the unit's shape.
//  2. Every hypothesis is extended by every stored guess; the candidate's
//     probability is the parent's times the guess probability.
//  3. Candidates are sorted by probability, highest first, ties kept in the
//     order they were produced, and truncated to the beam width.
//
// # Word boundary
//
// The final beams of all segmentations are pooled and ranked. Scores are
// normalised into shares of their sum and the margin is the top share minus
// the runner-up's. When the margin exceeds MarginThreshold the top
// hypothesis is committed. Otherwise every hypothesis within MarginThreshold
// of the top share is held over and seeds the next word, so the next word's
// evidence decides between them. Holdover is bounded by MaxHoldoverWords;
// the last group of an image always commits.
//
// # Observers
//
// An [Observer] sees, per image:
//
//	OnImageStart
//	for each word boundary:
//	    for each word committed at this boundary, oldest first:
//	        OnGuessLetter(unit, letter) for each unit
//	        OnStartSequence(word)
//	    OnBeamSearchEnd(best, finalSequences, holdoverSequences)
//	    for each word committed at this boundary, oldest first:
//	        OnGuessSequence(word)
//	OnImageEnd
//
// and OnFinish once when [Decoder.Finish] is called. A boundary that holds
// words over commits none, so it reports only OnBeamSearchEnd; the held
// words are reported when a later boundary resolves them. OnGuessSequence is
// called exactly once per committed word. Observers receive clones and may
// keep them.
//
// # Concurrency
//
// A Decoder is sequential and belongs to one document. [DecodeDocuments]
// runs documents in parallel, each with its own decoder; the context is only
// consulted between words.
package decoder

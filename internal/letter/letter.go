// Package letter holds decoded letters and the letter sequences built from
// them by the decoder.
package letter

import (
	"unicode/utf8"
)

// Letter is one decoded outcome. A letter may span several characters (a
// digraph); the empty letter marks an ink smudge.
type Letter string

// Smudge is the empty letter used for ink smudges.
const Smudge Letter = ""

// IsSmudge reports whether l is the ink-smudge marker.
func (l Letter) IsSmudge() bool { return l == Smudge }

// Display renders l for sequence strings: multi-character letters are
// bracketed and the smudge is shown as "[]".
func (l Letter) Display() string {
	if utf8.RuneCountInString(string(l)) == 1 {
		return string(l)
	}
	return "[" + string(l) + "]"
}

func (l Letter) String() string { return string(l) }

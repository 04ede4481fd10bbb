package letter

import (
	"unicode/utf8"
)

// Validator decides whether a ground-truth letter is usable. The empty
// string (ink smudge) must always be valid.
type Validator interface {
	Validate(letter string) bool
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(letter string) bool

// Validate implements Validator. The empty string is always valid.
func (f ValidatorFunc) Validate(letter string) bool {
	return letter == "" || f(letter)
}

// AlphabetValidator accepts single runes from an alphabet plus an explicit
// list of multi-character letters.
type AlphabetValidator struct {
	runes map[rune]struct{}
	multi map[string]struct{}
}

// NewAlphabetValidator builds a validator for the runes of alphabet and the
// given multi-character letters.
func NewAlphabetValidator(alphabet string, multi ...string) *AlphabetValidator {
	v := &AlphabetValidator{
		runes: make(map[rune]struct{}, utf8.RuneCountInString(alphabet)),
		multi: make(map[string]struct{}, len(multi)),
	}
	for _, r := range alphabet {
		v.runes[r] = struct{}{}
	}
	for _, m := range multi {
		v.multi[m] = struct{}{}
	}
	return v
}

// Validate implements Validator. Split markers ("a|") and unlisted
// multi-character letters are rejected.
func (v *AlphabetValidator) Validate(letter string) bool {
	if letter == "" {
		return true
	}
	if _, ok := v.multi[letter]; ok {
		return true
	}
	r, size := utf8.DecodeRuneInString(letter)
	if size != len(letter) || r == utf8.RuneError {
		return false
	}
	_, ok := v.runes[r]
	return ok
}

// IsMultiLetter reports whether letter is one of the configured
// multi-character letters.
func (v *AlphabetValidator) IsMultiLetter(letter string) bool {
	_, ok := v.multi[letter]
	return ok
}

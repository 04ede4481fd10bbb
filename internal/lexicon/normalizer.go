// Package lexicon provides word frequency lookups for the decoder: an
// in-memory map loaded from a word list and a Redis hash shared between
// workers. Words are normalised before lookup with an explicitly configured
// Normalizer.
package lexicon

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizerConfig describes how words are normalised.
type NormalizerConfig struct {
	// Form is the Unicode normal form: NFC, NFD, NFKC, NFKD or empty for
	// none.
	Form string `mapstructure:"form"`

	// Language is the BCP 47 tag used for case folding. Empty disables case
	// folding.
	Language string `mapstructure:"language"`

	// Replacements maps substrings to their canonical spelling, applied
	// after the normal form.
	Replacements map[string]string `mapstructure:"replacements"`
}

// Normalizer canonicalises words before lexicon lookups. It is safe for
// concurrent use.
type Normalizer struct {
	form     *norm.Form
	lang     *language.Tag
	replacer *strings.Replacer
}

// NewNormalizer builds a Normalizer from cfg.
func NewNormalizer(cfg NormalizerConfig) (*Normalizer, error) {
	n := &Normalizer{}
	if cfg.Form != "" {
		f, err := parseForm(cfg.Form)
		if err != nil {
			return nil, err
		}
		n.form = &f
	}
	if cfg.Language != "" {
		tag, err := language.Parse(cfg.Language)
		if err != nil {
			return nil, fmt.Errorf("invalid normalizer language %q: %w", cfg.Language, err)
		}
		n.lang = &tag
	}
	if len(cfg.Replacements) > 0 {
		pairs := make([]string, 0, 2*len(cfg.Replacements))
		for from, to := range cfg.Replacements {
			if from == "" {
				return nil, fmt.Errorf("normalizer replacement with empty source")
			}
			pairs = append(pairs, from, to)
		}
		n.replacer = strings.NewReplacer(pairs...)
	}
	return n, nil
}

func parseForm(s string) (norm.Form, error) {
	switch strings.ToUpper(s) {
	case "NFC":
		return norm.NFC, nil
	case "NFD":
		return norm.NFD, nil
	case "NFKC":
		return norm.NFKC, nil
	case "NFKD":
		return norm.NFKD, nil
	}
	return 0, fmt.Errorf("unknown normal form %q", s)
}

// Normalize returns the canonical form of word. A nil Normalizer returns
// word unchanged.
func (n *Normalizer) Normalize(word string) string {
	if n == nil {
		return word
	}
	if n.form != nil {
		word = n.form.String(word)
	}
	if n.lang != nil {
		// cases.Caser keeps state and must not be shared between goroutines.
		word = cases.Lower(*n.lang).String(word)
	}
	if n.replacer != nil {
		word = n.replacer.Replace(word)
	}
	return word
}

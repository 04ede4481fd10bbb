package decoder

import (
	"fmt"

	ocrerrors "github.com/ironsheep/ocr-decoder/internal/errors"
)

// Config tunes the beam search.
type Config struct {
	// BeamWidth is the number of hypotheses kept after each unit. Must be at
	// least 1.
	BeamWidth int `mapstructure:"beam_width"`

	// MarginThreshold is the share margin above which the top hypothesis is
	// committed at a word boundary. 0 commits every word immediately.
	MarginThreshold float64 `mapstructure:"margin_threshold"`

	// MaxHoldoverWords is the number of consecutive words that may be held
	// over before a commit is forced. 0 disables holdover.
	MaxHoldoverWords int `mapstructure:"max_holdover_words"`

	// KnownWordBoost multiplies the boundary score of hypotheses whose word
	// the lexicon knows. Values <= 1 leave scores unchanged. The stored
	// probability is never affected.
	KnownWordBoost float64 `mapstructure:"known_word_boost"`
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		BeamWidth:        5,
		MarginThreshold:  0.1,
		MaxHoldoverWords: 3,
		KnownWordBoost:   1,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.BeamWidth < 1 {
		return ocrerrors.NewConfigurationError(fmt.Sprintf("beam width must be at least 1, got %d", c.BeamWidth), nil)
	}
	if c.MarginThreshold < 0 || c.MarginThreshold > 1 {
		return ocrerrors.NewConfigurationError(fmt.Sprintf("margin threshold %v outside [0, 1]", c.MarginThreshold), nil)
	}
	if c.MaxHoldoverWords < 0 {
		return ocrerrors.NewConfigurationError(fmt.Sprintf("max holdover words must not be negative, got %d", c.MaxHoldoverWords), nil)
	}
	if c.KnownWordBoost < 0 {
		return ocrerrors.NewConfigurationError(fmt.Sprintf("known word boost must not be negative, got %v", c.KnownWordBoost), nil)
	}
	return nil
}

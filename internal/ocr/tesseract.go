package ocr

import (
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/ocr-decoder/internal/logging"
	"github.com/ironsheep/ocr-decoder/internal/model"
)

// Config configures the Tesseract oracle.
type Config struct {
	// Language is the Tesseract language code, "eng" by default.
	Language string `mapstructure:"language"`

	// TessdataPrefix overrides the directory holding the language data.
	TessdataPrefix string `mapstructure:"tessdata_prefix"`

	// Whitelist restricts the characters Tesseract may return.
	Whitelist string `mapstructure:"whitelist"`

	// MinConfidence drops readings below this probability (0 to 1).
	MinConfidence float64 `mapstructure:"min_confidence"`
}

// DefaultConfig returns the English configuration.
func DefaultConfig() Config {
	return Config{Language: "eng"}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.Language == "" {
		return fmt.Errorf("tesseract language is required")
	}
	if c.MinConfidence < 0 || c.MinConfidence >= 1 {
		return fmt.Errorf("min confidence must be in [0, 1), got %v", c.MinConfidence)
	}
	return nil
}

// TesseractDecider implements model.Decider with a gosseract client in
// single character mode.
type TesseractDecider struct {
	mu     sync.Mutex
	client *gosseract.Client
	cfg    Config
	log    logrus.FieldLogger
}

var _ model.Decider = (*TesseractDecider)(nil)

// NewTesseractDecider creates a decider. The caller must Close it.
func NewTesseractDecider(cfg Config, log logrus.FieldLogger) (*TesseractDecider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := gosseract.NewClient()
	if cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(cfg.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(cfg.Language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_CHAR); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if cfg.Whitelist != "" {
		if err := client.SetWhitelist(cfg.Whitelist); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set whitelist: %w", err)
		}
	}
	return &TesseractDecider{client: client, cfg: cfg, log: logging.OrDiscard(log)}, nil
}

// Decide implements model.Decider. The feature results must include a
// GlyphImage result.
func (d *TesseractDecider) Decide(results []model.FeatureResult) ([]model.Decision, error) {
	glyph, ok := GlyphFromResults(results)
	if !ok {
		return nil, fmt.Errorf("no %s feature result; add GlyphImage to the feature set", GlyphImageName)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.client.SetImageFromBytes(glyph); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	boxes, err := d.client.GetBoundingBoxes(gosseract.RIL_SYMBOL)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}
	symbols := make([]Symbol, 0, len(boxes))
	for _, box := range boxes {
		symbols = append(symbols, Symbol{Text: box.Word, Confidence: box.Confidence})
	}
	out := decisions(symbols, d.cfg.MinConfidence)
	d.log.WithFields(logrus.Fields{"symbols": len(symbols), "best": out[0].String()}).Trace("tesseract decision")
	return out, nil
}

// Version returns the Tesseract version.
func (d *TesseractDecider) Version() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.client.Version()
}

// Close releases the Tesseract client.
func (d *TesseractDecider) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.client.Close()
}

// Package config loads the decoder configuration.
//
// Values come, in increasing priority, from built-in defaults, an optional
// YAML file, a .env file and OCR_-prefixed environment variables. Nested keys
// map to environment variables by upper-casing and replacing dots with
// underscores: decoder.beam_width is OCR_DECODER_BEAM_WIDTH.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ironsheep/ocr-decoder/internal/boundary"
	"github.com/ironsheep/ocr-decoder/internal/decoder"
	"github.com/ironsheep/ocr-decoder/internal/detection"
	ocrerrors "github.com/ironsheep/ocr-decoder/internal/errors"
	"github.com/ironsheep/ocr-decoder/internal/lexicon"
	"github.com/ironsheep/ocr-decoder/internal/storage"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "OCR"

// Config holds the complete configuration.
type Config struct {
	Decoder   decoder.Config    `mapstructure:"decoder"`
	Boundary  BoundaryConfig    `mapstructure:"boundary"`
	Detection detection.Options `mapstructure:"detection"`
	OCR       OCRConfig         `mapstructure:"ocr"`
	Letters   LettersConfig     `mapstructure:"letters"`
	Lexicon   LexiconConfig     `mapstructure:"lexicon"`
	Storage   StorageConfig     `mapstructure:"storage"`
	Queue     QueueConfig       `mapstructure:"queue"`
	Report    ReportConfig      `mapstructure:"report"`
	Log       LogConfig         `mapstructure:"log"`

	// Features lists the feature descriptors handed to the oracle, for
	// example "SectionInk(3,3)".
	Features []string `mapstructure:"features"`
}

// BoundaryConfig configures merge detection.
type BoundaryConfig struct {
	// Enabled turns merge detection on. When off, every shape is one unit.
	Enabled       bool    `mapstructure:"enabled"`
	Policy        string  `mapstructure:"policy"`
	Threshold     float64 `mapstructure:"threshold"`
	MaxHypotheses int     `mapstructure:"max_hypotheses"`
	GapScale      float64 `mapstructure:"gap_scale"`
	MaxWidthRatio float64 `mapstructure:"max_width_ratio"`
}

// OCRConfig configures the Tesseract oracle. It converts directly to
// ocr.Config.
type OCRConfig struct {
	Language       string  `mapstructure:"language"`
	TessdataPrefix string  `mapstructure:"tessdata_prefix"`
	Whitelist      string  `mapstructure:"whitelist"`
	MinConfidence  float64 `mapstructure:"min_confidence"`
}

// LettersConfig describes the valid letters. An empty alphabet accepts any
// letter.
type LettersConfig struct {
	Alphabet string   `mapstructure:"alphabet"`
	Multi    []string `mapstructure:"multi"`
}

// LexiconConfig selects the word list. RedisURL wins over Path; with
// neither, no lexicon is used.
type LexiconConfig struct {
	Path       string                   `mapstructure:"path"`
	RedisURL   string                   `mapstructure:"redis_url"`
	RedisKey   string                   `mapstructure:"redis_key"`
	Normalizer lexicon.NormalizerConfig `mapstructure:"normalizer"`
}

// StorageConfig configures the Postgres split store. An empty URL disables
// stored splits.
type StorageConfig struct {
	URL     string             `mapstructure:"url"`
	Preload bool               `mapstructure:"preload"`
	Pool    storage.PoolConfig `mapstructure:"pool"`
}

// QueueConfig configures the asynq task queue.
type QueueConfig struct {
	RedisURL    string        `mapstructure:"redis_url"`
	Name        string        `mapstructure:"name"`
	Concurrency int           `mapstructure:"concurrency"`
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
}

// ReportConfig configures the error report writer. An empty directory
// disables reports.
type ReportConfig struct {
	Dir  string `mapstructure:"dir"`
	Base string `mapstructure:"base"`

	// Groups maps report group names to the documents they cover.
	Groups map[string][]string `mapstructure:"groups"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	pool := storage.DefaultPoolConfig()
	return Config{
		Decoder: decoder.DefaultConfig(),
		Boundary: BoundaryConfig{
			Enabled:       true,
			Policy:        boundary.PolicyGreedy.String(),
			Threshold:     boundary.DefaultThreshold,
			MaxHypotheses: boundary.DefaultMaxHypotheses,
			GapScale:      boundary.DefaultGapScale,
			MaxWidthRatio: boundary.DefaultMaxWidthRatio,
		},
		Detection: detection.DefaultOptions(),
		OCR:       OCRConfig{Language: "eng"},
		Lexicon: LexiconConfig{
			RedisKey:   lexicon.DefaultRedisKey,
			Normalizer: lexicon.NormalizerConfig{Form: "NFC"},
		},
		Storage: StorageConfig{Pool: pool},
		Queue: QueueConfig{
			RedisURL:    "redis://localhost:6379/0",
			Name:        "ocr",
			Concurrency: 4,
			TaskTimeout: 10 * time.Minute,
		},
		Report:   ReportConfig{Base: "ocr"},
		Log:      LogConfig{Level: "info"},
		Features: []string{"GlyphImage", "AspectRatio", "InkDensity"},
	}
}

// setDefaults registers every key with viper so environment variables can
// override keys absent from the config file.
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("decoder.beam_width", d.Decoder.BeamWidth)
	v.SetDefault("decoder.margin_threshold", d.Decoder.MarginThreshold)
	v.SetDefault("decoder.max_holdover_words", d.Decoder.MaxHoldoverWords)
	v.SetDefault("decoder.known_word_boost", d.Decoder.KnownWordBoost)

	v.SetDefault("boundary.enabled", d.Boundary.Enabled)
	v.SetDefault("boundary.policy", d.Boundary.Policy)
	v.SetDefault("boundary.threshold", d.Boundary.Threshold)
	v.SetDefault("boundary.max_hypotheses", d.Boundary.MaxHypotheses)
	v.SetDefault("boundary.gap_scale", d.Boundary.GapScale)
	v.SetDefault("boundary.max_width_ratio", d.Boundary.MaxWidthRatio)

	v.SetDefault("detection.threshold", d.Detection.Threshold)
	v.SetDefault("detection.min_area", d.Detection.MinArea)
	v.SetDefault("detection.word_gap", d.Detection.WordGap)
	v.SetDefault("detection.row_overlap", d.Detection.RowOverlap)
	v.SetDefault("detection.small_mark", d.Detection.SmallMark)
	v.SetDefault("detection.paragraph_gap", d.Detection.ParagraphGap)
	v.SetDefault("detection.right_to_left", d.Detection.RightToLeft)

	v.SetDefault("ocr.language", d.OCR.Language)
	v.SetDefault("ocr.tessdata_prefix", d.OCR.TessdataPrefix)
	v.SetDefault("ocr.whitelist", d.OCR.Whitelist)
	v.SetDefault("ocr.min_confidence", d.OCR.MinConfidence)

	v.SetDefault("letters.alphabet", d.Letters.Alphabet)
	v.SetDefault("letters.multi", d.Letters.Multi)

	v.SetDefault("lexicon.path", d.Lexicon.Path)
	v.SetDefault("lexicon.redis_url", d.Lexicon.RedisURL)
	v.SetDefault("lexicon.redis_key", d.Lexicon.RedisKey)
	v.SetDefault("lexicon.normalizer.form", d.Lexicon.Normalizer.Form)
	v.SetDefault("lexicon.normalizer.language", d.Lexicon.Normalizer.Language)

	v.SetDefault("storage.url", d.Storage.URL)
	v.SetDefault("storage.preload", d.Storage.Preload)
	v.SetDefault("storage.pool.max_open_conns", d.Storage.Pool.MaxOpenConns)
	v.SetDefault("storage.pool.max_idle_conns", d.Storage.Pool.MaxIdleConns)
	v.SetDefault("storage.pool.conn_max_lifetime", d.Storage.Pool.ConnMaxLifetime)

	v.SetDefault("queue.redis_url", d.Queue.RedisURL)
	v.SetDefault("queue.name", d.Queue.Name)
	v.SetDefault("queue.concurrency", d.Queue.Concurrency)
	v.SetDefault("queue.task_timeout", d.Queue.TaskTimeout)

	v.SetDefault("report.dir", d.Report.Dir)
	v.SetDefault("report.base", d.Report.Base)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("features", d.Features)
}

// Load reads the configuration. configFile may be empty, in which case
// ocr-decoder.yaml is looked up in the working directory and skipped when
// absent. envFiles are loaded with godotenv before the environment is read;
// with none given, .env is loaded when present. Variables already set in the
// environment are never overwritten by env files.
func Load(configFile string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			envFiles = []string{".env"}
		}
	}
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, ocrerrors.NewConfigurationError("failed to load env file", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, ocrerrors.NewConfigurationError(fmt.Sprintf("failed to read config file %s", configFile), err)
		}
	} else {
		v.SetConfigName("ocr-decoder")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, ocrerrors.NewConfigurationError("failed to read config file", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, ocrerrors.NewConfigurationError("failed to decode configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Decoder.Validate(); err != nil {
		return err
	}
	if err := c.Detection.Validate(); err != nil {
		return ocrerrors.NewConfigurationError("detection", err)
	}
	if _, err := boundary.ParsePolicy(c.Boundary.Policy); err != nil {
		return ocrerrors.NewConfigurationError("boundary", err)
	}
	if c.Boundary.Threshold < 0 || c.Boundary.Threshold > 1 {
		return ocrerrors.NewConfigurationError(fmt.Sprintf("boundary threshold %v outside [0, 1]", c.Boundary.Threshold), nil)
	}
	if c.Boundary.MaxHypotheses < 1 {
		return ocrerrors.NewConfigurationError(fmt.Sprintf("boundary max hypotheses must be at least 1, got %d", c.Boundary.MaxHypotheses), nil)
	}
	if c.Boundary.GapScale <= 0 || c.Boundary.MaxWidthRatio <= 0 {
		return ocrerrors.NewConfigurationError("boundary gap scale and max width ratio must be positive", nil)
	}
	if c.OCR.Language == "" {
		return ocrerrors.NewConfigurationError("ocr language is required", nil)
	}
	if c.OCR.MinConfidence < 0 || c.OCR.MinConfidence >= 1 {
		return ocrerrors.NewConfigurationError(fmt.Sprintf("ocr min confidence must be in [0, 1), got %v", c.OCR.MinConfidence), nil)
	}
	if len(c.Features) == 0 {
		return ocrerrors.NewConfigurationError("at least one feature is required", nil)
	}
	if c.Queue.Concurrency < 1 || c.Queue.Concurrency > 100 {
		return ocrerrors.NewConfigurationError(fmt.Sprintf("queue concurrency must be between 1 and 100, got %d", c.Queue.Concurrency), nil)
	}
	if c.Queue.TaskTimeout < 0 {
		return ocrerrors.NewConfigurationError("queue task timeout must not be negative", nil)
	}
	if c.Report.Dir != "" && c.Report.Base == "" {
		return ocrerrors.NewConfigurationError("report base name is required when a report directory is set", nil)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ironsheep/ocr-decoder/internal/config"
	"github.com/ironsheep/ocr-decoder/internal/feature"
	"github.com/ironsheep/ocr-decoder/internal/lexicon"
	"github.com/ironsheep/ocr-decoder/internal/logging"
	"github.com/ironsheep/ocr-decoder/internal/model"
	"github.com/ironsheep/ocr-decoder/internal/ocr"
	"github.com/ironsheep/ocr-decoder/internal/recognizer"
	"github.com/ironsheep/ocr-decoder/internal/storage"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds what every command shares: configuration, the logger and the
// resources to release on exit.
type app struct {
	configFile string
	envFiles   []string
	logLevel   string

	cfg     config.Config
	log     *logrus.Logger
	closers []io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "ocr-decoder",
		Short:        "Beam-search OCR decoder for scanned page images",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "configuration file (default ./ocr-decoder.yaml when present)")
	root.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", nil, "environment files to load when ./.env is absent")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides OCR_LOG_LEVEL")

	root.AddCommand(
		newVersionCmd(),
		newServeCmd(a),
		newDecodeCmd(a),
		newEventsCmd(a),
		newDetectCmd(a),
		newEnqueueCmd(a),
		newWorkerCmd(a),
		newLexiconCmd(a),
		newSplitCmd(a),
	)
	root.SetErr(os.Stderr)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// version needs no configuration
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ocr-decoder %s\n", Version)
			fmt.Fprintf(out, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
		},
	}
}

// setup loads the configuration and sets up logging to stderr; stdout is
// reserved for command output and the MCP protocol.
func (a *app) setup() error {
	cfg, err := config.Load(a.configFile, a.envFiles...)
	if err != nil {
		return err
	}
	a.cfg = cfg
	level := cfg.Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	a.log = logging.New(level, os.Stderr)
	a.log.WithFields(logrus.Fields{"version": Version, "commit": GitCommit}).Debug("ocr-decoder starting")
	return nil
}

func (a *app) onClose(c io.Closer) {
	a.closers = append(a.closers, c)
}

func (a *app) close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (a *app) normalizer() (*lexicon.Normalizer, error) {
	return lexicon.NewNormalizer(a.cfg.Lexicon.Normalizer)
}

// openLexicon opens the configured word list: a frequency file, or a Redis
// hash when no file is given. It returns nil when neither is configured.
func (a *app) openLexicon(ctx context.Context) (recognizer.Option, error) {
	lc := a.cfg.Lexicon
	if lc.Path == "" && lc.RedisURL == "" {
		return nil, nil
	}
	n, err := a.normalizer()
	if err != nil {
		return nil, err
	}
	if lc.Path != "" {
		m, err := lexicon.LoadMap(lc.Path, n)
		if err != nil {
			return nil, err
		}
		a.log.WithFields(logrus.Fields{"path": lc.Path, "words": m.Len()}).Info("lexicon loaded")
		return recognizer.WithLexicon(m), nil
	}
	rl, err := lexicon.DialRedisLexicon(ctx, lc.RedisURL, lc.RedisKey, n)
	if err != nil {
		return nil, err
	}
	a.onClose(rl)
	return recognizer.WithLexicon(rl), nil
}

// openSplits connects to the split store when a database is configured.
func (a *app) openSplits(ctx context.Context) (*storage.SplitStore, error) {
	if a.cfg.Storage.URL == "" {
		return nil, nil
	}
	store, err := storage.Open(ctx, a.cfg.Storage.URL, a.cfg.Storage.Pool)
	if err != nil {
		return nil, err
	}
	a.onClose(store)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// newRecognizer wires the Tesseract oracle, the lexicon and the split store
// into a recognizer.
func (a *app) newRecognizer(ctx context.Context) (*recognizer.Recognizer, error) {
	decider, err := ocr.NewTesseractDecider(ocr.Config(a.cfg.OCR), a.log)
	if err != nil {
		return nil, err
	}
	a.onClose(decider)
	a.log.WithField("tesseract", decider.Version()).Debug("oracle ready")
	return a.newRecognizerWith(ctx, decider)
}

// noOracle stands in for the letter oracle in commands that never classify.
var noOracle = model.DeciderFunc(func([]model.FeatureResult) ([]model.Decision, error) {
	return nil, errors.New("this command does not classify letters")
})

func (a *app) newRecognizerWith(ctx context.Context, decider model.Decider) (*recognizer.Recognizer, error) {
	registry := feature.DefaultRegistry()
	ocr.Register(registry)
	opts := []recognizer.Option{recognizer.WithRegistry(registry), recognizer.WithLogger(a.log)}

	lex, err := a.openLexicon(ctx)
	if err != nil {
		return nil, err
	}
	if lex != nil {
		opts = append(opts, lex)
	}
	store, err := a.openSplits(ctx)
	if err != nil {
		return nil, err
	}
	if store != nil {
		opts = append(opts, recognizer.WithSplits(store))
	}
	return recognizer.New(a.cfg, decider, opts...)
}

// Package recognizer assembles the decoding pipeline from configuration:
// page detection, merge detection, the letter guesser, the beam-search
// decoder and its observers.
//
// The letter oracle is passed in by the caller, so this package does not
// depend on any particular model.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/ocr-decoder/internal/boundary"
	"github.com/ironsheep/ocr-decoder/internal/config"
	"github.com/ironsheep/ocr-decoder/internal/decoder"
	"github.com/ironsheep/ocr-decoder/internal/detection"
	ocrerrors "github.com/ironsheep/ocr-decoder/internal/errors"
	"github.com/ironsheep/ocr-decoder/internal/eventstream"
	"github.com/ironsheep/ocr-decoder/internal/feature"
	"github.com/ironsheep/ocr-decoder/internal/guesser"
	"github.com/ironsheep/ocr-decoder/internal/imaging"
	"github.com/ironsheep/ocr-decoder/internal/letter"
	"github.com/ironsheep/ocr-decoder/internal/logging"
	"github.com/ironsheep/ocr-decoder/internal/model"
	"github.com/ironsheep/ocr-decoder/internal/queue"
	"github.com/ironsheep/ocr-decoder/internal/report"
	"github.com/ironsheep/ocr-decoder/internal/shape"
)

// TruthSuffix is appended to an image path (without its extension) to find
// its ground-truth transcription.
const TruthSuffix = ".gt.txt"

// Recognizer decodes page images. It is safe for concurrent use; every
// document gets its own decoder.
type Recognizer struct {
	cfg       config.Config
	decider   model.Decider
	features  []feature.Feature
	registry  feature.Registry
	splits    boundary.SplitSource
	lexicon   decoder.Lexicon
	validator letter.Validator
	multi     *letter.AlphabetValidator
	cache     *imaging.PageCache
	log       logrus.FieldLogger

	nextGroup atomic.Int64

	mu        sync.Mutex
	preloaded map[string]boundary.StaticSplits
}

// Preloader reads the stored splits of a whole page at once.
type Preloader interface {
	Preload(ctx context.Context, arena *shape.Arena) (boundary.StaticSplits, error)
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithRegistry sets the feature registry used to parse the configured
// feature descriptors.
func WithRegistry(r feature.Registry) Option {
	return func(rc *Recognizer) { rc.registry = r }
}

// WithSplits sets the source of stored split candidates. When the storage
// preload option is set and src is a Preloader, the splits of each document
// are read once when its pages are loaded.
func WithSplits(src boundary.SplitSource) Option {
	return func(rc *Recognizer) { rc.splits = src }
}

// WithLexicon sets the word list.
func WithLexicon(l decoder.Lexicon) Option {
	return func(rc *Recognizer) { rc.lexicon = l }
}

// WithPageCache shares a page cache.
func WithPageCache(c *imaging.PageCache) Option {
	return func(rc *Recognizer) { rc.cache = c }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(rc *Recognizer) { rc.log = log }
}

// New creates a recognizer. The configured feature descriptors are parsed
// immediately so misconfiguration surfaces before any image is read.
func New(cfg config.Config, decider model.Decider, opts ...Option) (*Recognizer, error) {
	if decider == nil {
		return nil, ocrerrors.NewConfigurationError("a letter oracle is required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Recognizer{cfg: cfg, decider: decider}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = feature.DefaultRegistry()
	}
	if r.cache == nil {
		r.cache = imaging.NewPageCache(imaging.DefaultCapacity)
	}
	r.log = logging.OrDiscard(r.log)

	features, err := r.registry.Parse(cfg.Features)
	if err != nil {
		return nil, ocrerrors.NewConfigurationError("invalid feature set", err)
	}
	r.features = features

	r.multi = letter.NewAlphabetValidator(cfg.Letters.Alphabet, cfg.Letters.Multi...)
	if cfg.Letters.Alphabet != "" {
		r.validator = r.multi
	}
	r.nextGroup.Store(1)
	r.preloaded = make(map[string]boundary.StaticSplits)
	return r, nil
}

// Config returns the configuration in use.
func (r *Recognizer) Config() config.Config { return r.cfg }

// Features returns the parsed feature set.
func (r *Recognizer) Features() []feature.Feature { return r.features }

// Cache returns the page cache.
func (r *Recognizer) Cache() *imaging.PageCache { return r.cache }

// Detector builds the merge detector, or returns nil when merge detection
// is disabled.
func (r *Recognizer) Detector() (boundary.Detector, error) {
	return r.detector(r.splits)
}

func (r *Recognizer) detector(splits boundary.SplitSource) (boundary.Detector, error) {
	bc := r.cfg.Boundary
	if !bc.Enabled {
		return nil, nil
	}
	policy, err := boundary.ParsePolicy(bc.Policy)
	if err != nil {
		return nil, ocrerrors.NewConfigurationError("boundary", err)
	}
	opts := []boundary.Option{
		boundary.WithThreshold(bc.Threshold),
		boundary.WithPolicy(policy),
		boundary.WithMaxHypotheses(bc.MaxHypotheses),
		boundary.WithLogger(r.log),
	}
	if splits != nil {
		opts = append(opts, boundary.WithSplits(splits))
	}
	d, err := boundary.NewMergeDetector(&boundary.GapMerger{GapScale: bc.GapScale, MaxWidthRatio: bc.MaxWidthRatio}, opts...)
	if err != nil {
		return nil, ocrerrors.NewConfigurationError("boundary", err)
	}
	return d, nil
}

// NewDecoder builds a decoder reporting to observers.
func (r *Recognizer) NewDecoder(observers ...decoder.Observer) (*decoder.Decoder, error) {
	return r.newDecoder(r.splits, observers...)
}

func (r *Recognizer) newDecoder(splits boundary.SplitSource, observers ...decoder.Observer) (*decoder.Decoder, error) {
	g, err := guesser.New(r.features, r.decider, r.log)
	if err != nil {
		return nil, ocrerrors.NewConfigurationError("letter guesser", err)
	}
	det, err := r.detector(splits)
	if err != nil {
		return nil, err
	}
	opts := []decoder.Option{decoder.WithLogger(r.log)}
	if det != nil {
		opts = append(opts, decoder.WithDetector(det))
	}
	if r.lexicon != nil {
		opts = append(opts, decoder.WithLexicon(r.lexicon))
	}
	for _, o := range observers {
		opts = append(opts, decoder.WithObserver(o))
	}
	return decoder.New(r.cfg.Decoder, g, opts...)
}

// Detect extracts the shapes and word groups of one page image. Group IDs
// are unique across every page the recognizer has seen. Shapes get stable
// keys from their document, page and position.
func (r *Recognizer) Detect(path, document string, page int) (*detection.Page, error) {
	img, err := r.cache.Load(path)
	if err != nil {
		return nil, ocrerrors.NewConfigurationError(fmt.Sprintf("page %s", path), err)
	}
	p, err := detection.ExtractPage(img, detection.PageRef{Document: document, Page: page}, r.cfg.Detection)
	if err != nil {
		return nil, ocrerrors.NewConfigurationError(fmt.Sprintf("page %s", path), err)
	}
	first := r.nextGroup.Add(int64(len(p.Groups))) - int64(len(p.Groups))
	for i := range p.Groups {
		p.Groups[i].ID = first + int64(i)
	}
	for _, s := range p.Shapes() {
		s.Key = shape.StableKey(document, page, s.Bounds)
	}
	return p, nil
}

// Label applies the ground-truth transcription next to path, if there is
// one, to the shapes of p. It returns whether a transcription was found and
// how many groups did not match it.
func (r *Recognizer) Label(ctx context.Context, path string, p *detection.Page) (bool, int, error) {
	text, err := os.ReadFile(TruthPath(path))
	if os.IsNotExist(err) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, ocrerrors.NewConfigurationError("ground truth", err)
	}
	tr := eventstream.NewTruthReader(path, p.Arena, p.Groups, string(text))
	for {
		if _, err := tr.Next(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return true, tr.Mismatched(), err
		}
	}
	if m := tr.Mismatched(); m > 0 {
		r.log.WithFields(logrus.Fields{"image": path, "mismatched": m}).Warn("ground truth does not match detected groups")
	}
	return true, tr.Mismatched(), nil
}

// TruthPath returns the ground-truth file for an image path.
func TruthPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + TruthSuffix
}

// LoadDocument detects every page of a document, labelling pages that have
// a ground-truth transcription.
func (r *Recognizer) LoadDocument(ctx context.Context, name string, paths []string) (*decoder.Document, error) {
	doc := &decoder.Document{Name: name}
	preloader, preload := r.splits.(Preloader)
	preload = preload && r.cfg.Storage.Preload
	splits := boundary.StaticSplits{}
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := r.Detect(path, name, i+1)
		if err != nil {
			return nil, err
		}
		if _, _, err := r.Label(ctx, path, p); err != nil {
			return nil, err
		}
		if preload {
			page, err := preloader.Preload(ctx, p.Arena)
			if err != nil {
				return nil, err
			}
			for k, v := range page {
				splits[k] = v
			}
		}
		doc.Images = append(doc.Images, &decoder.Image{
			Document: name,
			Name:     path,
			Page:     i + 1,
			Arena:    p.Arena,
			Groups:   p.Groups,
		})
	}
	if preload {
		r.mu.Lock()
		r.preloaded[name] = splits
		r.mu.Unlock()
	}
	return doc, nil
}

// splitsFor returns the preloaded splits of a document, if any, and forgets
// them.
func (r *Recognizer) splitsFor(document string) boundary.SplitSource {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.preloaded[document]; ok {
		delete(r.preloaded, document)
		return s
	}
	return r.splits
}

// Report builds the error report writer for one document, or returns nil
// when reports are disabled.
func (r *Recognizer) Report(document string) (*report.ErrorWriter, error) {
	rc := r.cfg.Report
	if rc.Dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(rc.Dir, 0o755); err != nil {
		return nil, ocrerrors.NewStorageError("report directory", err)
	}
	opts := []report.Option{
		report.WithMultiLetters(r.multi),
		report.WithDocumentGroups(rc.Groups),
		report.WithLogger(r.log),
	}
	if r.lexicon != nil {
		opts = append(opts, report.WithLexicon(r.lexicon))
	}
	w, err := report.NewErrorWriter(rc.Dir, rc.Base+"_"+fileSafe(document), opts...)
	if err != nil {
		return nil, ocrerrors.NewStorageError("report", err)
	}
	return w, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func fileSafe(s string) string {
	s = unsafeChars.ReplaceAllString(s, "_")
	if s == "" {
		return "document"
	}
	return s
}

// factory creates the decoder of one document with its report writer and
// any extra observers.
func (r *Recognizer) factory(extra ...decoder.Observer) decoder.Factory {
	return func(doc *decoder.Document) (*decoder.Decoder, error) {
		splits := r.splitsFor(doc.Name)
		observers := append([]decoder.Observer(nil), extra...)
		w, err := r.Report(doc.Name)
		if err != nil {
			return nil, err
		}
		if w != nil {
			observers = append(observers, w)
		}
		return r.newDecoder(splits, observers...)
	}
}

// DecodeDocuments decodes several documents with up to workers goroutines.
// docs maps document names to their page image paths, in page order; names
// gives the order of the results.
func (r *Recognizer) DecodeDocuments(ctx context.Context, names []string, docs map[string][]string, workers int) ([]decoder.Result, error) {
	loaded := make([]*decoder.Document, 0, len(names))
	for _, name := range names {
		doc, err := r.LoadDocument(ctx, name, docs[name])
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, doc)
	}
	return decoder.DecodeDocuments(ctx, loaded, workers, r.factory()), nil
}

// DecodeDocument decodes one document. extra observers see every event
// alongside the report writer.
func (r *Recognizer) DecodeDocument(ctx context.Context, name string, paths []string, extra ...decoder.Observer) (decoder.Result, error) {
	doc, err := r.LoadDocument(ctx, name, paths)
	if err != nil {
		return decoder.Result{Document: name, Err: err}, err
	}
	res := decoder.DecodeDocuments(ctx, []*decoder.Document{doc}, 1, r.factory(extra...))[0]
	return res, res.Err
}

// ProcessDocument implements queue.Processor.
func (r *Recognizer) ProcessDocument(ctx context.Context, t queue.DecodeTask) (*queue.DocumentResult, error) {
	res, err := r.DecodeDocument(ctx, t.Document, t.Images)
	if err != nil {
		return nil, err
	}
	return Summarise(res), nil
}

var _ queue.Processor = (*Recognizer)(nil)

// Summarise turns a decoding result into words and text. Words of one row
// are joined by spaces and rows by newlines.
func Summarise(res decoder.Result) *queue.DocumentResult {
	out := &queue.DocumentResult{Document: res.Document}
	var b strings.Builder
	prevPage, prevRow := -1, -1
	for _, w := range res.Words {
		word := w.GuessedWord()
		out.Words = append(out.Words, word)
		g := w.Group()
		switch {
		case prevPage < 0:
		case g.Page != prevPage:
			b.WriteString("\n\n")
		case g.Row != prevRow:
			b.WriteString("\n")
		default:
			b.WriteString(" ")
		}
		b.WriteString(word)
		prevPage, prevRow = g.Page, g.Row
	}
	out.Text = b.String()
	return out
}

// Stream returns the training event stream of a labelled page.
func (r *Recognizer) Stream(path string, p *detection.Page) (*eventstream.Stream, error) {
	text, err := os.ReadFile(TruthPath(path))
	if err != nil {
		return nil, ocrerrors.NewConfigurationError(fmt.Sprintf("ground truth for %s", path), err)
	}
	det, err := r.Detector()
	if err != nil {
		return nil, err
	}
	opts := []eventstream.StreamOption{eventstream.WithLogger(r.log)}
	if det != nil {
		opts = append(opts, eventstream.WithDetector(det))
	}
	if r.validator != nil {
		opts = append(opts, eventstream.WithValidator(r.validator))
	}
	reader := eventstream.NewTruthReader(path, p.Arena, p.Groups, string(text))
	return eventstream.NewStream(reader, r.features, opts...), nil
}

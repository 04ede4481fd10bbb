package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ironsheep/ocr-decoder/internal/detection"
	"github.com/ironsheep/ocr-decoder/internal/queue"
	"github.com/ironsheep/ocr-decoder/internal/recognizer"
	"github.com/ironsheep/ocr-decoder/internal/shape"
)

// parseDocuments turns command arguments into documents. An argument of the
// form name=page1.png,page2.png names a document; plain paths are pages of
// the default document, named by fallback or else by the first such file.
func parseDocuments(args []string, fallback string) ([]string, map[string][]string, error) {
	var names []string
	docs := make(map[string][]string)
	add := func(name string, pages ...string) error {
		if name == "" {
			return fmt.Errorf("empty document name")
		}
		if _, ok := docs[name]; !ok {
			names = append(names, name)
		}
		docs[name] = append(docs[name], pages...)
		return nil
	}

	for _, arg := range args {
		name, list, named := strings.Cut(arg, "=")
		if !named {
			if fallback == "" {
				base := filepath.Base(arg)
				fallback = strings.TrimSuffix(base, filepath.Ext(base))
			}
			if err := add(fallback, arg); err != nil {
				return nil, nil, err
			}
			continue
		}
		var pages []string
		for _, p := range strings.Split(list, ",") {
			if p = strings.TrimSpace(p); p != "" {
				pages = append(pages, p)
			}
		}
		if len(pages) == 0 {
			return nil, nil, fmt.Errorf("document %q has no pages", name)
		}
		if err := add(strings.TrimSpace(name), pages...); err != nil {
			return nil, nil, err
		}
	}
	if len(names) == 0 {
		return nil, nil, fmt.Errorf("no page images given")
	}
	return names, docs, nil
}

func newDecodeCmd(a *app) *cobra.Command {
	var (
		document string
		workers  int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "decode [name=]page.png[,page2.png] ...",
		Short: "Decode page images into words",
		Long: `Decode page images into words with the beam-search decoder.

Pages of one document are decoded in order by one decoder. Several documents
(name=page1.png,page2.png) are decoded in parallel. A page with a ground-truth
file next to it (page.gt.txt) is labelled, which feeds the error reports.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, docs, err := parseDocuments(args, document)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			rec, err := a.newRecognizer(ctx)
			if err != nil {
				return err
			}
			results, err := rec.DecodeDocuments(ctx, names, docs, workers)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var failed []error
			for _, res := range results {
				if res.Err != nil {
					a.log.WithError(res.Err).WithField("document", res.Document).Error("document failed")
					failed = append(failed, fmt.Errorf("%s: %w", res.Document, res.Err))
					continue
				}
				if err := printDocument(out, recognizer.Summarise(res), asJSON); err != nil {
					return err
				}
			}
			return errors.Join(failed...)
		},
	}
	cmd.Flags().StringVarP(&document, "document", "d", "", "name of the document holding plain page arguments")
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "documents decoded in parallel")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON object per document")
	return cmd
}

func printDocument(out io.Writer, doc *queue.DocumentResult, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(out).Encode(doc)
	}
	_, err := fmt.Fprintf(out, "== %s ==\n%s\n", doc.Document, doc.Text)
	return err
}

func newEventsCmd(a *app) *cobra.Command {
	var document string
	cmd := &cobra.Command{
		Use:   "events page.png ...",
		Short: "Print the training events of labelled pages",
		Long: `Print one classification event per line for every page that has a
ground-truth file next to it (page.gt.txt): image, group, unit index, the
expected letter and the feature results. Pages without ground truth are
skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			rec, err := a.newRecognizerWith(ctx, noOracle)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			total := 0
			for i, path := range args {
				name := document
				if name == "" {
					name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				}
				page, err := rec.Detect(path, name, i+1)
				if err != nil {
					return err
				}
				stream, err := rec.Stream(path, page)
				if err != nil {
					a.log.WithError(err).WithField("image", path).Warn("page skipped")
					continue
				}
				for {
					ev, err := stream.Next(ctx)
					if errors.Is(err, io.EOF) {
						break
					}
					if err != nil {
						return err
					}
					fields := make([]string, 0, len(ev.Results)+4)
					fields = append(fields, ev.Image, fmt.Sprint(ev.Group), fmt.Sprint(ev.Index), ev.Outcome)
					for _, r := range ev.Results {
						fields = append(fields, r.String())
					}
					fmt.Fprintln(out, strings.Join(fields, "\t"))
					total++
				}
				attrs := stream.Attributes()
				keys := make([]string, 0, len(attrs))
				for k := range attrs {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				entry := a.log.WithField("image", path)
				for _, k := range keys {
					entry = entry.WithField(k, attrs[k])
				}
				entry.Info("event stream finished")
			}
			a.log.WithField("events", total).Info("done")
			return nil
		},
	}
	cmd.Flags().StringVarP(&document, "document", "d", "", "document name recorded on the groups")
	return cmd
}

// detectedPage is the JSON output of the detect command.
type detectedPage struct {
	Path   string          `json:"path"`
	Page   *detection.Page `json:"page"`
	Shapes []*shape.Shape  `json:"shapes"`
}

func newDetectCmd(a *app) *cobra.Command {
	var document string
	cmd := &cobra.Command{
		Use:   "detect page.png ...",
		Short: "Print the shapes and word groups found on pages as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.newRecognizerWith(cmd.Context(), noOracle)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			for i, path := range args {
				name := document
				if name == "" {
					name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				}
				page, err := rec.Detect(path, name, i+1)
				if err != nil {
					return err
				}
				a.log.WithFields(logrus.Fields{
					"image":  path,
					"shapes": page.Arena.Len(),
					"groups": len(page.Groups),
					"rows":   page.Rows,
				}).Debug("page detected")
				if err := enc.Encode(detectedPage{Path: path, Page: page, Shapes: page.Shapes()}); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&document, "document", "d", "", "document name recorded on the groups")
	return cmd
}

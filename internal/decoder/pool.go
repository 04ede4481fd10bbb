package decoder

import (
	"context"
	"sync"

	"github.com/ironsheep/ocr-decoder/internal/letter"
)

// Document is the unit of parallel work: its images are decoded in order by
// one decoder.
type Document struct {
	Name   string
	Images []*Image
}

// Result is the outcome of decoding one document.
type Result struct {
	Document string
	Words    []*letter.Sequence
	Err      error
}

// Factory creates a fresh decoder for one document.
type Factory func(doc *Document) (*Decoder, error)

// DecodeDocuments decodes docs with up to workers goroutines, one decoder
// per document. Results are returned in the order of docs. A failing
// document does not stop the others; documents not started before ctx is
// cancelled report ctx.Err().
func DecodeDocuments(ctx context.Context, docs []*Document, workers int, factory Factory) []Result {
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(docs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = decodeDocument(ctx, docs[i], factory)
			}
		}()
	}

	for i := range docs {
		if ctx.Err() != nil {
			results[i] = Result{Document: docs[i].Name, Err: ctx.Err()}
			continue
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			results[i] = Result{Document: docs[i].Name, Err: ctx.Err()}
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

func decodeDocument(ctx context.Context, doc *Document, factory Factory) Result {
	res := Result{Document: doc.Name}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	dec, err := factory(doc)
	if err != nil {
		res.Err = err
		return res
	}
	for _, img := range doc.Images {
		words, err := dec.DecodeImage(ctx, img)
		res.Words = append(res.Words, words...)
		if err != nil {
			res.Err = err
			break
		}
	}
	if err := dec.Finish(); err != nil && res.Err == nil {
		res.Err = err
	}
	return res
}

// Package eventstream replays a corpus of labelled groups as one
// classification event per recognition unit, for training and evaluation.
package eventstream

import (
	"context"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ironsheep/ocr-decoder/internal/shape"
)

// CorpusGroup is one labelled group together with the arena holding its
// shapes. Ground-truth letters are stored on the shapes.
type CorpusGroup struct {
	Image string
	Arena *shape.Arena
	Group shape.Group
}

// GroupReader yields corpus groups in order. Next returns io.EOF after the
// last group.
type GroupReader interface {
	Next(ctx context.Context) (*CorpusGroup, error)
}

// AttributeSource is implemented by readers that can describe their
// selection for reproducibility.
type AttributeSource interface {
	Attributes() map[string]string
}

// SliceReader reads groups from memory, keeping only groups whose image
// status is selected and stopping after a maximum number of images.
type SliceReader struct {
	groups     []*CorpusGroup
	statuses   []shape.ImageStatus
	imageCount int

	pos      int
	images   map[string]struct{}
	filtered int
}

// ReaderOption configures a SliceReader.
type ReaderOption func(*SliceReader)

// WithStatuses restricts the reader to groups whose image has one of the
// given statuses. Without it every status is included.
func WithStatuses(statuses ...shape.ImageStatus) ReaderOption {
	return func(r *SliceReader) { r.statuses = append(r.statuses, statuses...) }
}

// WithImageCount stops the reader after n distinct images. 0 means no limit.
func WithImageCount(n int) ReaderOption {
	return func(r *SliceReader) { r.imageCount = n }
}

// NewSliceReader creates a reader over groups.
func NewSliceReader(groups []*CorpusGroup, opts ...ReaderOption) *SliceReader {
	r := &SliceReader{groups: groups, images: make(map[string]struct{})}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Next implements GroupReader.
func (r *SliceReader) Next(ctx context.Context) (*CorpusGroup, error) {
	for r.pos < len(r.groups) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cg := r.groups[r.pos]
		r.pos++
		if !r.included(cg.Group.Status) {
			r.filtered++
			continue
		}
		if _, seen := r.images[cg.Image]; !seen {
			if r.imageCount > 0 && len(r.images) >= r.imageCount {
				r.pos = len(r.groups)
				break
			}
			r.images[cg.Image] = struct{}{}
		}
		return cg, nil
	}
	return nil, io.EOF
}

func (r *SliceReader) included(status shape.ImageStatus) bool {
	if len(r.statuses) == 0 {
		return true
	}
	for _, s := range r.statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Filtered returns the number of groups dropped by the status filter.
func (r *SliceReader) Filtered() int { return r.filtered }

// Attributes implements AttributeSource.
func (r *SliceReader) Attributes() map[string]string {
	statuses := make([]string, len(r.statuses))
	for i, s := range r.statuses {
		statuses[i] = string(s)
	}
	sort.Strings(statuses)
	return map[string]string{
		"imageCount":             strconv.Itoa(r.imageCount),
		"imageStatusesToInclude": strings.Join(statuses, ","),
		"imagesRead":             strconv.Itoa(len(r.images)),
		"filteredGroups":         strconv.Itoa(r.filtered),
	}
}

// Package queue distributes document decoding over Redis with asynq. Each
// task is one document whose images are decoded in order by a single
// decoder. Different documents run in parallel on any number of workers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TypeDecodeImage is the task type for decoding the images of one document.
const TypeDecodeImage = "ocr:decode_image"

// DefaultQueue is the queue tasks are sent to when none is configured.
const DefaultQueue = "ocr"

// DecodeTask is the payload of a TypeDecodeImage task.
type DecodeTask struct {
	RunID    string   `json:"run_id"`
	Document string   `json:"document"`
	Images   []string `json:"images"`
}

// DocumentResult is what a worker reports back for one document.
type DocumentResult struct {
	Document string   `json:"document"`
	Words    []string `json:"words"`
	Text     string   `json:"text"`
}

// Processor decodes one document.
type Processor interface {
	ProcessDocument(ctx context.Context, t DecodeTask) (*DocumentResult, error)
}

// NewDecodeTask builds the asynq task for t.
func NewDecodeTask(t DecodeTask, opts ...asynq.Option) (*asynq.Task, error) {
	if t.Document == "" {
		return nil, fmt.Errorf("document name is required")
	}
	if len(t.Images) == 0 {
		return nil, fmt.Errorf("document %s has no images", t.Document)
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal decode task: %w", err)
	}
	return asynq.NewTask(TypeDecodeImage, payload, opts...), nil
}

// Enqueuer submits documents for decoding.
type Enqueuer struct {
	client  *asynq.Client
	queue   string
	timeout time.Duration
}

// NewEnqueuer connects to the Redis server at redisURL.
func NewEnqueuer(redisURL, queue string, timeout time.Duration) (*Enqueuer, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if queue == "" {
		queue = DefaultQueue
	}
	return &Enqueuer{client: asynq.NewClient(opt), queue: queue, timeout: timeout}, nil
}

// Enqueue submits one task per document under a fresh run id and returns
// the run id and the task ids.
func (e *Enqueuer) Enqueue(ctx context.Context, docs map[string][]string) (string, []string, error) {
	runID := uuid.NewString()
	var ids []string
	for doc, images := range docs {
		opts := []asynq.Option{asynq.Queue(e.queue), asynq.TaskID(uuid.NewString()), asynq.Retention(24 * time.Hour)}
		if e.timeout > 0 {
			opts = append(opts, asynq.Timeout(e.timeout))
		}
		task, err := NewDecodeTask(DecodeTask{RunID: runID, Document: doc, Images: images}, opts...)
		if err != nil {
			return runID, ids, err
		}
		info, err := e.client.EnqueueContext(ctx, task)
		if err != nil {
			return runID, ids, fmt.Errorf("failed to enqueue %s: %w", doc, err)
		}
		ids = append(ids, info.ID)
	}
	return runID, ids, nil
}

// Close closes the Redis connection.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}

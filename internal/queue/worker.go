package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	ocrerrors "github.com/ironsheep/ocr-decoder/internal/errors"
	"github.com/ironsheep/ocr-decoder/internal/logging"
)

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	RedisURL    string
	Queue       string
	Concurrency int
}

// Worker consumes decode tasks.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	proc   Processor
	log    logrus.FieldLogger
}

// NewWorker creates a worker handing tasks to proc.
func NewWorker(cfg WorkerConfig, proc Processor, log logrus.FieldLogger) (*Worker, error) {
	if proc == nil {
		return nil, fmt.Errorf("processor is required")
	}
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	log = logging.OrDiscard(log)

	w := &Worker{proc: proc, log: log, mux: asynq.NewServeMux()}
	w.server = asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{cfg.Queue: 1},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			delay := time.Duration(5*(1<<uint(n))) * time.Second
			if delay > time.Minute {
				delay = time.Minute
			}
			return delay
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			log.WithFields(logrus.Fields{"type": task.Type(), "error": err}).Error("decode task failed")
		}),
		Logger: log,
	})
	w.mux.HandleFunc(TypeDecodeImage, w.HandleDecode)
	return w, nil
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}

// HandleDecode decodes the document named by task. Malformed payloads and
// fatal decoding errors are not retried.
func (w *Worker) HandleDecode(ctx context.Context, task *asynq.Task) error {
	start := time.Now()
	var t DecodeTask
	if err := json.Unmarshal(task.Payload(), &t); err != nil {
		return fmt.Errorf("failed to unmarshal decode task: %v: %w", err, asynq.SkipRetry)
	}
	log := w.log.WithFields(logrus.Fields{"run": t.RunID, "document": t.Document})

	res, err := w.proc.ProcessDocument(ctx, t)
	if err != nil {
		if code, ok := ocrerrors.CodeOf(err); ok && code != ocrerrors.ErrorStorage {
			return fmt.Errorf("document %s: %v: %w", t.Document, err, asynq.SkipRetry)
		}
		return fmt.Errorf("document %s: %w", t.Document, err)
	}

	if rw := task.ResultWriter(); rw != nil {
		b, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		if _, err := rw.Write(b); err != nil {
			log.WithError(err).Warn("failed to store task result")
		}
	}
	log.WithFields(logrus.Fields{
		"words":    len(res.Words),
		"duration": time.Since(start).String(),
	}).Info("document decoded")
	return nil
}

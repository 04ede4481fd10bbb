package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ocrerrors "github.com/ironsheep/ocr-decoder/internal/errors"
)

type fakeProcessor struct {
	got []DecodeTask
	err error
}

func (f *fakeProcessor) ProcessDocument(_ context.Context, t DecodeTask) (*DocumentResult, error) {
	f.got = append(f.got, t)
	if f.err != nil {
		return nil, f.err
	}
	return &DocumentResult{Document: t.Document, Words: []string{"hello"}, Text: "hello"}, nil
}

func newWorker(t *testing.T, proc Processor) *Worker {
	t.Helper()
	w, err := NewWorker(WorkerConfig{RedisURL: "redis://localhost:6379/0"}, proc, nil)
	require.NoError(t, err)
	return w
}

func TestNewDecodeTask(t *testing.T) {
	task, err := NewDecodeTask(DecodeTask{RunID: "r1", Document: "letters", Images: []string{"p1.png", "p2.png"}})
	require.NoError(t, err)
	assert.Equal(t, TypeDecodeImage, task.Type())

	var back DecodeTask
	require.NoError(t, json.Unmarshal(task.Payload(), &back))
	assert.Equal(t, "letters", back.Document)
	assert.Equal(t, []string{"p1.png", "p2.png"}, back.Images)

	_, err = NewDecodeTask(DecodeTask{Images: []string{"p.png"}})
	assert.Error(t, err)
	_, err = NewDecodeTask(DecodeTask{Document: "empty"})
	assert.Error(t, err)
}

func TestHandleDecode(t *testing.T) {
	proc := &fakeProcessor{}
	w := newWorker(t, proc)

	task, err := NewDecodeTask(DecodeTask{RunID: "r1", Document: "letters", Images: []string{"p1.png"}})
	require.NoError(t, err)
	require.NoError(t, w.HandleDecode(context.Background(), task))
	require.Len(t, proc.got, 1)
	assert.Equal(t, "r1", proc.got[0].RunID)
}

func TestHandleDecodeSkipsRetryOnBadPayload(t *testing.T) {
	w := newWorker(t, &fakeProcessor{})
	err := w.HandleDecode(context.Background(), asynq.NewTask(TypeDecodeImage, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleDecodeRetryPolicy(t *testing.T) {
	task, err := NewDecodeTask(DecodeTask{Document: "d", Images: []string{"p.png"}})
	require.NoError(t, err)

	fatal := newWorker(t, &fakeProcessor{err: ocrerrors.NewConfigurationError("no decision", nil)})
	assert.ErrorIs(t, fatal.HandleDecode(context.Background(), task), asynq.SkipRetry)

	storage := newWorker(t, &fakeProcessor{err: ocrerrors.NewStorageError("db down", nil)})
	err = storage.HandleDecode(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestNewWorkerValidates(t *testing.T) {
	_, err := NewWorker(WorkerConfig{RedisURL: "redis://localhost:6379"}, nil, nil)
	assert.Error(t, err)
	_, err = NewWorker(WorkerConfig{RedisURL: "ftp://nowhere"}, &fakeProcessor{}, nil)
	assert.Error(t, err)
	_, err = NewEnqueuer("ftp://nowhere", "", 0)
	assert.Error(t, err)
}

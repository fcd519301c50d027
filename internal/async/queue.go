package async

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed is returned by Enqueue after Shutdown has begun.
var ErrQueueClosed = errors.New("queue is shutting down")

// Task asks a worker to analyse one stored upload.
type Task struct {
	JobID       string
	Path        string
	FileName    string
	MimeType    string
	SubmittedAt time.Time
}

// Handler processes one task. Errors are logged by the queue; handlers record
// the outcome on the job themselves.
type Handler interface {
	Process(ctx context.Context, task Task) error
}

type HandlerFunc func(ctx context.Context, task Task) error

func (f HandlerFunc) Process(ctx context.Context, task Task) error { return f(ctx, task) }

type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Shutdown(ctx context.Context)
}

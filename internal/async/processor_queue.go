package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kmrl/dochub/internal/common"
)

// ProcessorQueue runs tasks on a fixed pool of workers fed by a buffered channel.
type ProcessorQueue struct {
	handler Handler
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Task
	wg   sync.WaitGroup
	once sync.Once

	// senders counts Enqueue calls that may still write to ch; ch is closed only
	// after they have all returned.
	senders sync.WaitGroup
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Task, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(handler Handler, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		handler: handler,
		logger:  logger,
		workers: 4,
		timeout: 5 * time.Minute,
		ch:      make(chan Task, 256),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.started", "worker_id", workerID)

				for task := range q.ch {
					q.run(workerID, task)
				}

				q.logger.Debug("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, task Task) {
	ctx, cancel := context.WithTimeout(common.WithJobID(context.Background(), task.JobID), q.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("queue.task.panic", "worker_id", workerID, "job_id", task.JobID, "panic", r)
		}
	}()

	start := time.Now()
	if err := q.handler.Process(ctx, task); err != nil {
		q.logger.Error("queue.task.failed", "worker_id", workerID, "job_id", task.JobID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return
	}
	q.logger.Info("queue.task.ok", "worker_id", workerID, "job_id", task.JobID,
		"elapsed_ms", time.Since(start).Milliseconds())
}

// Enqueue hands the task to a worker. When the buffer is full it blocks until space
// frees up, the queue shuts down or ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, task Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("queue.enqueue.closed", "job_id", task.JobID)
		return ErrQueueClosed
	}
	q.senders.Add(1)
	q.mu.Unlock()
	defer q.senders.Done()

	if task.SubmittedAt.IsZero() {
		task.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- task:
		q.logger.Info("queue.enqueue.ok", "job_id", task.JobID, "file", task.FileName)
		return nil
	default:
	}

	q.logger.Warn("queue.enqueue.backpressure", "job_id", task.JobID)
	select {
	case q.ch <- task:
		return nil
	case <-q.done:
		q.logger.Warn("queue.enqueue.closed", "job_id", task.JobID)
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish or ctx to end.
// Enqueue calls blocked on a full buffer return ErrQueueClosed.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		q.senders.Wait()
		close(q.ch)
		q.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-drained:
		q.logger.Info("queue.shutdown.drained")
	}
}

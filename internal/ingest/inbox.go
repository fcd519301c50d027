package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kmrl/dochub/constants"
	"github.com/kmrl/dochub/internal/async"
	"github.com/kmrl/dochub/internal/common"
	"github.com/kmrl/dochub/internal/core"
	"github.com/kmrl/dochub/internal/jobs"
	"github.com/kmrl/dochub/internal/utils"
)

// Inbox turns files dropped in a watched directory into queued jobs, skipping content
// it has already handed over.
type Inbox struct {
	store     jobs.Store
	queue     async.Queue
	ledger    *Ledger
	uploadDir string
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

type Option func(*Inbox)

func WithClock(now func() time.Time) Option {
	return func(in *Inbox) { in.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(in *Inbox) { in.newID = fn }
}

func NewInbox(store jobs.Store, queue async.Queue, ledger *Ledger, uploadDir string, logger *slog.Logger, opts ...Option) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	in := &Inbox{
		store:     store,
		queue:     queue,
		ledger:    ledger,
		uploadDir: uploadDir,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(in)
	}
	return in
}

// Ingest copies path into the upload directory, creates its job and enqueues it.
// Content already in the ledger is reported as deduplicated and nothing is queued.
func (in *Inbox) Ingest(ctx context.Context, path string) (Result, error) {
	out := Result{SourcePath: path}

	if !constants.AllowedUpload(filepath.Ext(path)) {
		return out, common.NewAppError("UNSUPPORTED_FILE", fmt.Sprintf("unsupported file %s", filepath.Base(path)), common.ErrInvalidInput)
	}

	hash, err := utils.HashFile(path)
	if err != nil {
		return out, err
	}
	out.HashHex = hash

	prev, seen, err := in.ledger.Lookup(ctx, hash)
	if err != nil {
		return out, err
	}
	if seen {
		out.JobID = prev.JobID
		out.Deduplicated = true
		out.IngestedAt = prev.IngestedAt
		return out, nil
	}

	if err := os.MkdirAll(in.uploadDir, 0o755); err != nil {
		return out, fmt.Errorf("prepare upload dir: %w", err)
	}

	id := in.newID()
	name := filepath.Base(path)
	stored := filepath.Join(in.uploadDir, id+"_"+utils.SafeFileName(name))
	if err := utils.CopyFile(path, stored); err != nil {
		return out, err
	}

	now := in.now()
	job := jobs.NewJob(id, name, now)
	if err := in.store.Create(ctx, job); err != nil {
		_ = os.Remove(stored)
		return out, fmt.Errorf("create job: %w", err)
	}

	task := async.Task{
		JobID:       id,
		Path:        stored,
		FileName:    name,
		MimeType:    mime.TypeByExtension(filepath.Ext(name)),
		SubmittedAt: now,
	}
	if err := in.queue.Enqueue(ctx, task); err != nil {
		summary := core.FailurePrefix + err.Error()
		job.Status = constants.JobStatusFailed
		job.Summary = &summary
		if uerr := in.store.Update(ctx, job); uerr != nil {
			err = errors.Join(err, uerr)
		}
		_ = os.Remove(stored)
		return out, fmt.Errorf("enqueue: %w", err)
	}

	out.JobID = id
	out.IngestedAt = now
	if err := in.ledger.Record(ctx, Entry{Hash: hash, SourcePath: path, JobID: id, IngestedAt: now}); err != nil {
		return out, err
	}
	return out, nil
}

// Run ingests every path received until paths is closed or ctx is done.
func (in *Inbox) Run(ctx context.Context, paths <-chan string, errs <-chan error) Stats {
	var stats Stats
	for {
		select {
		case <-ctx.Done():
			in.logger.Info("ingest.inbox.stop", "seen", stats.Seen, "queued", stats.Queued,
				"deduplicated", stats.Deduplicated, "failed", stats.Failed)
			return stats
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			in.logger.Warn("ingest.inbox.watch_error", "error", err)
		case p, ok := <-paths:
			if !ok {
				return stats
			}
			stats.Seen++
			res, err := in.Ingest(ctx, p)
			switch {
			case err != nil:
				stats.Failed++
				in.logger.Error("ingest.inbox.failed", "path", p, "error", err)
			case res.Deduplicated:
				stats.Deduplicated++
				in.logger.Info("ingest.inbox.duplicate", "path", p, "job_id", res.JobID, "sha256", res.HashHex)
			default:
				stats.Queued++
				in.logger.Info("ingest.inbox.queued", "path", p, "job_id", res.JobID, "sha256", res.HashHex)
			}
		}
	}
}

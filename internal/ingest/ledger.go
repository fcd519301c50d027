package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS processed_files (
	sha256      TEXT PRIMARY KEY,
	source_path TEXT NOT NULL,
	job_id      TEXT NOT NULL,
	ingested_at TEXT NOT NULL
);`

// Entry is one row of the ledger.
type Entry struct {
	Hash       string
	SourcePath string
	JobID      string
	IngestedAt time.Time
}

// Ledger remembers the content hashes already handed to the queue.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

func OpenLedger(ctx context.Context, path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("ingest.ledger.open", "path", path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA busy_timeout = 5000", ledgerSchema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init ledger: %w", err)
		}
	}
	return &Ledger{db: db, logger: logger}, nil
}

// Lookup returns the entry recorded for hash, if any.
func (l *Ledger) Lookup(ctx context.Context, hash string) (Entry, bool, error) {
	var (
		e  Entry
		at string
	)
	err := l.db.QueryRowContext(ctx,
		`SELECT sha256, source_path, job_id, ingested_at FROM processed_files WHERE sha256 = ?`, hash).
		Scan(&e.Hash, &e.SourcePath, &e.JobID, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("lookup %s: %w", hash, err)
	}
	if t, perr := time.Parse(time.RFC3339, at); perr == nil {
		e.IngestedAt = t
	}
	return e, true, nil
}

// Record stores e. A hash that is already present keeps its first entry.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_files (sha256, source_path, job_id, ingested_at) VALUES (?, ?, ?, ?)`,
		e.Hash, e.SourcePath, e.JobID, e.IngestedAt.UTC().Format(time.RFC3339))
	if err != nil {
		l.logger.Error("ingest.ledger.record_failed", "hash", e.Hash, "error", err)
		return fmt.Errorf("record %s: %w", e.Hash, err)
	}
	return nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

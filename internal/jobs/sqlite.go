package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/kmrl/dochub/internal/common"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id                    TEXT PRIMARY KEY,
	filename              TEXT NOT NULL,
	status                TEXT NOT NULL,
	summary               TEXT,
	key_points            TEXT,
	department_suggestion TEXT,
	timestamp             TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS reports (
	job_id TEXT PRIMARY KEY REFERENCES jobs(id) ON DELETE CASCADE,
	body   TEXT NOT NULL
);`

// SQLiteStore persists jobs in a single SQLite file through the pure-Go modernc driver.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (creating when needed) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("jobs.sqlite.open", "path", path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer avoids SQLITE_BUSY between workers
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000", sqliteSchema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, job Job) error {
	r, err := toRow(job)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, filename, status, summary, key_points, department_suggestion, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.id, r.filename, r.status, r.summary, r.keyPoints, r.suggestion, r.timestamp)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return common.NewAppError("JOB_EXISTS", fmt.Sprintf("job %s already exists", job.ID), common.ErrInvalidInput)
		}
		s.logger.Error("jobs.sqlite.create_failed", "job_id", job.ID, "error", err)
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

const sqliteSelect = `SELECT id, filename, status, summary, key_points, department_suggestion, timestamp FROM jobs`

func (s *SQLiteStore) Get(ctx context.Context, id string) (Job, error) {
	j, err := scanSQLJob(s.db.QueryRowContext(ctx, sqliteSelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, notFound(id)
	}
	return j, err
}

func (s *SQLiteStore) List(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelect+` ORDER BY timestamp, id`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	out := []Job{}
	for rows.Next() {
		j, err := scanSQLJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Update(ctx context.Context, job Job) error {
	r, err := toRow(job)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET filename = ?, status = ?, summary = ?, key_points = ?, department_suggestion = ?, timestamp = ?
		 WHERE id = ?`,
		r.filename, r.status, r.summary, r.keyPoints, r.suggestion, r.timestamp, r.id)
	if err != nil {
		s.logger.Error("jobs.sqlite.update_failed", "job_id", job.ID, "error", err)
		return fmt.Errorf("update job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(job.ID)
	}
	return nil
}

func (s *SQLiteStore) SaveReport(ctx context.Context, id string, report json.RawMessage) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (job_id, body) VALUES (?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET body = excluded.body`, id, string(report))
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Report(ctx context.Context, id string) (json.RawMessage, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM reports WHERE job_id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report for job %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	return json.RawMessage(body), nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	s.logger.Info("jobs.sqlite.close")
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLJob(sc scanner) (Job, error) {
	var (
		r                           row
		summary, points, suggestion sql.NullString
	)
	if err := sc.Scan(&r.id, &r.filename, &r.status, &summary, &points, &suggestion, &r.timestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, err
		}
		return Job{}, fmt.Errorf("scan job: %w", err)
	}
	r.summary = nullable(summary)
	r.keyPoints = nullable(points)
	r.suggestion = nullable(suggestion)
	return r.job()
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

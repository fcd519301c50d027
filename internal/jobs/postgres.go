package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kmrl/dochub/internal/common"
)

type PostgresConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id                    TEXT PRIMARY KEY,
	filename              TEXT NOT NULL,
	status                TEXT NOT NULL,
	summary               TEXT,
	key_points            JSONB,
	department_suggestion JSONB,
	timestamp             TEXT NOT NULL,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS reports (
	job_id TEXT PRIMARY KEY REFERENCES jobs(id) ON DELETE CASCADE,
	body   JSONB NOT NULL
);`

// PostgresStore persists jobs through a pgx connection pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres creates a pgx pool, verifies connectivity and applies the schema.
func OpenPostgres(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database", "dsn", redactDSN(cfg.DSN))
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database dsn", "error", err)
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "dochub"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("successfully connected to database")
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (p *PostgresStore) Create(ctx context.Context, job Job) error {
	r, err := toRow(job)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO jobs (id, filename, status, summary, key_points, department_suggestion, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.id, r.filename, r.status, r.summary, r.keyPoints, r.suggestion, r.timestamp)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return common.NewAppError("JOB_EXISTS", fmt.Sprintf("job %s already exists", job.ID), common.ErrInvalidInput)
		}
		p.logger.Error("jobs.postgres.create_failed", "job_id", job.ID, "error", err)
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

const postgresSelect = `SELECT id, filename, status, summary, key_points::text, department_suggestion::text, timestamp FROM jobs`

func (p *PostgresStore) Get(ctx context.Context, id string) (Job, error) {
	j, err := scanPGJob(p.pool.QueryRow(ctx, postgresSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, notFound(id)
	}
	return j, err
}

func (p *PostgresStore) List(ctx context.Context) ([]Job, error) {
	rows, err := p.pool.Query(ctx, postgresSelect+` ORDER BY timestamp, id`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	out := []Job{}
	for rows.Next() {
		j, err := scanPGJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Update(ctx context.Context, job Job) error {
	r, err := toRow(job)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE jobs SET filename = $2, status = $3, summary = $4, key_points = $5, department_suggestion = $6, timestamp = $7
		 WHERE id = $1`,
		r.id, r.filename, r.status, r.summary, r.keyPoints, r.suggestion, r.timestamp)
	if err != nil {
		p.logger.Error("jobs.postgres.update_failed", "job_id", job.ID, "error", err)
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(job.ID)
	}
	return nil
}

func (p *PostgresStore) SaveReport(ctx context.Context, id string, report json.RawMessage) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO reports (job_id, body) VALUES ($1, $2)
		 ON CONFLICT (job_id) DO UPDATE SET body = EXCLUDED.body`, id, string(report))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return notFound(id)
		}
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func (p *PostgresStore) Report(ctx context.Context, id string) (json.RawMessage, error) {
	var body string
	err := p.pool.QueryRow(ctx, `SELECT body::text FROM reports WHERE job_id = $1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("report for job %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	return json.RawMessage(body), nil
}

// Ping checks connectivity, giving up after five seconds.
func (p *PostgresStore) Ping(ctx context.Context) error {
	p.logger.Debug("pinging database")
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Close() error {
	p.logger.Info("closing database connections")
	p.pool.Close()
	return nil
}

func scanPGJob(sc pgx.Row) (Job, error) {
	var r row
	if err := sc.Scan(&r.id, &r.filename, &r.status, &r.summary, &r.keyPoints, &r.suggestion, &r.timestamp); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, err
		}
		return Job{}, fmt.Errorf("scan job: %w", err)
	}
	return r.job()
}

// redactDSN hides the password of a postgres URL for logging.
func redactDSN(dsn string) string {
	cfg, err := pgconn.ParseConfig(dsn)
	if err != nil {
		return "<unparsable dsn>"
	}
	return fmt.Sprintf("postgres://%s@%s:%d/%s", cfg.User, cfg.Host, cfg.Port, cfg.Database)
}

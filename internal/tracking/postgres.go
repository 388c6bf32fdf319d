package tracking

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/creditpd/pkg/database"
)

// schema of the Postgres store, created on open
var schema = []string{
	`CREATE SCHEMA IF NOT EXISTS tracking`,
	`CREATE TABLE IF NOT EXISTS tracking.runs (
		run_id     UUID PRIMARY KEY,
		experiment TEXT NOT NULL,
		name       TEXT NOT NULL,
		status     TEXT NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time   TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS runs_experiment_idx ON tracking.runs (experiment, start_time)`,
	`CREATE TABLE IF NOT EXISTS tracking.params (
		run_id UUID NOT NULL REFERENCES tracking.runs (run_id) ON DELETE CASCADE,
		key    TEXT NOT NULL,
		value  TEXT NOT NULL,
		PRIMARY KEY (run_id, key)
	)`,
	`CREATE TABLE IF NOT EXISTS tracking.metrics (
		run_id    UUID NOT NULL REFERENCES tracking.runs (run_id) ON DELETE CASCADE,
		key       TEXT NOT NULL,
		value     DOUBLE PRECISION NOT NULL,
		logged_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (run_id, key)
	)`,
	`CREATE TABLE IF NOT EXISTS tracking.artifacts (
		run_id  UUID NOT NULL REFERENCES tracking.runs (run_id) ON DELETE CASCADE,
		name    TEXT NOT NULL,
		content BYTEA NOT NULL,
		PRIMARY KEY (run_id, name)
	)`,
}

// PostgresStore keeps runs in the tracking schema
// ⭐ SSOT: 실험 기록 저장/조회는 여기서만
type PostgresStore struct {
	db   *database.DB
	pool *pgxpool.Pool
}

// NewPostgresStore creates the tracking tables if needed
func NewPostgresStore(ctx context.Context, db *database.DB) (*PostgresStore, error) {
	if err := db.Exec(ctx, schema...); err != nil {
		return nil, fmt.Errorf("create tracking schema: %w", err)
	}
	return &PostgresStore{db: db, pool: db.Pool}, nil
}

// StartRun inserts a RUNNING run
func (s *PostgresStore) StartRun(ctx context.Context, experiment, name string) (Run, error) {
	id := uuid.New()
	query := `
		INSERT INTO tracking.runs (run_id, experiment, name, status, start_time)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, query, id, experiment, name, StatusRunning, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return &pgRun{pool: s.pool, id: id}, nil
}

// ListRuns reads every run of experiment with params, metrics and artifact names
func (s *PostgresStore) ListRuns(ctx context.Context, experiment string) ([]RunInfo, error) {
	query := `
		SELECT run_id, experiment, name, status, start_time, end_time
		FROM tracking.runs
		WHERE experiment = $1
		ORDER BY start_time`

	rows, err := s.pool.Query(ctx, query, experiment)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	index := make(map[string]int)
	for rows.Next() {
		var id uuid.UUID
		var info RunInfo
		if err := rows.Scan(&id, &info.Experiment, &info.Name, &info.Status, &info.StartTime, &info.EndTime); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		info.ID = id.String()
		info.Params = make(map[string]string)
		info.Metrics = make(map[string]float64)
		index[info.ID] = len(runs)
		runs = append(runs, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	if len(runs) == 0 {
		return nil, nil
	}

	if err := s.loadDetails(ctx, experiment, runs, index); err != nil {
		return nil, err
	}
	sortRuns(runs)
	return runs, nil
}

func (s *PostgresStore) loadDetails(ctx context.Context, experiment string, runs []RunInfo, index map[string]int) error {
	batch := &pgx.Batch{}
	batch.Queue(`
		SELECT p.run_id, p.key, p.value FROM tracking.params p
		JOIN tracking.runs r USING (run_id) WHERE r.experiment = $1`, experiment)
	batch.Queue(`
		SELECT m.run_id, m.key, m.value FROM tracking.metrics m
		JOIN tracking.runs r USING (run_id) WHERE r.experiment = $1`, experiment)
	batch.Queue(`
		SELECT a.run_id, a.name FROM tracking.artifacts a
		JOIN tracking.runs r USING (run_id) WHERE r.experiment = $1
		ORDER BY a.name`, experiment)

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	params, err := br.Query()
	if err != nil {
		return fmt.Errorf("failed to query params: %w", err)
	}
	for params.Next() {
		var id uuid.UUID
		var key, value string
		if err := params.Scan(&id, &key, &value); err != nil {
			params.Close()
			return fmt.Errorf("failed to scan param: %w", err)
		}
		runs[index[id.String()]].Params[key] = value
	}
	params.Close()

	metrics, err := br.Query()
	if err != nil {
		return fmt.Errorf("failed to query metrics: %w", err)
	}
	for metrics.Next() {
		var id uuid.UUID
		var key string
		var value float64
		if err := metrics.Scan(&id, &key, &value); err != nil {
			metrics.Close()
			return fmt.Errorf("failed to scan metric: %w", err)
		}
		runs[index[id.String()]].Metrics[key] = value
	}
	metrics.Close()

	artifacts, err := br.Query()
	if err != nil {
		return fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer artifacts.Close()
	for artifacts.Next() {
		var id uuid.UUID
		var name string
		if err := artifacts.Scan(&id, &name); err != nil {
			return fmt.Errorf("failed to scan artifact: %w", err)
		}
		i := index[id.String()]
		runs[i].Artifacts = append(runs[i].Artifacts, name)
	}
	return artifacts.Err()
}

// Close closes the underlying pool
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

type pgRun struct {
	pool  *pgxpool.Pool
	id    uuid.UUID
	ended bool
}

func (r *pgRun) ID() string { return r.id.String() }

func (r *pgRun) LogParams(ctx context.Context, params map[string]string) error {
	if r.ended {
		return ErrRunClosed
	}
	if len(params) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO tracking.params (run_id, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id, key) DO UPDATE SET value = EXCLUDED.value`
	for k, v := range params {
		batch.Queue(query, r.id, k, v)
	}
	return sendAll(ctx, r.pool, batch)
}

func (r *pgRun) LogMetrics(ctx context.Context, metrics map[string]float64) error {
	if r.ended {
		return ErrRunClosed
	}
	if len(metrics) == 0 {
		return nil
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	query := `
		INSERT INTO tracking.metrics (run_id, key, value, logged_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id, key) DO UPDATE SET
			value = EXCLUDED.value,
			logged_at = EXCLUDED.logged_at`
	for k, v := range metrics {
		batch.Queue(query, r.id, k, v, now)
	}
	return sendAll(ctx, r.pool, batch)
}

func (r *pgRun) LogArtifact(ctx context.Context, localPath, name string) error {
	if r.ended {
		return ErrRunClosed
	}
	content, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}
	query := `
		INSERT INTO tracking.artifacts (run_id, name, content)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id, name) DO UPDATE SET content = EXCLUDED.content`
	if _, err := r.pool.Exec(ctx, query, r.id, name, content); err != nil {
		return fmt.Errorf("failed to store artifact: %w", err)
	}
	return nil
}

func (r *pgRun) End(ctx context.Context, status string) error {
	if r.ended {
		return ErrRunClosed
	}
	r.ended = true
	query := `UPDATE tracking.runs SET status = $2, end_time = $3 WHERE run_id = $1`
	tag, err := r.pool.Exec(ctx, query, r.id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to end run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", r.id, ErrRunNotFound)
	}
	return nil
}

func sendAll(ctx context.Context, pool *pgxpool.Pool, batch *pgx.Batch) error {
	br := pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

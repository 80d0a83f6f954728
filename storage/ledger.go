package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"

	"leiloes-caixa/models"
)

var ledgerSchema = []string{
	`CREATE TABLE IF NOT EXISTS extraction_runs (
		region         VARCHAR(8)  NOT NULL,
		run_date       VARCHAR(16) NOT NULL,
		stage          VARCHAR(32) NOT NULL DEFAULT '',
		raw_key        TEXT        NOT NULL DEFAULT '',
		integrated_key TEXT        NOT NULL DEFAULT '',
		raw_rows       INTEGER     NOT NULL DEFAULT 0,
		clean_rows     INTEGER     NOT NULL DEFAULT 0,
		status         VARCHAR(16) NOT NULL,
		error          TEXT        NOT NULL DEFAULT '',
		started_at     TIMESTAMPTZ NOT NULL,
		duration_ms    BIGINT      NOT NULL DEFAULT 0,
		PRIMARY KEY (region, run_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_extraction_runs_status ON extraction_runs(status)`,
}

// PostgresLedger records pipeline runs in the extraction_runs table. A region
// processed twice on the same day keeps only its latest outcome.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use ledger.
func NewPostgresLedger(ctx context.Context, dsn string) (*PostgresLedger, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	// The database may still be starting (docker compose up); give it ~20s.
	ping := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(2*time.Second), 9), ctx)
	if err := backoff.Retry(func() error { return db.PingContext(ctx) }, ping); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	return newLedger(ctx, db)
}

func newLedger(ctx context.Context, db *sql.DB) (*PostgresLedger, error) {
	l := &PostgresLedger{db: db}
	if err := l.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return l, nil
}

func (l *PostgresLedger) migrate(ctx context.Context) error {
	for _, stmt := range ledgerSchema {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record inserts rec, replacing any earlier record for the same region and day.
func (l *PostgresLedger) Record(ctx context.Context, rec *models.RunRecord) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO extraction_runs
			(region, run_date, stage, raw_key, integrated_key, raw_rows, clean_rows, status, error, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (region, run_date) DO UPDATE SET
			stage          = EXCLUDED.stage,
			raw_key        = EXCLUDED.raw_key,
			integrated_key = EXCLUDED.integrated_key,
			raw_rows       = EXCLUDED.raw_rows,
			clean_rows     = EXCLUDED.clean_rows,
			status         = EXCLUDED.status,
			error          = EXCLUDED.error,
			started_at     = EXCLUDED.started_at,
			duration_ms    = EXCLUDED.duration_ms
	`,
		string(rec.Region), rec.RunDate, rec.Stage, rec.RawKey, rec.IntegratedKey,
		rec.RawRows, rec.CleanRows, string(rec.Status), rec.Error,
		rec.StartedAt.UTC(), rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("postgres: record %s/%s: %w", rec.Region, rec.RunDate, err)
	}
	return nil
}

// FetchAll retrieves every stored run, oldest day first. StartedAt is not
// read back; Duration is restored at millisecond precision.
func (l *PostgresLedger) FetchAll(ctx context.Context) ([]*models.RunRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT region, run_date, stage, raw_key, integrated_key, raw_rows, clean_rows, status, error, duration_ms
		FROM extraction_runs
		ORDER BY run_date, region
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var records []*models.RunRecord
	for rows.Next() {
		var (
			rec        models.RunRecord
			region     string
			status     string
			durationMs int64
		)
		if err := rows.Scan(
			&region, &rec.RunDate, &rec.Stage, &rec.RawKey, &rec.IntegratedKey,
			&rec.RawRows, &rec.CleanRows, &status, &rec.Error, &durationMs,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		rec.Region = models.RegionCode(region)
		rec.Status = models.RunStatus(status)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (l *PostgresLedger) Close() error {
	return l.db.Close()
}

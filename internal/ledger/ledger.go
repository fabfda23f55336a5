// Package ledger persists pipeline runs to PostgreSQL.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/vk/assetgrid/internal/report"
)

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Config locates the database.
type Config struct {
	URL         string
	PingTimeout time.Duration
}

func (c Config) Validate() error {
	if c.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.PingTimeout <= 0 {
		return errors.New("ping timeout must be positive")
	}
	return nil
}

// Ledger records runs. Writes of one run are atomic when the ledger was
// opened on a database.
type Ledger struct {
	db   *sql.DB
	exec Execer
}

// Open connects through the pgx driver and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	l := newLedger(db)
	l.db = db
	return l, nil
}

// newLedger writes through exec. Without an owned *sql.DB, Record does not
// open a transaction of its own.
func newLedger(exec Execer) *Ledger {
	return &Ledger{exec: exec}
}

// Close releases the database opened by Open.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		run_id          TEXT PRIMARY KEY,
		started_at      TIMESTAMPTZ NOT NULL,
		finished_at     TIMESTAMPTZ NOT NULL,
		cancelled       BOOLEAN NOT NULL,
		aborted         TEXT,
		export_location TEXT,
		export_error    TEXT,
		summary         JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS materializations (
		run_id      TEXT NOT NULL REFERENCES pipeline_runs (run_id) ON DELETE CASCADE,
		position    INTEGER NOT NULL,
		asset       TEXT NOT NULL,
		status      TEXT NOT NULL,
		row_count   INTEGER NOT NULL,
		log         TEXT,
		error       TEXT,
		duration_ms BIGINT NOT NULL,
		cache_hits  BIGINT NOT NULL,
		PRIMARY KEY (run_id, asset)
	)`,
	`CREATE TABLE IF NOT EXISTS check_results (
		run_id      TEXT NOT NULL REFERENCES pipeline_runs (run_id) ON DELETE CASCADE,
		position    INTEGER NOT NULL,
		check_name  TEXT NOT NULL,
		asset       TEXT NOT NULL,
		status      TEXT NOT NULL,
		passed      BOOLEAN NOT NULL,
		metadata    JSONB NOT NULL,
		PRIMARY KEY (run_id, check_name)
	)`,
}

// EnsureSchema creates the ledger tables if they are missing.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := l.exec.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Record stores run with its materializations and check outcomes.
func (l *Ledger) Record(ctx context.Context, run *report.PipelineRun) error {
	if run == nil {
		return errors.New("run is required")
	}
	if l.db == nil {
		return insertRun(ctx, l.exec, run)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertRun(ctx, tx, run); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertRun(ctx context.Context, exec Execer, run *report.PipelineRun) error {
	summary, err := json.Marshal(run.Summary())
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	var location string
	if run.Export != nil {
		location = run.Export.Location
	}

	_, err = exec.ExecContext(
		ctx,
		`INSERT INTO pipeline_runs (
			run_id,
			started_at,
			finished_at,
			cancelled,
			aborted,
			export_location,
			export_error,
			summary
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		run.ID,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
		run.Cancelled,
		nullString(run.Aborted),
		nullString(location),
		nullString(run.ExportError),
		summary,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for i, m := range run.Materializations {
		_, err := exec.ExecContext(
			ctx,
			`INSERT INTO materializations (
				run_id,
				position,
				asset,
				status,
				row_count,
				log,
				error,
				duration_ms,
				cache_hits
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			run.ID,
			i,
			m.Asset,
			m.Status.String(),
			m.Rows,
			nullString(m.Log),
			nullString(m.Error),
			m.Duration.Milliseconds(),
			m.CacheHits,
		)
		if err != nil {
			return fmt.Errorf("insert materialization %s: %w", m.Asset, err)
		}
	}

	for i, c := range run.Checks {
		metadata, err := encodeMetadata(c)
		if err != nil {
			return err
		}
		_, err = exec.ExecContext(
			ctx,
			`INSERT INTO check_results (
				run_id,
				position,
				check_name,
				asset,
				status,
				passed,
				metadata
			) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			run.ID,
			i,
			c.Name,
			c.Asset,
			string(c.Status),
			c.Passed,
			metadata,
		)
		if err != nil {
			return fmt.Errorf("insert check %s: %w", c.Name, err)
		}
	}
	return nil
}

func encodeMetadata(c report.CheckOutcome) ([]byte, error) {
	if len(c.Metadata) == 0 {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(c.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata of %s: %w", c.Name, err)
	}
	return b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

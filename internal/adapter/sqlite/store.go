// Package sqlite persists prediction records in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/streetlight-predictor/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS prediction_log (
	id                  TEXT PRIMARY KEY,
	created_at          TEXT NOT NULL,
	base_prediction     REAL NOT NULL,
	intensity           REAL NOT NULL,
	lights_on           INTEGER NOT NULL,
	confidence          REAL NOT NULL,
	adjustments_applied INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_prediction_log_created_at ON prediction_log(created_at);
`

// timeLayout has fixed-width fractional seconds so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the prediction log. It implements pipeline.BatchLoader.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Name identifies the sink in logs and metrics.
func (s *Store) Name() string { return "sqlite" }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadBatch inserts records in one transaction. Re-inserting an id is a no-op.
func (s *Store) LoadBatch(ctx context.Context, records []domain.PredictionRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO prediction_log
		(id, created_at, base_prediction, intensity, lights_on, confidence, adjustments_applied)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.ID,
			r.Timestamp.UTC().Format(timeLayout),
			r.BasePrediction,
			r.Intensity,
			boolToInt(r.LightsOn),
			r.Confidence,
			boolToInt(r.AdjustmentsApplied),
		); err != nil {
			return fmt.Errorf("insert prediction %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.PredictionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, created_at, base_prediction, intensity,
		lights_on, confidence, adjustments_applied
		FROM prediction_log ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PredictionRecord, 0, limit)
	for rows.Next() {
		var (
			r          domain.PredictionRecord
			createdAt  string
			lightsOn   int
			adjustment int
		)
		if err := rows.Scan(&r.ID, &createdAt, &r.BasePrediction, &r.Intensity,
			&lightsOn, &r.Confidence, &adjustment); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		r.Timestamp, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		r.LightsOn = lightsOn != 0
		r.AdjustmentsApplied = adjustment != 0
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate predictions: %w", err)
	}
	return out, nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

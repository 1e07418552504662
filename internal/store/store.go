// Package store persists completed simulation runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// RunRecord is one persisted simulation run. LayerAbsorbed is loaded
// by GetRun; exit-weight samples are fetched separately through
// GetRunSamples.
type RunRecord struct {
	ID            int64
	CreatedAt     time.Time
	Model         string
	Photons       int
	Seed          int64
	Reflectance   float64
	Transmittance float64
	Absorbed      float64
	Duration      time.Duration
	LayerAbsorbed []float64
}

// Store provides SQLite-backed run persistence.
type Store struct {
	sqlDB *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at INTEGER NOT NULL,
	model TEXT NOT NULL,
	photons INTEGER NOT NULL,
	seed INTEGER NOT NULL,
	reflectance REAL NOT NULL,
	transmittance REAL NOT NULL,
	absorbed REAL NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE TABLE IF NOT EXISTS run_layers (
	run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	layer_idx INTEGER NOT NULL,
	absorbed REAL NOT NULL,
	PRIMARY KEY (run_id, layer_idx)
);
CREATE TABLE IF NOT EXISTS run_samples (
	run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	idx INTEGER NOT NULL,
	value REAL NOT NULL,
	PRIMARY KEY (run_id, idx)
);
`

// Open opens a SQLite store at the provided path and applies the
// schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveRun persists a run summary, its per-layer absorption, and its
// exit-weight samples in one transaction. It returns the new run id.
func (s *Store) SaveRun(ctx context.Context, rec RunRecord, samples []float64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(rec.Model) == "" {
		return 0, fmt.Errorf("model name is required")
	}
	if rec.Photons <= 0 {
		return 0, fmt.Errorf("photon count must be positive")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save run: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
INSERT INTO runs (
	created_at,
	model,
	photons,
	seed,
	reflectance,
	transmittance,
	absorbed,
	duration_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		rec.CreatedAt.UTC().UnixMilli(),
		rec.Model,
		rec.Photons,
		rec.Seed,
		rec.Reflectance,
		rec.Transmittance,
		rec.Absorbed,
		rec.Duration.Milliseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	layerStmt, err := tx.PrepareContext(ctx, `
INSERT INTO run_layers (run_id, layer_idx, absorbed) VALUES (?, ?, ?)
`)
	if err != nil {
		return 0, fmt.Errorf("prepare layer insert: %w", err)
	}
	defer layerStmt.Close()
	for i, absorbed := range rec.LayerAbsorbed {
		if _, err := layerStmt.ExecContext(ctx, id, i, absorbed); err != nil {
			return 0, fmt.Errorf("insert layer %d: %w", i, err)
		}
	}

	sampleStmt, err := tx.PrepareContext(ctx, `
INSERT INTO run_samples (run_id, idx, value) VALUES (?, ?, ?)
`)
	if err != nil {
		return 0, fmt.Errorf("prepare sample insert: %w", err)
	}
	defer sampleStmt.Close()
	for i, value := range samples {
		if _, err := sampleStmt.ExecContext(ctx, id, i, value); err != nil {
			return 0, fmt.Errorf("insert sample %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save run: %w", err)
	}
	return id, nil
}

// GetRun loads one run with its per-layer absorption. It returns
// sql.ErrNoRows when the id is unknown.
func (s *Store) GetRun(ctx context.Context, id int64) (*RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	var rec RunRecord
	var createdAt, durationMs int64
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT
	id,
	created_at,
	model,
	photons,
	seed,
	reflectance,
	transmittance,
	absorbed,
	duration_ms
FROM runs
WHERE id = ?
`, id).Scan(
		&rec.ID,
		&createdAt,
		&rec.Model,
		&rec.Photons,
		&rec.Seed,
		&rec.Reflectance,
		&rec.Transmittance,
		&rec.Absorbed,
		&durationMs,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("get run %d: %w", id, err)
	}
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	rec.Duration = time.Duration(durationMs) * time.Millisecond

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT absorbed FROM run_layers WHERE run_id = ? ORDER BY layer_idx
`, id)
	if err != nil {
		return nil, fmt.Errorf("get run layers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var absorbed float64
		if err := rows.Scan(&absorbed); err != nil {
			return nil, fmt.Errorf("scan run layer: %w", err)
		}
		rec.LayerAbsorbed = append(rec.LayerAbsorbed, absorbed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run layers: %w", err)
	}
	return &rec, nil
}

// GetRunSamples loads the exit-weight samples of one run in launch
// order.
func (s *Store) GetRunSamples(ctx context.Context, id int64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT value FROM run_samples WHERE run_id = ? ORDER BY idx
`, id)
	if err != nil {
		return nil, fmt.Errorf("get run samples: %w", err)
	}
	defer rows.Close()

	var samples []float64
	for rows.Next() {
		var value float64
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan run sample: %w", err)
		}
		samples = append(samples, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run samples: %w", err)
	}
	return samples, nil
}

// ListRuns lists newest-first run summaries without layer detail.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	id,
	created_at,
	model,
	photons,
	seed,
	reflectance,
	transmittance,
	absorbed,
	duration_ms
FROM runs
ORDER BY created_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	records := make([]RunRecord, 0, limit)
	for rows.Next() {
		var rec RunRecord
		var createdAt, durationMs int64
		if err := rows.Scan(
			&rec.ID,
			&createdAt,
			&rec.Model,
			&rec.Photons,
			&rec.Seed,
			&rec.Reflectance,
			&rec.Transmittance,
			&rec.Absorbed,
			&durationMs,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return records, nil
}

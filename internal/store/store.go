// Package store archives completed runs and their selected moments in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/capless/moments/internal/pipeline"
	"github.com/capless/moments/internal/store/migrations"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run id has no row.
var ErrNotFound = errors.New("run not found")

// Store wraps the database connection.
type Store struct {
	*sql.DB
}

// RunSummary is one archived run without its full record.
type RunSummary struct {
	ID         string
	SourcePath string
	StartedAt  time.Time
	FinishedAt time.Time
	Degraded   bool
	FinalCount int
	TotalFound int
}

// Stats aggregates the archive.
type Stats struct {
	TotalRuns     int64
	DegradedRuns  int64
	TotalMoments  int64
	AvgFinalCount float64
}

// New opens (or creates) the database at dbPath.
func New(ctx context.Context, dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(1) // SQLite doesn't handle concurrent writes well

	if _, err := sqlDB.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := sqlDB.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &Store{DB: sqlDB}, nil
}

// Migrate runs all pending database migrations.
func (s *Store) Migrate(ctx context.Context) error {
	slog.Info("running database migrations")

	_, err := s.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	rows, err := s.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return fmt.Errorf("scan migration: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate migrations: %w", err)
	}

	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		if applied[file] {
			slog.Debug("migration already applied", "file", file)
			continue
		}

		slog.Info("applying migration", "file", file)

		content, err := fs.ReadFile(migrations.FS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		sqlContent := extractUpMigration(string(content))

		tx, err := s.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, sqlContent); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %s: %w", file, err)
		}

		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", file); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}

		slog.Info("migration applied successfully", "file", file)
	}

	return nil
}

// extractUpMigration extracts the "up" portion of a migration file.
func extractUpMigration(content string) string {
	downMarker := "-- +migrate Down"
	idx := strings.Index(content, downMarker)
	if idx == -1 {
		return content
	}

	up := content[:idx]
	up = strings.TrimPrefix(up, "-- +migrate Up")
	up = strings.TrimSpace(up)

	return up
}

// SaveRecord archives a completed run and its moments in one
// transaction. Saving the same run id twice replaces the earlier rows,
// so reruns stay idempotent.
func (s *Store) SaveRecord(ctx context.Context, rec *pipeline.Record) error {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	notesJSON, err := json.Marshal(rec.Notes)
	if err != nil {
		return fmt.Errorf("marshal notes: %w", err)
	}

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			id, source_path, started_at, finished_at, degraded, notes,
			total_candidates, overlap_removed, semantic_removed,
			quality_filtered, final_count, record_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.SourcePath, rec.StartedAt, rec.FinishedAt,
		boolToInt(rec.Degraded), string(notesJSON),
		rec.ConsolidationStats.TotalCandidatesExtracted,
		rec.ConsolidationStats.OverlapDuplicatesRemoved,
		rec.ConsolidationStats.SemanticDuplicatesRemoved,
		rec.ConsolidationStats.QualityFiltered,
		rec.ConsolidationStats.FinalCount,
		string(recordJSON),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM moments WHERE run_id = ?", rec.RunID); err != nil {
		return fmt.Errorf("clear moments: %w", err)
	}
	for _, m := range rec.FinalMoments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO moments (
				id, run_id, rank, quote, speaker, topic,
				raw_score, final_score, source_chunk_id, start_time, end_time
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, rec.RunID, m.Rank, m.Quote, m.Speaker, m.Topic,
			m.RawScore, m.FinalScore, m.SourceChunkID, m.StartTime, m.EndTime,
		)
		if err != nil {
			return fmt.Errorf("insert moment %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}

// GetRecord loads the full archived record for a run.
func (s *Store) GetRecord(ctx context.Context, runID string) (*pipeline.Record, error) {
	var recordJSON string
	err := s.QueryRowContext(ctx,
		"SELECT record_json FROM runs WHERE id = ?", runID).Scan(&recordJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	var rec pipeline.Record
	if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.QueryContext(ctx, `
		SELECT id, source_path, started_at, finished_at, degraded,
		       final_count, total_candidates
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var degraded int
		if err := rows.Scan(&r.ID, &r.SourcePath, &r.StartedAt, &r.FinishedAt,
			&degraded, &r.FinalCount, &r.TotalFound); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Degraded = degraded != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetStats aggregates the archive.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(degraded), 0),
		       COALESCE(SUM(final_count), 0),
		       COALESCE(AVG(final_count), 0)
		FROM runs`).Scan(&st.TotalRuns, &st.DegradedRuns, &st.TotalMoments, &st.AvgFinalCount)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	return &st, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.DB.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Package history archives aggregated snapshots in a local SQLite
// database so past dashboard states can be listed and inspected after
// the cache has moved on.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"appboard/internal/domain"
)

const (
	appDir = "appboard"
	dbFile = "history.db"
)

// Record is one archived snapshot row. Payload holds the full snapshot
// as JSON; the remaining columns exist so listings never have to decode
// it.
type Record struct {
	ID         int64
	AppID      string
	RangeToken string
	Health     domain.HealthStatus
	IssueCount int
	Payload    string
	ComputedAt time.Time
}

// Snapshot decodes the archived payload.
func (r Record) Snapshot() (*domain.AggregatedSnapshot, error) {
	var snap domain.AggregatedSnapshot
	if err := json.Unmarshal([]byte(r.Payload), &snap); err != nil {
		return nil, fmt.Errorf("history: decoding snapshot %d: %w", r.ID, err)
	}
	return &snap, nil
}

// Store is a SQLite-backed snapshot archive.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the archive location under the user config
// directory.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("history: unable to determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, dbFile), nil
}

// Open creates or opens the archive at the default path.
func Open() (*Store, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return OpenAt(path)
}

// OpenAt creates or opens a SQLite database at the given path. The parent
// directory is created if it does not exist.
func OpenAt(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("history: failed to create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("history: failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS snapshots (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			app_id      TEXT    NOT NULL,
			range_token TEXT    NOT NULL DEFAULT '',
			health      TEXT    NOT NULL DEFAULT '',
			issue_count INTEGER NOT NULL DEFAULT 0,
			payload     TEXT    NOT NULL,
			computed_at TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_app_time ON snapshots(app_id, computed_at);
	`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("history: migration failed: %w", err)
	}
	return nil
}

// Save archives one snapshot. Implements the aggregation service's
// archiver hook.
func (s *Store) Save(ctx context.Context, snap *domain.AggregatedSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("history: encoding snapshot: %w", err)
	}

	computedAt := snap.GeneratedAt
	if computedAt.IsZero() {
		computedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (app_id, range_token, health, issue_count, payload, computed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snap.AppID, snap.RangeToken, string(snap.Health), len(snap.Issues),
		string(payload), computedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("history: insert failed: %w", err)
	}
	return nil
}

// ListRecent returns the newest n records for an application, newest
// first. An empty appID lists across all applications.
func (s *Store) ListRecent(ctx context.Context, appID string, n int) ([]Record, error) {
	if n <= 0 {
		n = 20
	}

	query := `
		SELECT id, app_id, range_token, health, issue_count, payload, computed_at
		FROM snapshots`
	args := []any{}
	if appID != "" {
		query += ` WHERE app_id = ?`
		args = append(args, appID)
	}
	query += ` ORDER BY computed_at DESC, id DESC LIMIT ?`
	args = append(args, n)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query failed: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// DeleteOlderThan removes records computed more than d ago and reports
// how many went away.
func (s *Store) DeleteOlderThan(ctx context.Context, d time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-d).Format(time.RFC3339Nano)
	result, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE computed_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("history: delete failed: %w", err)
	}
	return result.RowsAffected()
}

// Close releases database resources.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		var health, computedStr string
		if err := rows.Scan(&r.ID, &r.AppID, &r.RangeToken, &health, &r.IssueCount, &r.Payload, &computedStr); err != nil {
			return nil, fmt.Errorf("history: scan failed: %w", err)
		}
		r.Health = domain.HealthStatus(health)
		r.ComputedAt, _ = time.Parse(time.RFC3339Nano, computedStr)
		records = append(records, r)
	}
	return records, rows.Err()
}

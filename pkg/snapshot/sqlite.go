package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps snapshots in a SQLite database. Unlike the other
// backends it is append-only: every Save adds a history row, Load returns
// the newest one, and History exposes older rows for inspection.
type SQLiteStore struct {
	db     *sql.DB
	closed bool
}

// Record is one row of snapshot history.
type Record struct {
	Name    string
	Tick    uint64
	TakenAt time.Time
	Data    []byte
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// NewSQLiteStore opens (or creates) a snapshot database at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("snapshot: database path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			name     TEXT    NOT NULL,
			tick     INTEGER NOT NULL,
			taken_at INTEGER NOT NULL,
			data     BLOB    NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_snapshots_name ON snapshots(name, id)
	`)
	return err
}

// Save appends a snapshot row for name with an unknown tick.
// Callers that track ticks should prefer SaveTick.
func (s *SQLiteStore) Save(ctx context.Context, name string, data []byte) error {
	return s.SaveTick(ctx, name, 0, data)
}

// SaveTick appends a snapshot row recording the authority tick it was
// taken at.
func (s *SQLiteStore) SaveTick(ctx context.Context, name string, tick uint64, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	if s.closed {
		return ErrStoreClosed{}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (name, tick, taken_at, data)
		VALUES (?, ?, ?, ?)
	`, name, int64(tick), toMillis(time.Now()), data)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load retrieves the newest snapshot for name.
func (s *SQLiteStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if s.closed {
		return nil, ErrStoreClosed{}
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM snapshots
		WHERE name = ?
		ORDER BY id DESC
		LIMIT 1
	`, name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return data, nil
}

// Delete removes all history rows for name.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if s.closed {
		return ErrStoreClosed{}
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// List returns the distinct snapshot names, sorted.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	if s.closed {
		return nil, ErrStoreClosed{}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT name FROM snapshots ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan snapshot name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot names: %w", err)
	}
	return names, nil
}

// History returns up to limit history rows for name, newest first.
func (s *SQLiteStore) History(ctx context.Context, name string, limit int) ([]Record, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("snapshot: limit must be greater than zero")
	}
	if s.closed {
		return nil, ErrStoreClosed{}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, tick, taken_at, data FROM snapshots
		WHERE name = ?
		ORDER BY id DESC
		LIMIT ?
	`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("snapshot history: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		var rec Record
		var tick int64
		var takenAt int64
		if err := rows.Scan(&rec.Name, &tick, &takenAt, &rec.Data); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		rec.Tick = uint64(tick)
		rec.TakenAt = fromMillis(takenAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return records, nil
}

// Prune deletes all but the newest keep rows for name.
// With keep == 0 the entire history for name is removed.
func (s *SQLiteStore) Prune(ctx context.Context, name string, keep int) error {
	if err := validateName(name); err != nil {
		return err
	}
	if keep < 0 {
		return fmt.Errorf("snapshot: keep must be non-negative")
	}
	if s.closed {
		return ErrStoreClosed{}
	}

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE name = ?
		  AND id NOT IN (
			SELECT id FROM snapshots
			WHERE name = ?
			ORDER BY id DESC
			LIMIT ?
		  )
	`, name, name, keep)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

package taskstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kandev/a2a/pkg/a2a"
)

const (
	sqliteBusyTimeout = 5 * time.Second

	// SQLite WAL mode allows many readers alongside a single writer; 4 read
	// connections is enough for this workload.
	sqliteReaderConns = 4
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	context_id TEXT NOT NULL,
	state      TEXT NOT NULL,
	payload    TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_context_id ON tasks(context_id);
`

// SQLiteStore persists task records in a SQLite database. Writes go through
// a single connection to avoid SQLITE_BUSY; reads use a small read-only
// pool that proceeds concurrently under WAL.
type SQLiteStore struct {
	writer *sqlx.DB
	reader *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path and
// initializes the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	normalized := normalizeSQLitePath(path)
	if err := ensureSQLiteFile(normalized); err != nil {
		return nil, fmt.Errorf("failed to prepare database file: %w", err)
	}

	// Writer DSN: FK enforcement, WAL for read concurrency, busy_timeout to
	// ride out transient lock contention.
	writerDSN := fmt.Sprintf(
		"file:%s?_foreign_keys=on&_mode=rwc&_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL&_cache=shared",
		normalized,
		int(sqliteBusyTimeout/time.Millisecond),
	)
	writer, err := sqlx.Open("sqlite3", writerDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	writer.SetMaxOpenConns(1)
	writer.SetMaxIdleConns(1)

	if _, err := writer.Exec(sqliteSchema); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	readerDSN := fmt.Sprintf(
		"file:%s?_foreign_keys=on&_mode=ro&_busy_timeout=%d&_cache=shared",
		normalized,
		int(sqliteBusyTimeout/time.Millisecond),
	)
	reader, err := sqlx.Open("sqlite3", readerDSN)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("failed to open read-only database: %w", err)
	}
	reader.SetMaxOpenConns(sqliteReaderConns)
	reader.SetMaxIdleConns(sqliteReaderConns)

	return &SQLiteStore{writer: writer, reader: reader}, nil
}

// Save upserts the task as a JSON payload keyed by id.
func (s *SQLiteStore) Save(ctx context.Context, task *a2a.Task) error {
	if task == nil || task.ID == "" {
		return a2a.InvalidParamsf("task id is required")
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	_, err = s.writer.ExecContext(ctx, `
		INSERT INTO tasks (id, context_id, state, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			context_id = excluded.context_id,
			state      = excluded.state,
			payload    = excluded.payload,
			updated_at = excluded.updated_at`,
		task.ID, task.ContextID, string(task.Status.State), string(payload), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.ID, err)
	}
	return nil
}

// Get loads and unmarshals the task payload.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*a2a.Task, error) {
	var payload string
	err := s.reader.GetContext(ctx, &payload, `SELECT payload FROM tasks WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, a2a.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", id, err)
	}
	var task a2a.Task
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task %s: %w", id, err)
	}
	return &task, nil
}

// Delete removes the task row if present.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.writer.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	return nil
}

// Close closes both connection pools.
func (s *SQLiteStore) Close() error {
	wErr := s.writer.Close()
	if rErr := s.reader.Close(); rErr != nil && wErr == nil {
		return rErr
	}
	return wErr
}

func ensureSQLiteFile(path string) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	return file.Close()
}

func normalizeSQLitePath(path string) string {
	if path == "" {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

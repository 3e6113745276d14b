package taskstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/kandev/a2a/pkg/a2a"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	context_id TEXT NOT NULL,
	state      TEXT NOT NULL,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_context_id ON tasks(context_id);
`

// PostgresStore persists task records in PostgreSQL via the pgx stdlib
// driver. pgx handles connection pooling, so a single *sqlx.DB serves both
// reads and writes.
type PostgresStore struct {
	db *sqlx.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to the database, verifies the connection, and
// initializes the schema. maxConns and minConns default to 25 and 5 when
// non-positive.
func NewPostgresStore(dsn string, maxConns, minConns int) (*PostgresStore, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}

	if maxConns <= 0 {
		maxConns = 25
	}
	if minConns <= 0 {
		minConns = 5
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(minConns)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}

	if _, err := db.Exec(postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Save upserts the task as a JSONB payload keyed by id.
func (s *PostgresStore) Save(ctx context.Context, task *a2a.Task) error {
	if task == nil || task.ID == "" {
		return a2a.InvalidParamsf("task id is required")
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, context_id, state, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			context_id = EXCLUDED.context_id,
			state      = EXCLUDED.state,
			payload    = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at`,
		task.ID, task.ContextID, string(task.Status.State), payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.ID, err)
	}
	return nil
}

// Get loads and unmarshals the task payload.
func (s *PostgresStore) Get(ctx context.Context, id string) (*a2a.Task, error) {
	var payload []byte
	err := s.db.GetContext(ctx, &payload, `SELECT payload FROM tasks WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, a2a.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", id, err)
	}
	var task a2a.Task
	if err := json.Unmarshal(payload, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task %s: %w", id, err)
	}
	return &task, nil
}

// Delete removes the task row if present.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

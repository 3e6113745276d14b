// Package taskstore provides persistence for task records. Stores hold the
// canonical state a consumer folds events into; everything handed out is a
// deep copy so callers can never mutate stored state in place.
package taskstore

import (
	"context"
	"sync"

	"github.com/kandev/a2a/pkg/a2a"
)

// Store is the persistence contract for task records.
type Store interface {
	// Save upserts the task under its id.
	Save(ctx context.Context, task *a2a.Task) error

	// Get returns a copy of the task, or a2a.ErrTaskNotFound.
	Get(ctx context.Context, id string) (*a2a.Task, error)

	// Delete removes the task. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases any underlying resources.
	Close() error
}

// MemoryStore is the default in-process store.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*a2a.Task
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*a2a.Task)}
}

// Save stores a copy of the task.
func (s *MemoryStore) Save(ctx context.Context, task *a2a.Task) error {
	if task == nil || task.ID == "" {
		return a2a.InvalidParamsf("task id is required")
	}
	s.mu.Lock()
	s.tasks[task.ID] = task.Clone()
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the stored task.
func (s *MemoryStore) Get(ctx context.Context, id string) (*a2a.Task, error) {
	s.mu.RLock()
	task, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, a2a.ErrTaskNotFound
	}
	return task.Clone(), nil
}

// Delete removes the task if present.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.tasks, id)
	s.mu.Unlock()
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

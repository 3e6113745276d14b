package eventqueue

import (
	"errors"
	"sync"

	"github.com/kandev/a2a/internal/common/logger"
)

// ErrQueueExists is returned by Add when a queue is already registered for
// the task.
var ErrQueueExists = errors.New("queue already exists for task")

// ErrNoQueue is returned by Tap and Close when no queue is registered for
// the task.
var ErrNoQueue = errors.New("no queue found for task")

// Manager owns the task-id to queue registry. Every live task has at most
// one root queue; resubscribing consumers get taps.
type Manager struct {
	log      *logger.Logger
	capacity int

	mu     sync.Mutex
	queues map[string]*Queue
}

// NewManager creates a queue manager. Queues it creates use the given
// capacity (DefaultCapacity when non-positive).
func NewManager(capacity int, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Default()
	}
	return &Manager{
		log:      log.WithComponent("eventqueue"),
		capacity: capacity,
		queues:   make(map[string]*Queue),
	}
}

// Add registers an existing queue under the task id. It fails with
// ErrQueueExists when the task already has a live queue.
func (m *Manager) Add(taskID string, q *Queue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queues[taskID]; ok {
		return ErrQueueExists
	}
	m.queues[taskID] = q
	return nil
}

// Get returns the root queue for the task, or nil when none is registered.
func (m *Manager) Get(taskID string) *Queue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queues[taskID]
}

// Tap returns a child queue observing future events of the task. It fails
// with ErrNoQueue when the task has no live queue.
func (m *Manager) Tap(taskID string) (*Queue, error) {
	m.mu.Lock()
	q, ok := m.queues[taskID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNoQueue
	}
	return q.Tap(), nil
}

// CreateOrTap returns a read view of the task's queue, creating the root
// queue if the task has none yet.
func (m *Manager) CreateOrTap(taskID string) *Queue {
	m.mu.Lock()
	q, ok := m.queues[taskID]
	if !ok {
		q = New(m.capacity, m.log)
		m.queues[taskID] = q
		m.mu.Unlock()
		return q
	}
	m.mu.Unlock()
	return q.Tap()
}

// Create makes a fresh root queue registered under the task id. It fails
// with ErrQueueExists when the task already has one.
func (m *Manager) Create(taskID string) (*Queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queues[taskID]; ok {
		return nil, ErrQueueExists
	}
	q := New(m.capacity, m.log)
	m.queues[taskID] = q
	return q, nil
}

// Rekey moves a queue from a provisional id to its final task id. Used when
// the first Task event reveals the server-assigned id. The provisional
// entry is removed; registration under the new id fails with ErrQueueExists
// if taken.
func (m *Manager) Rekey(oldID, newID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[oldID]
	if !ok {
		return ErrNoQueue
	}
	if oldID == newID {
		return nil
	}
	if _, taken := m.queues[newID]; taken {
		return ErrQueueExists
	}
	delete(m.queues, oldID)
	m.queues[newID] = q
	return nil
}

// Close closes the task's root queue and removes it from the registry.
func (m *Manager) Close(taskID string) error {
	m.mu.Lock()
	q, ok := m.queues[taskID]
	if ok {
		delete(m.queues, taskID)
	}
	m.mu.Unlock()
	if !ok {
		return ErrNoQueue
	}
	q.Close()
	return nil
}

// Remove drops the registry entry without closing the queue. The producer
// cleanup path uses it when the queue lifecycle is managed elsewhere.
func (m *Manager) Remove(taskID string) {
	m.mu.Lock()
	delete(m.queues, taskID)
	m.mu.Unlock()
}

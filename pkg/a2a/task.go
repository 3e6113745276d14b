// Package a2a defines the wire-level domain model for the Agent-to-Agent
// protocol: tasks, messages, parts, streaming events and the JSON-RPC error
// taxonomy. Types here marshal to the tagged-union JSON used on the wire.
package a2a

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TaskState represents the lifecycle state of a task.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateAuthRequired  TaskState = "auth-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
	TaskStateRejected      TaskState = "rejected"
	TaskStateUnknown       TaskState = "unknown"
)

// Terminal reports whether the state is final. A task never leaves a
// terminal state.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateCanceled, TaskStateFailed, TaskStateRejected, TaskStateUnknown:
		return true
	}
	return false
}

// Interrupted reports whether the state blocks completion awaiting client
// input.
func (s TaskState) Interrupted() bool {
	return s == TaskStateInputRequired || s == TaskStateAuthRequired
}

// TaskStatus holds the current state of a task with an optional agent
// message and the time the status was recorded.
type TaskStatus struct {
	State     TaskState  `json:"state"`
	Message   *Message   `json:"message,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Task is the authoritative record of a single unit of agent work.
// ID and ContextID never change after creation.
type Task struct {
	Kind      string                 `json:"kind"`
	ID        string                 `json:"id"`
	ContextID string                 `json:"contextId"`
	Status    TaskStatus             `json:"status"`
	Artifacts []Artifact             `json:"artifacts,omitempty"`
	History   []*Message             `json:"history,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewTask creates a task in the submitted state. Empty ids are generated.
func NewTask(id, contextID string) *Task {
	if id == "" {
		id = uuid.New().String()
	}
	if contextID == "" {
		contextID = uuid.New().String()
	}
	now := time.Now().UTC()
	return &Task{
		Kind:      KindTask,
		ID:        id,
		ContextID: contextID,
		Status:    TaskStatus{State: TaskStateSubmitted, Timestamp: &now},
	}
}

// EventKind implements Event.
func (t *Task) EventKind() string { return KindTask }

// Clone returns a deep copy of the task. Stored tasks are cloned on read so
// callers can truncate history or merge artifacts without mutating the
// authoritative copy.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		// Task fields are plain JSON-serializable values; this cannot fail
		// for tasks that came off the wire or out of a store.
		cp := *t
		return &cp
	}
	var cp Task
	if err := json.Unmarshal(data, &cp); err != nil {
		dup := *t
		return &dup
	}
	return &cp
}

// UnmarshalJSON decodes the task, resolving the part unions inside history
// and artifacts.
func (t *Task) UnmarshalJSON(data []byte) error {
	type alias Task
	aux := (*alias)(t)
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if t.Kind == "" {
		t.Kind = KindTask
	}
	return nil
}

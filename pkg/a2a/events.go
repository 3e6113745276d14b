package a2a

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event kind discriminators.
const (
	KindTask           = "task"
	KindMessage        = "message"
	KindStatusUpdate   = "status-update"
	KindArtifactUpdate = "artifact-update"
)

// Event is anything an executor emits on an event queue: a full Task
// snapshot, a standalone Message, or one of the streaming update events.
// The concrete type is discriminated by the "kind" field on the wire.
type Event interface {
	EventKind() string
}

// TaskStatusUpdateEvent signals a task status change during streaming.
// Final marks the last event of a stream.
type TaskStatusUpdateEvent struct {
	Kind      string                 `json:"kind"`
	TaskID    string                 `json:"taskId"`
	ContextID string                 `json:"contextId"`
	Status    TaskStatus             `json:"status"`
	Final     bool                   `json:"final"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewStatusUpdateEvent creates a status update for the given task.
func NewStatusUpdateEvent(taskID, contextID string, state TaskState, final bool) *TaskStatusUpdateEvent {
	now := time.Now().UTC()
	return &TaskStatusUpdateEvent{
		Kind:      KindStatusUpdate,
		TaskID:    taskID,
		ContextID: contextID,
		Status:    TaskStatus{State: state, Timestamp: &now},
		Final:     final,
	}
}

// EventKind implements Event.
func (e *TaskStatusUpdateEvent) EventKind() string { return KindStatusUpdate }

// TaskArtifactUpdateEvent delivers an artifact or artifact chunk during
// streaming. When Append is true the parts extend a previously delivered
// artifact with the same id; otherwise the artifact replaces it.
type TaskArtifactUpdateEvent struct {
	Kind      string                 `json:"kind"`
	TaskID    string                 `json:"taskId"`
	ContextID string                 `json:"contextId"`
	Artifact  Artifact               `json:"artifact"`
	Append    bool                   `json:"append,omitempty"`
	LastChunk bool                   `json:"lastChunk,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewArtifactUpdateEvent creates an artifact update for the given task.
func NewArtifactUpdateEvent(taskID, contextID string, artifact Artifact) *TaskArtifactUpdateEvent {
	return &TaskArtifactUpdateEvent{
		Kind:      KindArtifactUpdate,
		TaskID:    taskID,
		ContextID: contextID,
		Artifact:  artifact,
	}
}

// EventKind implements Event.
func (e *TaskArtifactUpdateEvent) EventKind() string { return KindArtifactUpdate }

// UnmarshalEvent decodes a wire event, dispatching on the "kind" tag.
func UnmarshalEvent(data []byte) (Event, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to probe event kind: %w", err)
	}
	switch probe.Kind {
	case KindTask:
		var t Task
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, err
		}
		return &t, nil
	case KindMessage:
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return &m, nil
	case KindStatusUpdate:
		var e TaskStatusUpdateEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return &e, nil
	case KindArtifactUpdate:
		var e TaskArtifactUpdateEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return &e, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", probe.Kind)
	}
}

// EventTaskID returns the task id an event refers to, or "" for standalone
// messages without one.
func EventTaskID(ev Event) string {
	switch v := ev.(type) {
	case *Task:
		return v.ID
	case *Message:
		return v.TaskID
	case *TaskStatusUpdateEvent:
		return v.TaskID
	case *TaskArtifactUpdateEvent:
		return v.TaskID
	}
	return ""
}

// Package taskmanager folds executor events into the authoritative task
// record held by the task store. One manager instance serves one request
// flow and carries the (taskId, contextId) identity it learned from the
// client or from the executor's first Task event.
package taskmanager

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kandev/a2a/internal/common/logger"
	"github.com/kandev/a2a/internal/taskstore"
	"github.com/kandev/a2a/pkg/a2a"
)

// Manager applies events and messages to a task while enforcing the
// identity invariants: taskId and contextId never change once set, and no
// transition leaves a terminal state.
type Manager struct {
	taskID    string
	contextID string
	initial   *a2a.Message
	store     taskstore.Store
	log       *logger.Logger
}

// New creates a manager for one request flow. taskID may be empty; it is
// adopted from the executor's first Task event.
func New(taskID, contextID string, initial *a2a.Message, store taskstore.Store, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Default()
	}
	return &Manager{
		taskID:    taskID,
		contextID: contextID,
		initial:   initial,
		store:     store,
		log:       log.WithComponent("taskmanager"),
	}
}

// TaskID returns the task id, empty until one is known.
func (m *Manager) TaskID() string { return m.taskID }

// ContextID returns the context id, empty until one is known.
func (m *Manager) ContextID() string { return m.contextID }

// GetTask returns the current snapshot from the store, or nil when the
// manager has no task id yet or the store has no record.
func (m *Manager) GetTask(ctx context.Context) (*a2a.Task, error) {
	if m.taskID == "" {
		return nil, nil
	}
	task, err := m.store.Get(ctx, m.taskID)
	if err != nil {
		if errors.Is(err, a2a.ErrTaskNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return task, nil
}

// SaveTaskEvent routes an executor event into the store and returns the
// resulting task snapshot. Message events are not stored directly; they
// reach history through status updates.
func (m *Manager) SaveTaskEvent(ctx context.Context, event a2a.Event) (*a2a.Task, error) {
	switch e := event.(type) {
	case *a2a.Task:
		return m.saveTask(ctx, e)
	case *a2a.TaskStatusUpdateEvent:
		return m.saveStatusUpdate(ctx, e)
	case *a2a.TaskArtifactUpdateEvent:
		return m.saveArtifactUpdate(ctx, e)
	case *a2a.Message:
		return m.GetTask(ctx)
	default:
		return nil, a2a.Errorf(a2a.CodeInvalidAgentResponse, "unexpected event kind %q", event.EventKind())
	}
}

func (m *Manager) saveTask(ctx context.Context, task *a2a.Task) (*a2a.Task, error) {
	if task.ID == "" {
		return nil, a2a.Errorf(a2a.CodeInvalidAgentResponse, "task event without id")
	}
	if err := m.adopt(task.ID, task.ContextID); err != nil {
		return nil, err
	}

	current, err := m.GetTask(ctx)
	if err != nil {
		return nil, err
	}
	if current != nil {
		if err := checkTransition(current.Status.State, task.Status.State); err != nil {
			return nil, err
		}
		if current.ContextID != "" && task.ContextID != "" && current.ContextID != task.ContextID {
			return nil, a2a.Errorf(a2a.CodeInvalidAgentResponse,
				"context id changed from %q to %q", current.ContextID, task.ContextID)
		}
	}

	saved := task.Clone()
	if saved.ContextID == "" {
		saved.ContextID = m.contextID
	}
	if err := m.store.Save(ctx, saved); err != nil {
		return nil, err
	}
	m.log.Debug("saved task snapshot",
		zap.String("task_id", saved.ID),
		zap.String("state", string(saved.Status.State)))
	return saved, nil
}

func (m *Manager) saveStatusUpdate(ctx context.Context, e *a2a.TaskStatusUpdateEvent) (*a2a.Task, error) {
	task, err := m.loadForUpdate(ctx, e.TaskID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(task.Status.State, e.Status.State); err != nil {
		return nil, err
	}

	task.Status = e.Status
	if e.Status.Message != nil {
		task.History = append(task.History, e.Status.Message)
	}

	if err := m.store.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (m *Manager) saveArtifactUpdate(ctx context.Context, e *a2a.TaskArtifactUpdateEvent) (*a2a.Task, error) {
	task, err := m.loadForUpdate(ctx, e.TaskID)
	if err != nil {
		return nil, err
	}

	merged := false
	for i := range task.Artifacts {
		if task.Artifacts[i].ArtifactID != e.Artifact.ArtifactID {
			continue
		}
		if e.Append {
			task.Artifacts[i].Parts = append(task.Artifacts[i].Parts, e.Artifact.Parts...)
		} else {
			task.Artifacts[i] = e.Artifact
		}
		merged = true
		break
	}
	if !merged {
		task.Artifacts = append(task.Artifacts, e.Artifact)
	}

	if err := m.store.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// loadForUpdate fetches the task an update event refers to, enforcing that
// the event matches the identity this manager is bound to.
func (m *Manager) loadForUpdate(ctx context.Context, eventTaskID string) (*a2a.Task, error) {
	if eventTaskID == "" {
		return nil, a2a.Errorf(a2a.CodeInvalidAgentResponse, "update event without task id")
	}
	if m.taskID != "" && eventTaskID != m.taskID {
		return nil, a2a.Errorf(a2a.CodeInvalidAgentResponse,
			"event task id %q does not match %q", eventTaskID, m.taskID)
	}
	task, err := m.store.Get(ctx, eventTaskID)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateWithMessage appends the message to the task history and returns the
// updated copy. The caller decides whether to persist it.
func (m *Manager) UpdateWithMessage(message *a2a.Message, task *a2a.Task) *a2a.Task {
	updated := task.Clone()
	if updated.Status.Message != nil {
		updated.History = append(updated.History, updated.Status.Message)
		updated.Status.Message = nil
	}
	updated.History = append(updated.History, message)
	return updated
}

// Save persists a task snapshot through the manager's store.
func (m *Manager) Save(ctx context.Context, task *a2a.Task) error {
	return m.store.Save(ctx, task)
}

// adopt fixes the manager identity from the first Task event. A later
// mismatch is an executor bug.
func (m *Manager) adopt(taskID, contextID string) error {
	if m.taskID == "" {
		m.taskID = taskID
	} else if m.taskID != taskID {
		return a2a.Errorf(a2a.CodeInvalidAgentResponse,
			"task id %q does not match %q", taskID, m.taskID)
	}
	if m.contextID == "" {
		m.contextID = contextID
	}
	return nil
}

// checkTransition rejects any transition out of a terminal state.
func checkTransition(from, to a2a.TaskState) error {
	if from.Terminal() && from != to {
		return a2a.Errorf(a2a.CodeInvalidAgentResponse,
			"invalid transition from terminal state %q to %q", from, to)
	}
	return nil
}

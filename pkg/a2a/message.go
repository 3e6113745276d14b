package a2a

import (
	"encoding/json"

	"github.com/google/uuid"
)

// MessageRole identifies the author of a message.
type MessageRole string

const (
	MessageRoleUser  MessageRole = "user"
	MessageRoleAgent MessageRole = "agent"
)

// Message is a single exchange between a client and an agent. A message
// returned standalone by an executor is a terminal result; a message inside
// a task status becomes part of the task history.
type Message struct {
	Kind             string                 `json:"kind"`
	MessageID        string                 `json:"messageId"`
	Role             MessageRole            `json:"role"`
	Parts            []Part                 `json:"parts"`
	TaskID           string                 `json:"taskId,omitempty"`
	ContextID        string                 `json:"contextId,omitempty"`
	ReferenceTaskIDs []string               `json:"referenceTaskIds,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// NewMessage creates a message with a generated id.
func NewMessage(role MessageRole, parts ...Part) *Message {
	return &Message{
		Kind:      KindMessage,
		MessageID: uuid.New().String(),
		Role:      role,
		Parts:     parts,
	}
}

// EventKind implements Event.
func (m *Message) EventKind() string { return KindMessage }

// UnmarshalJSON decodes the message, resolving the part union.
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias Message
	aux := struct {
		*alias
		Parts []json.RawMessage `json:"parts"`
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	parts, err := unmarshalParts(aux.Parts)
	if err != nil {
		return err
	}
	m.Parts = parts
	if m.Kind == "" {
		m.Kind = KindMessage
	}
	return nil
}

// Artifact is a structured output deliverable attached to a task.
type Artifact struct {
	ArtifactID  string                 `json:"artifactId"`
	Name        string                 `json:"name,omitempty"`
	Description string                 `json:"description,omitempty"`
	Parts       []Part                 `json:"parts"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// NewArtifact creates a named artifact with a generated id.
func NewArtifact(name string, parts ...Part) Artifact {
	return Artifact{ArtifactID: uuid.New().String(), Name: name, Parts: parts}
}

// UnmarshalJSON decodes the artifact, resolving the part union.
func (a *Artifact) UnmarshalJSON(data []byte) error {
	type alias Artifact
	aux := struct {
		*alias
		Parts []json.RawMessage `json:"parts"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	parts, err := unmarshalParts(aux.Parts)
	if err != nil {
		return err
	}
	a.Parts = parts
	return nil
}

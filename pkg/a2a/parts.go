package a2a

import (
	"encoding/json"
	"fmt"
)

// Part kind discriminators.
const (
	PartKindText = "text"
	PartKindFile = "file"
	PartKindData = "data"
)

// Part is one element of a message or artifact payload. Concrete types are
// TextPart, FilePart and DataPart, discriminated by the "kind" field.
type Part interface {
	PartKind() string
}

// TextPart carries plain text.
type TextPart struct {
	Kind     string                 `json:"kind"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// PartKind implements Part.
func (p TextPart) PartKind() string { return PartKindText }

// NewTextPart creates a text part.
func NewTextPart(text string) TextPart {
	return TextPart{Kind: PartKindText, Text: text}
}

// FileContent is the payload of a file part. Exactly one of Bytes (base64)
// or URI is set.
type FileContent struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Bytes    string `json:"bytes,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// FilePart carries a file, either inline as base64 bytes or by reference.
type FilePart struct {
	Kind     string                 `json:"kind"`
	File     FileContent            `json:"file"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// PartKind implements Part.
func (p FilePart) PartKind() string { return PartKindFile }

// NewFilePartBytes creates a file part with inline base64 content.
func NewFilePartBytes(name, mimeType, encoded string) FilePart {
	return FilePart{Kind: PartKindFile, File: FileContent{Name: name, MimeType: mimeType, Bytes: encoded}}
}

// NewFilePartURI creates a file part referencing external content.
func NewFilePartURI(name, mimeType, uri string) FilePart {
	return FilePart{Kind: PartKindFile, File: FileContent{Name: name, MimeType: mimeType, URI: uri}}
}

// DataPart carries structured free-form data.
type DataPart struct {
	Kind     string                 `json:"kind"`
	Data     map[string]interface{} `json:"data"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// PartKind implements Part.
func (p DataPart) PartKind() string { return PartKindData }

// NewDataPart creates a data part.
func NewDataPart(data map[string]interface{}) DataPart {
	return DataPart{Kind: PartKindData, Data: data}
}

// UnmarshalPart decodes a single part, dispatching on the "kind" tag.
func UnmarshalPart(data []byte) (Part, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to probe part kind: %w", err)
	}
	switch probe.Kind {
	case PartKindText:
		var p TextPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartKindFile:
		var p FilePart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PartKindData:
		var p DataPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown part kind %q", probe.Kind)
	}
}

// unmarshalParts decodes a JSON array of parts.
func unmarshalParts(raw []json.RawMessage) ([]Part, error) {
	if raw == nil {
		return nil, nil
	}
	parts := make([]Part, 0, len(raw))
	for i, r := range raw {
		p, err := UnmarshalPart(r)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		parts = append(parts, p)
	}
	return parts, nil
}

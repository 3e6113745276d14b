// Package jsonrpc implements the JSON-RPC 2.0 envelope used by all A2A
// transports. It only frames requests and responses; method semantics live
// behind the server facade.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kandev/a2a/pkg/a2a"
)

// Version is the protocol version carried in every envelope.
const Version = "2.0"

// ID is a JSON-RPC request id: a string, an integer, or null. The zero
// value marshals as null.
type ID struct {
	raw json.RawMessage
}

// StringID creates a string id.
func StringID(s string) ID {
	raw, _ := json.Marshal(s)
	return ID{raw: raw}
}

// IntID creates an integer id.
func IntID(n int64) ID {
	raw, _ := json.Marshal(n)
	return ID{raw: raw}
}

// IsNull reports whether the id is absent or null.
func (id ID) IsNull() bool {
	return len(id.raw) == 0 || bytes.Equal(id.raw, []byte("null"))
}

// String returns the textual form of the id for logging.
func (id ID) String() string {
	if id.IsNull() {
		return "null"
	}
	return string(id.raw)
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if len(id.raw) == 0 {
		return []byte("null"), nil
	}
	return id.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler. Only strings, numbers and null
// are accepted per JSON-RPC 2.0.
func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		id.raw = nil
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
	case '{', '[', 't', 'f':
		return fmt.Errorf("invalid JSON-RPC id: %s", trimmed)
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return err
		}
	}
	id.raw = append(json.RawMessage(nil), trimmed...)
	return nil
}

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Validate checks the envelope invariants; the returned error is the A2A
// invalid-request error when they do not hold.
func (r *Request) Validate() error {
	if r.JSONRPC != Version {
		return a2a.Errorf(a2a.CodeInvalidRequest, "unsupported jsonrpc version %q", r.JSONRPC)
	}
	if r.Method == "" {
		return a2a.Errorf(a2a.CodeInvalidRequest, "method is required")
	}
	return nil
}

// Response is a JSON-RPC 2.0 response envelope. Exactly one of Result and
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *a2a.Error      `json:"error,omitempty"`
}

// NewResponse creates a success response, marshaling the result.
func NewResponse(id ID, result interface{}) (*Response, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &Response{JSONRPC: Version, ID: id, Result: data}, nil
}

// NewErrorResponse creates an error response. Non-A2A errors are folded
// into the internal error code so nothing leaks raw across the transport.
func NewErrorResponse(id ID, err error) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: AsError(err)}
}

// AsError converts any error to a wire *a2a.Error, defaulting to the
// internal error code.
func AsError(err error) *a2a.Error {
	if err == nil {
		return nil
	}
	var rpcErr *a2a.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return a2a.Internalf("%s", err.Error())
}

// ParseRequest decodes a raw frame into a request envelope. A decode
// failure maps to the parse error code.
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, a2a.Errorf(a2a.CodeParseError, "invalid JSON payload: %v", err)
	}
	return &req, nil
}

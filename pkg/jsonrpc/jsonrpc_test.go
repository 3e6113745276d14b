package jsonrpc

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/a2a/pkg/a2a"
)

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest([]byte(`{"jsonrpc":"2.0","id":"r1","method":"tasks/get","params":{"id":"T1"}}`))
	require.NoError(t, err)
	assert.Equal(t, "tasks/get", req.Method)
	assert.Equal(t, `"r1"`, req.ID.String())
	assert.NoError(t, req.Validate())

	_, err = ParseRequest([]byte(`{not json`))
	assert.ErrorIs(t, err, a2a.ErrParseError)
}

func TestRequestValidate(t *testing.T) {
	req := &Request{JSONRPC: "1.0", Method: "tasks/get"}
	assert.ErrorIs(t, req.Validate(), a2a.ErrInvalidRequest)

	req = &Request{JSONRPC: Version}
	assert.ErrorIs(t, req.Validate(), a2a.ErrInvalidRequest)
}

func TestIDAcceptsStringNumberNull(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"abc"`, `"abc"`},
		{`7`, `7`},
		{`null`, `null`},
	}
	for _, tt := range tests {
		var id ID
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &id), tt.raw)
		assert.Equal(t, tt.want, id.String())
	}
}

func TestIDRejectsOtherShapes(t *testing.T) {
	for _, raw := range []string{`true`, `false`, `{}`, `[1]`} {
		var id ID
		assert.Error(t, json.Unmarshal([]byte(raw), &id), raw)
	}
}

func TestIDMarshalsZeroAsNull(t *testing.T) {
	data, err := json.Marshal(ID{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
	assert.True(t, ID{}.IsNull())
}

func TestResponseEnvelopes(t *testing.T) {
	resp, err := NewResponse(StringID("r1"), map[string]string{"ok": "yes"})
	require.NoError(t, err)
	assert.Nil(t, resp.Error)
	assert.JSONEq(t, `{"ok":"yes"}`, string(resp.Result))

	// Domain errors keep their code; anything else folds to internal.
	errResp := NewErrorResponse(IntID(2), a2a.ErrTaskNotFound)
	require.NotNil(t, errResp.Error)
	assert.Equal(t, a2a.CodeTaskNotFound, errResp.Error.Code)

	errResp = NewErrorResponse(IntID(3), errors.New("disk on fire"))
	require.NotNil(t, errResp.Error)
	assert.Equal(t, a2a.CodeInternalError, errResp.Error.Code)
}

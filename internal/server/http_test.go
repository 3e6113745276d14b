package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/a2a/internal/eventqueue"
	"github.com/kandev/a2a/internal/handler"
	"github.com/kandev/a2a/internal/taskstore"
	"github.com/kandev/a2a/pkg/a2a"
	"github.com/kandev/a2a/pkg/jsonrpc"
)

// replayExecutor enqueues a fixed event sequence and returns.
type replayExecutor struct {
	events []a2a.Event
}

func (e *replayExecutor) Execute(ctx context.Context, rc *handler.RequestContext, queue *eventqueue.Queue) error {
	for _, ev := range e.events {
		queue.Enqueue(ev)
	}
	return nil
}

func (e *replayExecutor) Cancel(ctx context.Context, rc *handler.RequestContext, queue *eventqueue.Queue) error {
	queue.Enqueue(a2a.NewStatusUpdateEvent(rc.TaskID, rc.ContextID, a2a.TaskStateCanceled, true))
	return nil
}

func newTestServer(t *testing.T, exec handler.AgentExecutor) (*HTTPServer, taskstore.Store) {
	t.Helper()
	store := taskstore.NewMemoryStore()
	queues := eventqueue.NewManager(64, nil)
	h := handler.New(exec, store, queues, nil)
	router := NewRouter(h, nil)
	card := a2a.AgentCard{
		Name:         "test-agent",
		URL:          "http://localhost/",
		Version:      "0.0.1",
		Capabilities: a2a.AgentCapabilities{Streaming: true},
	}
	srv := NewHTTPServer(HTTPConfig{Host: "127.0.0.1", Port: 0}, router, card, nil)
	return srv, store
}

func postRPC(t *testing.T, srv *HTTPServer, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) *jsonrpc.Response {
	t.Helper()
	var resp jsonrpc.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return &resp
}

func TestUnknownMethod(t *testing.T) {
	srv, _ := newTestServer(t, &replayExecutor{})

	rec := postRPC(t, srv, `{"jsonrpc":"2.0","id":1,"method":"does/not/exist"}`)
	resp := decodeResponse(t, rec)

	require.NotNil(t, resp.Error)
	assert.Equal(t, a2a.CodeMethodNotFound, resp.Error.Code)
}

func TestParseError(t *testing.T) {
	srv, _ := newTestServer(t, &replayExecutor{})

	rec := postRPC(t, srv, `{not json`)
	resp := decodeResponse(t, rec)

	require.NotNil(t, resp.Error)
	assert.Equal(t, a2a.CodeParseError, resp.Error.Code)
	assert.Equal(t, "null", resp.ID.String())
}

func TestInvalidEnvelope(t *testing.T) {
	srv, _ := newTestServer(t, &replayExecutor{})

	rec := postRPC(t, srv, `{"jsonrpc":"1.0","id":7,"method":"tasks/get","params":{"id":"T1"}}`)
	resp := decodeResponse(t, rec)

	require.NotNil(t, resp.Error)
	assert.Equal(t, a2a.CodeInvalidRequest, resp.Error.Code)
}

func TestMessageSendOverHTTP(t *testing.T) {
	task := a2a.NewTask("T1", "c1")
	task.Status.State = a2a.TaskStateCompleted
	srv, _ := newTestServer(t, &replayExecutor{events: []a2a.Event{task}})

	rec := postRPC(t, srv, `{
		"jsonrpc":"2.0","id":"req-1","method":"message/send",
		"params":{"message":{"kind":"message","role":"user","messageId":"m1","contextId":"c1",
			"parts":[{"kind":"text","text":"tell me a joke"}]}}
	}`)
	resp := decodeResponse(t, rec)

	require.Nil(t, resp.Error)
	var result a2a.Task
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "T1", result.ID)
	assert.Equal(t, a2a.TaskStateCompleted, result.Status.State)
}

func TestTasksGetOverHTTP(t *testing.T) {
	srv, store := newTestServer(t, &replayExecutor{})
	require.NoError(t, store.Save(context.Background(), a2a.NewTask("T1", "c1")))

	rec := postRPC(t, srv, `{"jsonrpc":"2.0","id":2,"method":"tasks/get","params":{"id":"T1"}}`)
	resp := decodeResponse(t, rec)

	require.Nil(t, resp.Error)
	var result a2a.Task
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "T1", result.ID)

	rec = postRPC(t, srv, `{"jsonrpc":"2.0","id":3,"method":"tasks/get","params":{"id":"missing"}}`)
	resp = decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, a2a.CodeTaskNotFound, resp.Error.Code)
}

func TestStreamingOverSSE(t *testing.T) {
	events := []a2a.Event{
		a2a.NewTask("T1", "c1"),
		a2a.NewStatusUpdateEvent("T1", "c1", a2a.TaskStateWorking, false),
		a2a.NewStatusUpdateEvent("T1", "c1", a2a.TaskStateCompleted, true),
	}
	srv, _ := newTestServer(t, &replayExecutor{events: events})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body := `{
		"jsonrpc":"2.0","id":"s1","method":"message/stream",
		"params":{"message":{"kind":"message","role":"user","messageId":"m1","contextId":"c1",
			"parts":[{"kind":"text","text":"go"}]}}
	}`
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var kinds []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame jsonrpc.Response
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame))
		require.Nil(t, frame.Error)

		event, err := a2a.UnmarshalEvent(frame.Result)
		require.NoError(t, err)
		kinds = append(kinds, event.EventKind())
	}
	assert.Equal(t, []string{a2a.KindTask, a2a.KindStatusUpdate, a2a.KindStatusUpdate}, kinds)
}

func TestAgentCardAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, &replayExecutor{})

	req := httptest.NewRequest(http.MethodGet, a2a.AgentCardPath, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var card a2a.AgentCard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))
	assert.Equal(t, "test-agent", card.Name)
	assert.True(t, card.Capabilities.Streaming)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCancelOverHTTP(t *testing.T) {
	srv, store := newTestServer(t, &replayExecutor{})
	task := a2a.NewTask("T1", "c1")
	task.Status.State = a2a.TaskStateWorking
	require.NoError(t, store.Save(context.Background(), task))

	rec := postRPC(t, srv, `{"jsonrpc":"2.0","id":4,"method":"tasks/cancel","params":{"id":"T1"}}`)
	resp := decodeResponse(t, rec)

	require.Nil(t, resp.Error)
	var result a2a.Task
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, a2a.TaskStateCanceled, result.Status.State)
}

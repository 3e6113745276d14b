// Package server binds the request handler to the wire: a JSON-RPC method
// router shared by every transport, plus HTTP/SSE, WebSocket and NATS
// bindings.
package server

import (
	"context"
	"encoding/json"

	"github.com/kandev/a2a/internal/aggregator"
	"github.com/kandev/a2a/internal/common/logger"
	"github.com/kandev/a2a/internal/handler"
	"github.com/kandev/a2a/pkg/a2a"
	"github.com/kandev/a2a/pkg/jsonrpc"
)

// JSON-RPC method names.
const (
	MethodMessageSend    = "message/send"
	MethodMessageStream  = "message/stream"
	MethodTasksGet       = "tasks/get"
	MethodTasksCancel    = "tasks/cancel"
	MethodTasksResub     = "tasks/resubscribe"
	MethodPushConfigSet  = "tasks/pushNotificationConfig/set"
	MethodPushConfigGet  = "tasks/pushNotificationConfig/get"
	MethodPushConfigList = "tasks/pushNotificationConfig/list"
	MethodPushConfigDel  = "tasks/pushNotificationConfig/delete"
)

// Router validates JSON-RPC envelopes and routes methods to the request
// handler. It is shared by all transport bindings.
type Router struct {
	handler *handler.RequestHandler
	log     *logger.Logger
}

// NewRouter creates a router over the request handler.
func NewRouter(h *handler.RequestHandler, log *logger.Logger) *Router {
	if log == nil {
		log = logger.Default()
	}
	return &Router{handler: h, log: log.WithComponent("rpc")}
}

// IsStreaming reports whether the method produces a response stream.
func (r *Router) IsStreaming(method string) bool {
	return method == MethodMessageStream || method == MethodTasksResub
}

// Handle services a non-streaming request and always returns a response
// envelope.
func (r *Router) Handle(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	if err := req.Validate(); err != nil {
		return jsonrpc.NewErrorResponse(req.ID, err)
	}

	result, err := r.dispatch(ctx, req)
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, err)
	}
	resp, err := jsonrpc.NewResponse(req.ID, result)
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, err)
	}
	return resp
}

// HandleStream services a streaming request. On a pre-subscription failure
// it returns a nil channel and the error response; otherwise every stream
// item arrives as its own response envelope and the channel closes when the
// stream ends.
func (r *Router) HandleStream(ctx context.Context, req *jsonrpc.Request) (<-chan *jsonrpc.Response, *jsonrpc.Response) {
	if err := req.Validate(); err != nil {
		return nil, jsonrpc.NewErrorResponse(req.ID, err)
	}

	var (
		items <-chan aggregator.StreamItem
		err   error
	)
	switch req.Method {
	case MethodMessageStream:
		var params a2a.MessageSendParams
		if perr := unmarshalParams(req.Params, &params); perr != nil {
			return nil, jsonrpc.NewErrorResponse(req.ID, perr)
		}
		items, err = r.handler.OnMessageSendStream(ctx, params)
	case MethodTasksResub:
		var params a2a.TaskIDParams
		if perr := unmarshalParams(req.Params, &params); perr != nil {
			return nil, jsonrpc.NewErrorResponse(req.ID, perr)
		}
		items, err = r.handler.OnResubscribeToTask(ctx, params)
	default:
		return nil, jsonrpc.NewErrorResponse(req.ID, a2a.ErrMethodNotFound)
	}
	if err != nil {
		return nil, jsonrpc.NewErrorResponse(req.ID, err)
	}

	out := make(chan *jsonrpc.Response)
	go func() {
		defer close(out)
		for item := range items {
			var resp *jsonrpc.Response
			if item.Err != nil {
				resp = jsonrpc.NewErrorResponse(req.ID, item.Err)
			} else {
				var rerr error
				resp, rerr = jsonrpc.NewResponse(req.ID, item.Event)
				if rerr != nil {
					resp = jsonrpc.NewErrorResponse(req.ID, rerr)
				}
			}
			select {
			case out <- resp:
			case <-ctx.Done():
				return
			}
			if resp.Error != nil {
				return
			}
		}
	}()
	return out, nil
}

func (r *Router) dispatch(ctx context.Context, req *jsonrpc.Request) (interface{}, error) {
	switch req.Method {
	case MethodMessageSend:
		var params a2a.MessageSendParams
		if err := unmarshalParams(req.Params, &params); err != nil {
			return nil, err
		}
		return r.handler.OnMessageSend(ctx, params)

	case MethodTasksGet:
		var params a2a.TaskQueryParams
		if err := unmarshalParams(req.Params, &params); err != nil {
			return nil, err
		}
		return r.handler.OnGetTask(ctx, params)

	case MethodTasksCancel:
		var params a2a.TaskIDParams
		if err := unmarshalParams(req.Params, &params); err != nil {
			return nil, err
		}
		return r.handler.OnCancelTask(ctx, params)

	case MethodPushConfigSet:
		var params a2a.TaskPushNotificationConfig
		if err := unmarshalParams(req.Params, &params); err != nil {
			return nil, err
		}
		return r.handler.OnSetTaskPushNotificationConfig(ctx, params)

	case MethodPushConfigGet:
		var params a2a.GetTaskPushNotificationConfigParams
		if err := unmarshalParams(req.Params, &params); err != nil {
			return nil, err
		}
		return r.handler.OnGetTaskPushNotificationConfig(ctx, params)

	case MethodPushConfigList:
		var params a2a.TaskIDParams
		if err := unmarshalParams(req.Params, &params); err != nil {
			return nil, err
		}
		return r.handler.OnListTaskPushNotificationConfig(ctx, params)

	case MethodPushConfigDel:
		var params a2a.DeleteTaskPushNotificationConfigParams
		if err := unmarshalParams(req.Params, &params); err != nil {
			return nil, err
		}
		if err := r.handler.OnDeleteTaskPushNotificationConfig(ctx, params); err != nil {
			return nil, err
		}
		return nil, nil

	case MethodMessageStream, MethodTasksResub:
		// Streaming methods reached a non-streaming transport path.
		return nil, a2a.Errorf(a2a.CodeUnsupportedOperation, "method %q requires a streaming transport", req.Method)

	default:
		return nil, a2a.ErrMethodNotFound
	}
}

func unmarshalParams(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return a2a.InvalidParamsf("params are required")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return a2a.InvalidParamsf("malformed params: %v", err)
	}
	return nil
}

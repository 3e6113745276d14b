package handler

import (
	"context"

	"github.com/kandev/a2a/internal/eventqueue"
	"github.com/kandev/a2a/pkg/a2a"
)

// RequestContext carries everything an executor needs to service one
// invocation: the task identity (TaskID may be empty for new tasks until
// the executor announces one), the latest stored snapshot, and the inbound
// message.
type RequestContext struct {
	TaskID    string
	ContextID string
	Task      *a2a.Task
	Message   *a2a.Message
	Params    *a2a.MessageSendParams
}

// AgentExecutor is the user-supplied work producer. Both operations are
// synchronous: Execute returning closes the queue, and a returned error is
// recorded as the producer failure for the in-flight call.
type AgentExecutor interface {
	// Execute produces zero or more events on the queue. The first Task
	// event establishes the task id when the client did not provide one;
	// every later event must carry a matching id.
	Execute(ctx context.Context, rc *RequestContext, queue *eventqueue.Queue) error

	// Cancel emits a terminal cancellation. It may run while Execute is
	// still in flight.
	Cancel(ctx context.Context, rc *RequestContext, queue *eventqueue.Queue) error
}

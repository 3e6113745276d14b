// Package aggregator folds the event stream of one request into an
// authoritative result. The Consumer wraps a queue as a lazy event
// sequence; the Aggregator drains it in one of three modes used by the
// request handler.
package aggregator

import (
	"context"
	"errors"

	"github.com/kandev/a2a/internal/eventqueue"
	"github.com/kandev/a2a/pkg/a2a"
)

// ErrDone signals that the event sequence is exhausted: the queue closed
// and drained without a producer failure.
var ErrDone = errors.New("event stream complete")

// Consumer is a lazy event sequence over one queue. Producer failures
// recorded on the queue surface as internal errors even when no event was
// ever enqueued.
type Consumer struct {
	queue *eventqueue.Queue
}

// NewConsumer wraps a queue.
func NewConsumer(queue *eventqueue.Queue) *Consumer {
	return &Consumer{queue: queue}
}

// ConsumeOne returns the next event. It returns ErrDone once the queue is
// closed and drained, or the recorded producer error wrapped as an internal
// error.
func (c *Consumer) ConsumeOne(ctx context.Context) (a2a.Event, error) {
	event, err := c.queue.Dequeue(ctx)
	if err == nil {
		return event, nil
	}
	if errors.Is(err, eventqueue.ErrQueueClosed) {
		if prodErr := c.queue.Err(); prodErr != nil {
			return nil, a2a.Internalf("agent execution failed: %s", prodErr.Error())
		}
		return nil, ErrDone
	}
	return nil, err
}

// isFinalEvent reports whether an event terminates the sequence for a
// non-streaming caller: a standalone message, a final status update, or any
// event carrying a terminal task state.
func isFinalEvent(event a2a.Event) bool {
	switch e := event.(type) {
	case *a2a.Message:
		return true
	case *a2a.Task:
		return e.Status.State.Terminal()
	case *a2a.TaskStatusUpdateEvent:
		return e.Final || e.Status.State.Terminal()
	default:
		return false
	}
}

// isInterruptEvent reports whether an event puts the task into a state that
// waits on the client.
func isInterruptEvent(event a2a.Event) bool {
	switch e := event.(type) {
	case *a2a.Task:
		return e.Status.State.Interrupted()
	case *a2a.TaskStatusUpdateEvent:
		return e.Status.State.Interrupted()
	default:
		return false
	}
}

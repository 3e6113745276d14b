// Package eventqueue implements the bounded event fabric that connects agent
// executors (producers) to the request handler and streaming transports
// (consumers). A queue carries the events of one task; taps provide
// additional read views for resubscribed consumers.
package eventqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kandev/a2a/internal/common/logger"
	"github.com/kandev/a2a/pkg/a2a"
)

// DefaultCapacity is the per-queue event buffer size used when no explicit
// capacity is configured.
const DefaultCapacity = 1024

// ErrQueueClosed is returned by Dequeue once the queue is closed and
// drained.
var ErrQueueClosed = errors.New("event queue is closed")

// Queue is a bounded FIFO of task events. A queue is either a root queue
// (owned by the producer) or a tap created from one; taps observe events
// enqueued after their creation and close when the root closes.
type Queue struct {
	log *logger.Logger

	mu       sync.Mutex
	buf      chan a2a.Event
	children []*Queue
	closed   bool
	err      error
	done     chan struct{}

	pollerOnce    sync.Once
	pollerStarted chan struct{}
}

// New creates a root queue with the given capacity. A non-positive capacity
// falls back to DefaultCapacity.
func New(capacity int, log *logger.Logger) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if log == nil {
		log = logger.Default()
	}
	return &Queue{
		log:           log.WithComponent("eventqueue"),
		buf:           make(chan a2a.Event, capacity),
		done:          make(chan struct{}),
		pollerStarted: make(chan struct{}),
	}
}

// Enqueue appends an event and fans it out to every tap. Events enqueued on
// a closed queue are dropped with a warning; producers finishing late must
// not block or panic.
func (q *Queue) Enqueue(event a2a.Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.log.Warn("dropping event enqueued on closed queue",
			zap.String("event_kind", event.EventKind()),
			zap.String("task_id", a2a.EventTaskID(event)))
		return
	}
	children := make([]*Queue, len(q.children))
	copy(children, q.children)
	q.mu.Unlock()

	select {
	case q.buf <- event:
	case <-q.done:
		q.log.Warn("dropping event, queue closed while enqueueing",
			zap.String("event_kind", event.EventKind()))
		return
	}

	for _, child := range children {
		child.Enqueue(event)
	}
}

// Dequeue returns the next event, blocking until one arrives, the context
// is done, or the queue closes and drains. The first call releases the
// poller-started latch so the producer side knows a consumer is attached.
func (q *Queue) Dequeue(ctx context.Context) (a2a.Event, error) {
	q.pollerOnce.Do(func() { close(q.pollerStarted) })

	// Drain buffered events even after close.
	select {
	case event := <-q.buf:
		return event, nil
	default:
	}

	select {
	case event := <-q.buf:
		return event, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.done:
		// Close raced with a buffered event.
		select {
		case event := <-q.buf:
			return event, nil
		default:
			return nil, ErrQueueClosed
		}
	}
}

// Tap creates a child queue that observes every event enqueued from now on.
// The tap closes when this queue closes; closing the tap detaches it
// without affecting the parent.
func (q *Queue) Tap() *Queue {
	child := &Queue{
		log:           q.log,
		buf:           make(chan a2a.Event, cap(q.buf)),
		done:          make(chan struct{}),
		pollerStarted: make(chan struct{}),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		child.close(q.err)
		return child
	}
	q.children = append(q.children, child)
	return child
}

// Close marks the queue closed. Buffered events remain readable; further
// enqueues are dropped. Closing is idempotent and propagates to taps.
func (q *Queue) Close() {
	q.close(nil)
}

// CloseWithError closes the queue and records a producer failure that
// consumers can observe through Err once the queue drains.
func (q *Queue) CloseWithError(err error) {
	q.close(err)
}

func (q *Queue) close(err error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.err = err
	children := q.children
	q.children = nil
	close(q.done)
	q.mu.Unlock()

	for _, child := range children {
		child.close(err)
	}
}

// Closed reports whether the queue has been closed.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Err returns the producer error recorded by CloseWithError, if any. It is
// the out-of-band channel for failures that happen after the final event.
func (q *Queue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// Done returns a channel closed when the queue closes.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// WaitForPoller blocks until the first Dequeue call or the timeout elapses.
// Producers use this handshake so early events are not generated before any
// consumer is attached.
func (q *Queue) WaitForPoller(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-q.pollerStarted:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.New("timed out waiting for queue poller")
	}
}

package eventqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/a2a/pkg/a2a"
)

func testMessage(id string) *a2a.Message {
	msg := a2a.NewMessage(a2a.MessageRoleAgent, a2a.NewTextPart("hello"))
	msg.MessageID = id
	return msg
}

func TestQueueEnqueueDequeue(t *testing.T) {
	q := New(8, nil)
	defer q.Close()

	q.Enqueue(testMessage("m1"))
	q.Enqueue(testMessage("m2"))

	ctx := context.Background()

	ev, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "m1", ev.(*a2a.Message).MessageID)

	ev, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "m2", ev.(*a2a.Message).MessageID)
}

func TestQueueDequeueBlocksUntilEvent(t *testing.T) {
	q := New(8, nil)
	defer q.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Enqueue(testMessage("late"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ev, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "late", ev.(*a2a.Message).MessageID)
}

func TestQueueDequeueContextCanceled(t *testing.T) {
	q := New(8, nil)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueCloseDrainsBufferedEvents(t *testing.T) {
	q := New(8, nil)
	q.Enqueue(testMessage("m1"))
	q.Close()

	ctx := context.Background()

	ev, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "m1", ev.(*a2a.Message).MessageID)

	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueueEnqueueAfterCloseIsDropped(t *testing.T) {
	q := New(8, nil)
	q.Close()

	// Must not panic or block.
	q.Enqueue(testMessage("dropped"))

	_, err := q.Dequeue(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueueCloseIdempotent(t *testing.T) {
	q := New(8, nil)
	q.Close()
	q.Close()
	assert.True(t, q.Closed())
}

func TestQueueCloseWithError(t *testing.T) {
	q := New(8, nil)
	q.CloseWithError(assert.AnError)

	_, err := q.Dequeue(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.ErrorIs(t, q.Err(), assert.AnError)
}

func TestTapReceivesOnlyFutureEvents(t *testing.T) {
	q := New(8, nil)
	defer q.Close()

	q.Enqueue(testMessage("before"))
	tap := q.Tap()
	q.Enqueue(testMessage("after"))

	ctx := context.Background()

	ev, err := tap.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "after", ev.(*a2a.Message).MessageID)

	// Parent still sees both.
	ev, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "before", ev.(*a2a.Message).MessageID)
	ev, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "after", ev.(*a2a.Message).MessageID)
}

func TestTapClosesWithParent(t *testing.T) {
	q := New(8, nil)
	tap := q.Tap()

	q.CloseWithError(assert.AnError)

	assert.True(t, tap.Closed())
	assert.ErrorIs(t, tap.Err(), assert.AnError)
}

func TestTapOfClosedQueueIsClosed(t *testing.T) {
	q := New(8, nil)
	q.Close()

	tap := q.Tap()
	assert.True(t, tap.Closed())
}

func TestTapCloseDoesNotAffectParent(t *testing.T) {
	q := New(8, nil)
	defer q.Close()

	tap := q.Tap()
	tap.Close()

	assert.False(t, q.Closed())

	// Enqueue after the tap is gone must still work on the parent.
	q.Enqueue(testMessage("m1"))
	ev, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "m1", ev.(*a2a.Message).MessageID)
}

func TestWaitForPoller(t *testing.T) {
	q := New(8, nil)
	defer q.Close()

	// Before any Dequeue the handshake times out.
	err := q.WaitForPoller(context.Background(), 20*time.Millisecond)
	assert.Error(t, err)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		q.Dequeue(ctx) //nolint:errcheck
	}()

	err = q.WaitForPoller(context.Background(), time.Second)
	assert.NoError(t, err)
}

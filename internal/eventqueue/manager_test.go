package eventqueue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/a2a/pkg/a2a"
)

func TestManagerCreateAndGet(t *testing.T) {
	m := NewManager(8, nil)

	q, err := m.Create("task-1")
	require.NoError(t, err)
	assert.Same(t, q, m.Get("task-1"))

	_, err = m.Create("task-1")
	assert.ErrorIs(t, err, ErrQueueExists)
}

func TestManagerAdd(t *testing.T) {
	m := NewManager(8, nil)
	q := New(8, nil)

	require.NoError(t, m.Add("task-1", q))
	assert.ErrorIs(t, m.Add("task-1", New(8, nil)), ErrQueueExists)
	assert.Same(t, q, m.Get("task-1"))
}

func TestManagerTap(t *testing.T) {
	m := NewManager(8, nil)

	_, err := m.Tap("missing")
	assert.ErrorIs(t, err, ErrNoQueue)

	root, err := m.Create("task-1")
	require.NoError(t, err)

	tap, err := m.Tap("task-1")
	require.NoError(t, err)
	assert.NotSame(t, root, tap)

	root.Enqueue(a2a.NewMessage(a2a.MessageRoleAgent, a2a.NewTextPart("hi")))
	ev, err := tap.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a2a.KindMessage, ev.EventKind())
}

func TestManagerCreateOrTap(t *testing.T) {
	m := NewManager(8, nil)

	q1 := m.CreateOrTap("task-1")
	require.NotNil(t, q1)
	assert.Same(t, q1, m.Get("task-1"))

	// Second call must tap, not replace.
	q2 := m.CreateOrTap("task-1")
	assert.NotSame(t, q1, q2)
	assert.Same(t, q1, m.Get("task-1"))
}

func TestManagerRekey(t *testing.T) {
	m := NewManager(8, nil)

	q, err := m.Create("temp")
	require.NoError(t, err)

	require.NoError(t, m.Rekey("temp", "task-1"))
	assert.Nil(t, m.Get("temp"))
	assert.Same(t, q, m.Get("task-1"))

	assert.ErrorIs(t, m.Rekey("missing", "x"), ErrNoQueue)

	_, err = m.Create("task-2")
	require.NoError(t, err)
	assert.ErrorIs(t, m.Rekey("task-2", "task-1"), ErrQueueExists)
}

func TestManagerClose(t *testing.T) {
	m := NewManager(8, nil)

	q, err := m.Create("task-1")
	require.NoError(t, err)

	require.NoError(t, m.Close("task-1"))
	assert.True(t, q.Closed())
	assert.Nil(t, m.Get("task-1"))

	assert.ErrorIs(t, m.Close("task-1"), ErrNoQueue)
}

func TestManagerRemoveLeavesQueueOpen(t *testing.T) {
	m := NewManager(8, nil)

	q, err := m.Create("task-1")
	require.NoError(t, err)

	m.Remove("task-1")
	assert.Nil(t, m.Get("task-1"))
	assert.False(t, q.Closed())
}

package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/a2a/internal/eventqueue"
	"github.com/kandev/a2a/internal/taskmanager"
	"github.com/kandev/a2a/internal/taskstore"
	"github.com/kandev/a2a/pkg/a2a"
)

func newAggregator(taskID string) (*Aggregator, *taskstore.MemoryStore) {
	store := taskstore.NewMemoryStore()
	m := taskmanager.New(taskID, "ctx-1", nil, store, nil)
	return New(m, nil), store
}

func TestConsumeAllTaskReply(t *testing.T) {
	agg, store := newAggregator("")
	q := eventqueue.New(8, nil)

	task := a2a.NewTask("T1", "ctx-1")
	task.Status.State = a2a.TaskStateCompleted
	task.Artifacts = []a2a.Artifact{{
		ArtifactID: "a1",
		Name:       "joke",
		Parts:      []a2a.Part{a2a.NewTextPart("Why... other side!")},
	}}
	q.Enqueue(task)
	q.Close()

	result, err := agg.ConsumeAll(context.Background(), NewConsumer(q))
	require.NoError(t, err)

	got, ok := result.(*a2a.Task)
	require.True(t, ok)
	assert.Equal(t, "T1", got.ID)
	assert.Equal(t, a2a.TaskStateCompleted, got.Status.State)
	require.Len(t, got.Artifacts, 1)
	assert.Equal(t, "joke", got.Artifacts[0].Name)

	stored, err := store.Get(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, stored.Status.State)
}

func TestConsumeAllMessageReply(t *testing.T) {
	agg, store := newAggregator("")
	q := eventqueue.New(8, nil)

	msg := a2a.NewMessage(a2a.MessageRoleAgent, a2a.NewTextPart("Why... other side!"))
	msg.MessageID = "msg-456"
	q.Enqueue(msg)

	result, err := agg.ConsumeAll(context.Background(), NewConsumer(q))
	require.NoError(t, err)

	got, ok := result.(*a2a.Message)
	require.True(t, ok)
	assert.Equal(t, "msg-456", got.MessageID)

	// No task was created.
	_, err = store.Get(context.Background(), "T1")
	assert.ErrorIs(t, err, a2a.ErrTaskNotFound)
}

func TestConsumeAllProducerError(t *testing.T) {
	agg, _ := newAggregator("")
	q := eventqueue.New(8, nil)
	q.CloseWithError(errors.New("executor exploded"))

	_, err := agg.ConsumeAll(context.Background(), NewConsumer(q))
	assert.ErrorIs(t, err, a2a.ErrInternal)
}

func TestConsumeAndBreakOnInterrupt(t *testing.T) {
	agg, _ := newAggregator("")
	q := eventqueue.New(8, nil)
	defer q.Close()

	q.Enqueue(a2a.NewTask("T1", "ctx-1"))
	q.Enqueue(a2a.NewStatusUpdateEvent("T1", "ctx-1", a2a.TaskStateInputRequired, false))

	result, interrupted, err := agg.ConsumeAndBreakOnInterrupt(context.Background(), NewConsumer(q), true)
	require.NoError(t, err)
	assert.True(t, interrupted)

	task, ok := result.(*a2a.Task)
	require.True(t, ok)
	assert.Equal(t, a2a.TaskStateInputRequired, task.Status.State)
}

func TestConsumeNonBlockingReturnsFirstSnapshot(t *testing.T) {
	agg, _ := newAggregator("")
	q := eventqueue.New(8, nil)
	defer q.Close()

	q.Enqueue(a2a.NewTask("T1", "ctx-1"))

	result, interrupted, err := agg.ConsumeAndBreakOnInterrupt(context.Background(), NewConsumer(q), false)
	require.NoError(t, err)
	assert.True(t, interrupted)
	assert.Equal(t, "T1", result.(*a2a.Task).ID)
}

func TestConsumeAndBreakRunsToCompletion(t *testing.T) {
	agg, _ := newAggregator("")
	q := eventqueue.New(8, nil)

	q.Enqueue(a2a.NewTask("T1", "ctx-1"))
	q.Enqueue(a2a.NewStatusUpdateEvent("T1", "ctx-1", a2a.TaskStateCompleted, true))

	result, interrupted, err := agg.ConsumeAndBreakOnInterrupt(context.Background(), NewConsumer(q), true)
	require.NoError(t, err)
	assert.False(t, interrupted)
	assert.Equal(t, a2a.TaskStateCompleted, result.(*a2a.Task).Status.State)
}

func TestConsumeAndEmitStreamsInOrder(t *testing.T) {
	agg, store := newAggregator("")
	q := eventqueue.New(16, nil)

	q.Enqueue(a2a.NewTask("T1", "ctx-1"))
	q.Enqueue(a2a.NewStatusUpdateEvent("T1", "ctx-1", a2a.TaskStateWorking, false))

	art := a2a.NewArtifactUpdateEvent("T1", "ctx-1", a2a.Artifact{
		ArtifactID: "a1",
		Parts:      []a2a.Part{a2a.NewTextPart("partial")},
	})
	q.Enqueue(art)

	more := a2a.NewArtifactUpdateEvent("T1", "ctx-1", a2a.Artifact{
		ArtifactID: "a1",
		Parts:      []a2a.Part{a2a.NewTextPart(" more")},
	})
	more.Append = true
	more.LastChunk = true
	q.Enqueue(more)

	q.Enqueue(a2a.NewStatusUpdateEvent("T1", "ctx-1", a2a.TaskStateCompleted, true))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var kinds []string
	for item := range agg.ConsumeAndEmit(ctx, NewConsumer(q)) {
		require.NoError(t, item.Err)
		kinds = append(kinds, item.Event.EventKind())
	}
	assert.Equal(t, []string{
		a2a.KindTask,
		a2a.KindStatusUpdate,
		a2a.KindArtifactUpdate,
		a2a.KindArtifactUpdate,
		a2a.KindStatusUpdate,
	}, kinds)

	stored, err := store.Get(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, stored.Status.State)
	require.Len(t, stored.Artifacts, 1)
	require.Len(t, stored.Artifacts[0].Parts, 2)
	assert.Equal(t, "partial", stored.Artifacts[0].Parts[0].(a2a.TextPart).Text)
	assert.Equal(t, " more", stored.Artifacts[0].Parts[1].(a2a.TextPart).Text)
}

func TestCurrentResultDuringStream(t *testing.T) {
	agg, _ := newAggregator("T1")
	q := eventqueue.New(8, nil)
	defer q.Close()

	q.Enqueue(a2a.NewTask("T1", "ctx-1"))

	c := NewConsumer(q)
	event, err := c.ConsumeOne(context.Background())
	require.NoError(t, err)
	require.NoError(t, agg.process(context.Background(), event))

	result, err := agg.CurrentResult(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T1", result.(*a2a.Task).ID)
}

// Package handler implements the request handler at the center of the
// runtime: it dispatches protocol operations, orchestrates the producer
// (agent executor) and consumer (aggregator) sides of each call, and owns
// the per-task execution registry.
package handler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kandev/a2a/internal/aggregator"
	"github.com/kandev/a2a/internal/common/logger"
	"github.com/kandev/a2a/internal/eventqueue"
	"github.com/kandev/a2a/internal/push"
	"github.com/kandev/a2a/internal/taskmanager"
	"github.com/kandev/a2a/internal/taskstore"
	"github.com/kandev/a2a/pkg/a2a"
)

// execution tracks one running executor invocation.
type execution struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// defaultPollerStartTimeout bounds how long a producer waits for the first
// consumer poll before generating events anyway.
const defaultPollerStartTimeout = 10 * time.Second

// RequestHandler services all protocol operations. It is safe for
// concurrent use.
type RequestHandler struct {
	executor      AgentExecutor
	store         taskstore.Store
	queues        *eventqueue.Manager
	pushStore     push.ConfigStore
	pushSender    push.Sender
	pollerTimeout time.Duration
	log           *logger.Logger

	mu      sync.Mutex
	running map[string]*execution
}

// Option configures a RequestHandler.
type Option func(*RequestHandler)

// WithPushConfigStore installs the push notification config store. Without
// one, the pushNotificationConfig operations fail as unsupported.
func WithPushConfigStore(store push.ConfigStore) Option {
	return func(h *RequestHandler) { h.pushStore = store }
}

// WithPushSender installs the webhook sender fired on task snapshots.
func WithPushSender(sender push.Sender) Option {
	return func(h *RequestHandler) { h.pushSender = sender }
}

// WithPollerStartTimeout overrides the producer-side wait for the first
// consumer poll.
func WithPollerStartTimeout(d time.Duration) Option {
	return func(h *RequestHandler) {
		if d > 0 {
			h.pollerTimeout = d
		}
	}
}

// New creates a request handler.
func New(executor AgentExecutor, store taskstore.Store, queues *eventqueue.Manager, log *logger.Logger, opts ...Option) *RequestHandler {
	if log == nil {
		log = logger.Default()
	}
	h := &RequestHandler{
		executor:      executor,
		store:         store,
		queues:        queues,
		pollerTimeout: defaultPollerStartTimeout,
		log:           log.WithComponent("handler"),
		running:       make(map[string]*execution),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnGetTask returns the stored task, truncating history to the last
// historyLength entries when requested. The stored record is never
// mutated.
func (h *RequestHandler) OnGetTask(ctx context.Context, params a2a.TaskQueryParams) (*a2a.Task, error) {
	if params.ID == "" {
		return nil, a2a.InvalidParamsf("task id is required")
	}
	task, err := h.store.Get(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	if params.HistoryLength != nil {
		n := *params.HistoryLength
		switch {
		case n <= 0:
			task.History = []*a2a.Message{}
		case n < len(task.History):
			task.History = task.History[len(task.History)-n:]
		}
	}
	return task, nil
}

// OnCancelTask requests cancellation of a running task and returns the
// resulting terminal snapshot.
func (h *RequestHandler) OnCancelTask(ctx context.Context, params a2a.TaskIDParams) (*a2a.Task, error) {
	if params.ID == "" {
		return nil, a2a.InvalidParamsf("task id is required")
	}
	task, err := h.store.Get(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	if task.Status.State.Terminal() {
		return nil, a2a.ErrTaskNotCancelable
	}

	// Cancellation events go onto the live root queue so attached streams
	// observe the terminal frame; this call reads its own tap. Without a
	// live queue both sides share a private one.
	var produceQ, consumeQ *eventqueue.Queue
	if root := h.queues.Get(params.ID); root != nil {
		produceQ = root
		consumeQ = root.Tap()
	} else {
		produceQ = eventqueue.New(0, h.log)
		consumeQ = produceQ
	}

	rc := &RequestContext{TaskID: task.ID, ContextID: task.ContextID, Task: task}
	go func() {
		if cancelErr := h.executor.Cancel(context.WithoutCancel(ctx), rc, produceQ); cancelErr != nil {
			produceQ.CloseWithError(cancelErr)
			return
		}
		produceQ.Close()
	}()

	tm := taskmanager.New(task.ID, task.ContextID, nil, h.store, h.log)
	agg := aggregator.New(tm, h.log)
	result, err := agg.ConsumeAll(ctx, aggregator.NewConsumer(consumeQ))

	// Cancel the recorded execute future after the terminal state reached
	// the store, so a blocked send call wakes to the canceled snapshot.
	h.cancelRunning(params.ID)

	if err != nil {
		return nil, err
	}
	final, ok := result.(*a2a.Task)
	if !ok || final == nil {
		return nil, a2a.Internalf("cancellation produced no task result")
	}
	return final, nil
}

// OnMessageSend services message/send: it launches the executor and
// consumes its events until the task finishes or interrupts, returning the
// final Task or the agent's Message reply.
func (h *RequestHandler) OnMessageSend(ctx context.Context, params a2a.MessageSendParams) (a2a.Event, error) {
	setup, err := h.setupExecution(ctx, &params)
	if err != nil {
		return nil, err
	}

	agg := aggregator.New(setup.manager, h.log)
	agg.OnEvent(func(ctx context.Context, event a2a.Event) {
		if task, ok := event.(*a2a.Task); ok {
			h.finishKey(setup, task.ID)
			h.registerDeferredPushConfig(ctx, setup, task)
		}
	})
	result, interrupted, err := agg.ConsumeAndBreakOnInterrupt(ctx, aggregator.NewConsumer(setup.queue), params.Configuration.IsBlocking())
	if err != nil {
		go h.cleanupProducer(setup)
		return nil, err
	}

	if task, ok := result.(*a2a.Task); ok {
		if expected := params.Message.TaskID; expected != "" && task.ID != expected {
			go h.cleanupProducer(setup)
			return nil, a2a.Internalf("task id mismatch in agent response: got %q, expected %q", task.ID, expected)
		}
		h.notifyPush(ctx, task)
	}

	if interrupted {
		go h.cleanupProducer(setup)
	} else {
		h.cleanupProducer(setup)
	}
	return result, nil
}

// OnMessageSendStream services message/stream: the returned channel
// delivers every observed event until the stream terminates.
func (h *RequestHandler) OnMessageSendStream(ctx context.Context, params a2a.MessageSendParams) (<-chan aggregator.StreamItem, error) {
	setup, err := h.setupExecution(ctx, &params)
	if err != nil {
		return nil, err
	}

	agg := aggregator.New(setup.manager, h.log)
	agg.OnEvent(func(ctx context.Context, event a2a.Event) {
		if task, ok := event.(*a2a.Task); ok {
			h.finishKey(setup, task.ID)
			h.registerDeferredPushConfig(ctx, setup, task)
		}
		if h.pushSender != nil {
			if snapshot, err := setup.manager.GetTask(ctx); err == nil && snapshot != nil {
				h.notifyPush(ctx, snapshot)
			}
		}
	})
	items := agg.ConsumeAndEmit(ctx, aggregator.NewConsumer(setup.queue))
	return h.republish(ctx, setup, items), nil
}

// OnResubscribeToTask attaches a late subscriber to a running task's event
// stream. The task and its live queue must both exist.
func (h *RequestHandler) OnResubscribeToTask(ctx context.Context, params a2a.TaskIDParams) (<-chan aggregator.StreamItem, error) {
	if params.ID == "" {
		return nil, a2a.InvalidParamsf("task id is required")
	}
	task, err := h.store.Get(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	queue, err := h.queues.Tap(params.ID)
	if err != nil {
		// Nothing to resubscribe to.
		return nil, a2a.ErrTaskNotFound
	}

	tm := taskmanager.New(task.ID, task.ContextID, nil, h.store, h.log)
	agg := aggregator.New(tm, h.log)
	items := agg.ConsumeAndEmit(ctx, aggregator.NewConsumer(queue))
	return h.republish(ctx, &executionSetup{manager: tm, queue: queue}, items), nil
}

// OnSetTaskPushNotificationConfig registers a webhook for the task.
func (h *RequestHandler) OnSetTaskPushNotificationConfig(ctx context.Context, params a2a.TaskPushNotificationConfig) (a2a.TaskPushNotificationConfig, error) {
	if h.pushStore == nil {
		return a2a.TaskPushNotificationConfig{}, a2a.ErrPushNotificationNotSupported
	}
	if _, err := h.store.Get(ctx, params.TaskID); err != nil {
		return a2a.TaskPushNotificationConfig{}, err
	}
	saved, err := h.pushStore.Set(ctx, params.TaskID, params.PushNotificationConfig)
	if err != nil {
		return a2a.TaskPushNotificationConfig{}, err
	}
	return a2a.TaskPushNotificationConfig{TaskID: params.TaskID, PushNotificationConfig: saved}, nil
}

// OnGetTaskPushNotificationConfig returns one registered webhook config.
func (h *RequestHandler) OnGetTaskPushNotificationConfig(ctx context.Context, params a2a.GetTaskPushNotificationConfigParams) (a2a.TaskPushNotificationConfig, error) {
	if h.pushStore == nil {
		return a2a.TaskPushNotificationConfig{}, a2a.ErrPushNotificationNotSupported
	}
	if _, err := h.store.Get(ctx, params.ID); err != nil {
		return a2a.TaskPushNotificationConfig{}, err
	}
	cfg, err := h.pushStore.Get(ctx, params.ID, params.PushNotificationConfigID)
	if err != nil {
		return a2a.TaskPushNotificationConfig{}, err
	}
	return a2a.TaskPushNotificationConfig{TaskID: params.ID, PushNotificationConfig: cfg}, nil
}

// OnListTaskPushNotificationConfig returns all webhook configs for a task.
func (h *RequestHandler) OnListTaskPushNotificationConfig(ctx context.Context, params a2a.TaskIDParams) ([]a2a.TaskPushNotificationConfig, error) {
	if h.pushStore == nil {
		return nil, a2a.ErrPushNotificationNotSupported
	}
	if _, err := h.store.Get(ctx, params.ID); err != nil {
		return nil, err
	}
	configs, err := h.pushStore.List(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	result := make([]a2a.TaskPushNotificationConfig, 0, len(configs))
	for _, cfg := range configs {
		result = append(result, a2a.TaskPushNotificationConfig{TaskID: params.ID, PushNotificationConfig: cfg})
	}
	return result, nil
}

// OnDeleteTaskPushNotificationConfig removes one webhook config.
func (h *RequestHandler) OnDeleteTaskPushNotificationConfig(ctx context.Context, params a2a.DeleteTaskPushNotificationConfigParams) error {
	if h.pushStore == nil {
		return a2a.ErrPushNotificationNotSupported
	}
	if _, err := h.store.Get(ctx, params.ID); err != nil {
		return err
	}
	return h.pushStore.Delete(ctx, params.ID, params.PushNotificationConfigID)
}

// executionSetup carries the producer-side state of one send call.
type executionSetup struct {
	manager  *taskmanager.Manager
	queue    *eventqueue.Queue
	queueKey string
	exec     *execution
	params   *a2a.MessageSendParams
}

// setupExecution performs the shared init of message/send and
// message/stream: resolve the task, append the inbound message, register
// push config, create the queue, and launch the executor.
func (h *RequestHandler) setupExecution(ctx context.Context, params *a2a.MessageSendParams) (*executionSetup, error) {
	if params.Message == nil {
		return nil, a2a.InvalidParamsf("message is required")
	}
	if len(params.Message.Parts) == 0 {
		return nil, a2a.InvalidParamsf("message parts must not be empty")
	}
	msg := params.Message
	if msg.MessageID == "" {
		msg.MessageID = uuid.New().String()
	}

	tm := taskmanager.New(msg.TaskID, msg.ContextID, msg, h.store, h.log)
	task, err := tm.GetTask(ctx)
	if err != nil {
		return nil, err
	}
	if msg.TaskID != "" && task == nil {
		return nil, a2a.ErrTaskNotFound
	}
	if task != nil {
		if task.Status.State.Terminal() {
			return nil, a2a.InvalidParamsf("task %s is in terminal state %s", task.ID, task.Status.State)
		}
		task = tm.UpdateWithMessage(msg, task)
		if err := tm.Save(ctx, task); err != nil {
			return nil, err
		}
	}
	if params.Configuration != nil && params.Configuration.PushNotificationConfig != nil && h.pushStore != nil {
		if task != nil {
			if _, err := h.pushStore.Set(ctx, task.ID, *params.Configuration.PushNotificationConfig); err != nil {
				return nil, err
			}
		}
		// For new tasks the config is registered once the id is known.
	}

	// New tasks get a provisional queue key until the executor's first Task
	// event announces the real id.
	queueKey := tm.TaskID()
	if queueKey == "" {
		queueKey = "pending-" + uuid.New().String()
	}
	queue := h.queues.CreateOrTap(queueKey)

	rc := &RequestContext{
		TaskID:    tm.TaskID(),
		ContextID: tm.ContextID(),
		Task:      task,
		Message:   msg,
		Params:    params,
	}

	// The producer outlives the request: interrupts and client disconnects
	// must not cancel a running executor.
	execCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	exec := &execution{cancel: cancel, done: make(chan struct{})}

	h.mu.Lock()
	h.running[queueKey] = exec
	h.mu.Unlock()

	go func() {
		defer close(exec.done)
		// Hold the executor until the consumer side polls once, so no
		// events pile up before anyone is attached.
		if err := queue.WaitForPoller(execCtx, h.pollerTimeout); err != nil {
			h.log.WithError(err).Debug("starting executor without consumer handshake")
		}
		err := h.executor.Execute(execCtx, rc, queue)
		switch {
		case err == nil, errors.Is(err, context.Canceled):
			queue.Close()
		default:
			h.log.WithError(err).WithTaskID(rc.TaskID).Error("agent execution failed")
			queue.CloseWithError(err)
		}
	}()

	return &executionSetup{manager: tm, queue: queue, queueKey: queueKey, exec: exec, params: params}, nil
}

// republish forwards stream items to the subscriber. Cleanup runs once the
// producer completes; a subscriber that stops reading (client disconnect)
// ends forwarding without touching the producer.
func (h *RequestHandler) republish(ctx context.Context, setup *executionSetup, items <-chan aggregator.StreamItem) <-chan aggregator.StreamItem {
	out := make(chan aggregator.StreamItem)
	go func() {
		defer close(out)
		if setup.exec != nil {
			defer func() { go h.cleanupProducer(setup) }()
		}
		for item := range items {
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// registerDeferredPushConfig registers a send-time push config once a new
// task's id is known.
func (h *RequestHandler) registerDeferredPushConfig(ctx context.Context, setup *executionSetup, task *a2a.Task) {
	if h.pushStore == nil || setup.manager == nil {
		return
	}
	params := setup.params
	if params == nil || params.Configuration == nil || params.Configuration.PushNotificationConfig == nil {
		return
	}
	if params.Message != nil && params.Message.TaskID != "" {
		// Already registered during setup.
		return
	}
	if _, err := h.pushStore.Set(ctx, task.ID, *params.Configuration.PushNotificationConfig); err != nil {
		h.log.WithError(err).WithTaskID(task.ID).Warn("failed to register push notification config")
	}
}

// notifyPush fires the webhook sender best-effort.
func (h *RequestHandler) notifyPush(ctx context.Context, task *a2a.Task) {
	if h.pushSender == nil || task == nil {
		return
	}
	h.pushSender.Send(ctx, task)
}

// finishKey moves the queue and the running-execution entry from the
// provisional key to the final task id.
func (h *RequestHandler) finishKey(setup *executionSetup, taskID string) {
	if taskID == "" || setup.queueKey == "" || setup.queueKey == taskID {
		return
	}
	if err := h.queues.Rekey(setup.queueKey, taskID); err != nil {
		if errors.Is(err, eventqueue.ErrQueueExists) {
			h.log.Warn("queue already registered for task", zap.String("task_id", taskID))
		}
	}
	h.mu.Lock()
	if exec, ok := h.running[setup.queueKey]; ok {
		delete(h.running, setup.queueKey)
		h.running[taskID] = exec
	}
	h.mu.Unlock()
	setup.queueKey = taskID
}

// cleanupProducer waits for the executor to finish, then closes the queue
// and drops the execution entry. Safe to call more than once.
func (h *RequestHandler) cleanupProducer(setup *executionSetup) {
	if setup.exec == nil {
		return
	}
	<-setup.exec.done

	h.mu.Lock()
	delete(h.running, setup.queueKey)
	h.mu.Unlock()

	if err := h.queues.Close(setup.queueKey); err != nil && !errors.Is(err, eventqueue.ErrNoQueue) {
		h.log.WithError(err).Warn("failed to close task queue")
	}
}

// cancelRunning cancels the recorded execute future for the task, if any.
func (h *RequestHandler) cancelRunning(taskID string) {
	h.mu.Lock()
	exec, ok := h.running[taskID]
	h.mu.Unlock()
	if ok {
		exec.cancel()
	}
}

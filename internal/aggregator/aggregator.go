package aggregator

import (
	"context"
	"errors"
	"sync"

	"github.com/kandev/a2a/internal/common/logger"
	"github.com/kandev/a2a/internal/taskmanager"
	"github.com/kandev/a2a/pkg/a2a"
)

// StreamItem is one element of a republished event stream. Err is set on
// the last item when the stream terminates abnormally.
type StreamItem struct {
	Event a2a.Event
	Err   error
}

// Aggregator folds events into the task record through a task manager and
// tracks whether the agent answered with a bare message instead.
type Aggregator struct {
	manager *taskmanager.Manager
	log     *logger.Logger
	onEvent func(ctx context.Context, event a2a.Event)

	mu      sync.RWMutex
	message *a2a.Message
}

// New creates an aggregator bound to one request's task manager.
func New(manager *taskmanager.Manager, log *logger.Logger) *Aggregator {
	if log == nil {
		log = logger.Default()
	}
	return &Aggregator{manager: manager, log: log.WithComponent("aggregator")}
}

// OnEvent registers a hook invoked after each successful fold, before the
// event is handed to the caller. The request handler uses it to rekey
// queues and fire push notifications at event-observation time.
func (a *Aggregator) OnEvent(fn func(ctx context.Context, event a2a.Event)) {
	a.onEvent = fn
}

// process folds one event. Messages are recorded on the aggregator; task
// events go through the manager into the store.
func (a *Aggregator) process(ctx context.Context, event a2a.Event) error {
	if msg, ok := event.(*a2a.Message); ok {
		a.mu.Lock()
		a.message = msg
		a.mu.Unlock()
	} else if _, err := a.manager.SaveTaskEvent(ctx, event); err != nil {
		return err
	}
	if a.onEvent != nil {
		a.onEvent(ctx, event)
	}
	return nil
}

// CurrentResult returns the latest folded result: the agent's bare message
// when one was observed, otherwise the task snapshot from the store.
func (a *Aggregator) CurrentResult(ctx context.Context) (a2a.Event, error) {
	a.mu.RLock()
	msg := a.message
	a.mu.RUnlock()
	if msg != nil {
		return msg, nil
	}
	task, err := a.manager.GetTask(ctx)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, nil
	}
	return task, nil
}

// ConsumeAll drains the consumer to completion and returns the final
// result: the last task snapshot, or the agent's message reply.
func (a *Aggregator) ConsumeAll(ctx context.Context, c *Consumer) (a2a.Event, error) {
	for {
		event, err := c.ConsumeOne(ctx)
		if err != nil {
			if errors.Is(err, ErrDone) {
				return a.CurrentResult(ctx)
			}
			return nil, err
		}
		if err := a.process(ctx, event); err != nil {
			return nil, err
		}
		if _, ok := event.(*a2a.Message); ok {
			return event, nil
		}
		if isFinalEvent(event) {
			return a.CurrentResult(ctx)
		}
	}
}

// ConsumeAndBreakOnInterrupt drains the consumer like ConsumeAll but stops
// early when the task enters an interrupt state (input-required or
// auth-required). With blocking=false it stops as soon as a task snapshot
// exists, so the caller can hand back an id while work continues.
// interrupted=true means the executor is still running and the caller
// should return the current state.
func (a *Aggregator) ConsumeAndBreakOnInterrupt(ctx context.Context, c *Consumer, blocking bool) (a2a.Event, bool, error) {
	for {
		event, err := c.ConsumeOne(ctx)
		if err != nil {
			if errors.Is(err, ErrDone) {
				result, resErr := a.CurrentResult(ctx)
				return result, false, resErr
			}
			return nil, false, err
		}
		if err := a.process(ctx, event); err != nil {
			return nil, false, err
		}
		if _, ok := event.(*a2a.Message); ok {
			return event, false, nil
		}
		if isInterruptEvent(event) {
			result, resErr := a.CurrentResult(ctx)
			return result, true, resErr
		}
		if isFinalEvent(event) {
			result, resErr := a.CurrentResult(ctx)
			return result, false, resErr
		}
		if !blocking {
			result, resErr := a.CurrentResult(ctx)
			if resErr != nil {
				return nil, false, resErr
			}
			if task, ok := result.(*a2a.Task); ok && task != nil {
				return task, true, nil
			}
		}
	}
}

// ConsumeAndEmit republishes events as they arrive while folding each one
// into the task record, so CurrentResult stays queryable during the stream.
// The returned channel closes when the sequence ends; an abnormal end is
// delivered as a final item with Err set.
func (a *Aggregator) ConsumeAndEmit(ctx context.Context, c *Consumer) <-chan StreamItem {
	out := make(chan StreamItem)
	go func() {
		defer close(out)
		for {
			event, err := c.ConsumeOne(ctx)
			if err != nil {
				if !errors.Is(err, ErrDone) && !errors.Is(err, context.Canceled) {
					select {
					case out <- StreamItem{Err: err}:
					case <-ctx.Done():
					}
				}
				return
			}
			if err := a.process(ctx, event); err != nil {
				a.log.WithError(err).Error("failed to fold event into task")
				select {
				case out <- StreamItem{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case out <- StreamItem{Event: event}:
			case <-ctx.Done():
				return
			}
			if isFinalEvent(event) {
				return
			}
		}
	}()
	return out
}

package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// TaskHook is a periodic, non-blocking hook of a buffer or peripheral.
// cirbuf.Buffer implements it.
type TaskHook interface {
	Task(now time.Time)
}

// Poller is polled once per loop iteration from the consumer context.
type Poller interface {
	Poll(PollContext) error
}

// PollFunc is the func form of Poller.
type PollFunc func(PollContext) error

// Poll implements Poller.
func (f PollFunc) Poll(ctx PollContext) error {
	return f(ctx)
}

// HookPoller adapts a TaskHook to a Poller.
func HookPoller(h TaskHook) Poller {
	return PollFunc(func(ctx PollContext) error {
		h.Task(ctx.Time())
		return nil
	})
}

// PollContext provides the context of the current loop iteration.
type PollContext interface {
	// Context retrieves context.Context.
	Context() context.Context
	// Time is the time the iteration started.
	Time() time.Time
	// PriorityLevel gets the current priority level.
	PriorityLevel() int

	LoopControl
}

// PriorityLevels is the total levels of priorities.
const PriorityLevels int = 16

// Predefined priority levels.
const (
	PrLvTop    int = 0
	PrLvHigh   int = 4
	PrLvNormal int = 8
	PrLvLow    int = 12
	PrLvIdle   int = PriorityLevels - 1

	// PrLvBuffer is for buffer housekeeping (partial timeouts).
	PrLvBuffer = PrLvHigh
	// PrLvDecode is for parsers and decoders draining receive buffers.
	PrLvDecode = PrLvNormal
	// PrLvDispatch is for pumps forwarding decoded packets.
	PrLvDispatch = PrLvLow
)

// LoopControl exposes access to the polling loop.
type LoopControl interface {
	// PostRunAt injects one-shot pollers run after the pollers of the
	// specified priority level.
	PostRunAt(priorityLevel int, pollers ...Poller)
	// TriggerNext schedules the next iteration to be executed
	// immediately after the current iteration.
	TriggerNext()
}

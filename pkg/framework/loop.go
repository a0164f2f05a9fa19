package framework

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Loop polls buffer hooks, decoders and pumps at fixed priority levels.
// All pollers run in the loop goroutine which is the consumer context of
// the buffers they touch.
type Loop struct {
	Interval time.Duration

	levels  [PriorityLevels]pollerList
	runners []Runnable

	wakeUpCh chan struct{}
	once     sync.Once
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type pollerList struct {
	pollers   []Poller
	postHooks []Poller
	lock      sync.Mutex
}

type loopIteration struct {
	*Loop
	ctx           context.Context
	time          time.Time
	priorityLevel int
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Interval: 10 * time.Millisecond}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddPoller registers pollers at a priority level. Pollers implementing
// Runnable are also started by Run.
func (l *Loop) AddPoller(priorityLevel int, pollers ...Poller) *Loop {
	lst := &l.levels[priorityLevel]
	lst.pollers = append(lst.pollers, pollers...)
	for _, p := range pollers {
		if runner, ok := p.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddHooks registers TaskHooks at PrLvBuffer.
func (l *Loop) AddHooks(hooks ...TaskHook) *Loop {
	for _, h := range hooks {
		l.AddPoller(PrLvBuffer, HookPoller(h))
	}
	return l
}

// AddRunnable adds Runnable implementions started with the loop.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

func (l *Loop) init() {
	l.once.Do(func() {
		l.wakeUpCh = make(chan struct{}, 1)
	})
}

// Run implements Runnable. It returns when ctx is canceled or when a
// Runnable added to the loop fails.
func (l *Loop) Run(ctx context.Context) error {
	l.init()
	runner := NewRunnerWith(ctx)
	runner.StopOnError = true
	runner.Go(l.runners...)

	interval := l.Interval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-runner.Done():
			if err := runner.Wait(); err != nil {
				return err
			}
			return ctx.Err()
		case now := <-ticker.C:
			l.RunOnce(ctx, now)
		case <-l.wakeUpCh:
			l.RunOnce(ctx, time.Now())
		}
	}
}

// RunOnce runs a single iteration of all priority levels.
func (l *Loop) RunOnce(ctx context.Context, now time.Time) {
	l.init()
	iter := &loopIteration{Loop: l, ctx: ctx, time: now}
	for i := 0; i < PriorityLevels; i++ {
		iter.priorityLevel = i
		l.levels[i].run(iter)
	}
}

// PostRunAt implements LoopControl.
func (l *Loop) PostRunAt(priorityLevel int, pollers ...Poller) {
	lst := &l.levels[priorityLevel]
	lst.lock.Lock()
	lst.postHooks = append(lst.postHooks, pollers...)
	lst.lock.Unlock()
}

// TriggerNext implements LoopControl.
func (l *Loop) TriggerNext() {
	l.init()
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

func (t *loopIteration) Context() context.Context {
	return t.ctx
}

func (t *loopIteration) Time() time.Time {
	return t.time
}

func (t *loopIteration) PriorityLevel() int {
	return t.priorityLevel
}

func (c *pollerList) run(iter *loopIteration) {
	runPollers(iter, c.pollers)
	c.lock.Lock()
	hooks := c.postHooks
	c.postHooks = nil
	c.lock.Unlock()
	runPollers(iter, hooks)
}

func runPollers(iter *loopIteration, pollers []Poller) {
	for _, p := range pollers {
		if err := p.Poll(iter); err != nil {
			glog.Errorf("poller error at level %d: %v", iter.priorityLevel, err)
		}
	}
}

// Package runloop provides the single-owner execution context for the
// connection engine. All state mutation (queue drains, status transitions,
// delegate notifications, timer firings) happens on one loop goroutine;
// transport callbacks and timers are posted as discrete units of work, never
// executed inline.
package runloop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/revolverobotics/gokubi/internal/groutine"
)

// DefaultQueueDepth is the buffer size of the task channel. Posting beyond
// this depth blocks the poster until the loop catches up.
const DefaultQueueDepth = 256

// Timer is a handle for a delayed task scheduled with PostDelayed.
type Timer struct {
	timer    *time.Timer
	canceled atomic.Bool
}

// Cancel prevents the task from running if it has not fired yet. It returns
// true if the task was prevented from running. A task that already started
// executing on the loop cannot be stopped.
func (t *Timer) Cancel() bool {
	if t == nil {
		return false
	}
	stopped := t.timer.Stop()
	// The underlying timer may have fired and posted the task already; the
	// posted closure re-checks this flag on the loop goroutine.
	t.canceled.Store(true)
	return stopped
}

// Loop executes posted tasks sequentially on a single goroutine.
type Loop struct {
	tasks chan func()

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// New creates a stopped Loop. Call Start to begin executing tasks.
func New() *Loop {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		tasks:  make(chan func(), DefaultQueueDepth),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start launches the loop goroutine. Subsequent calls are no-ops.
func (l *Loop) Start() {
	l.startOnce.Do(func() {
		groutine.Go(l.ctx, "runloop", func(ctx context.Context) {
			defer close(l.done)
			for {
				select {
				case fn := <-l.tasks:
					fn()
				case <-ctx.Done():
					// Drain what is already queued so posted completions
					// are not silently dropped mid-teardown.
					for {
						select {
						case fn := <-l.tasks:
							fn()
						default:
							return
						}
					}
				}
			}
		})
	})
}

// Stop shuts the loop down after draining already-posted tasks and waits for
// the loop goroutine to exit.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.cancel()
		<-l.done
	})
}

// Post enqueues fn for execution on the loop goroutine. Tasks run in
// submission order. Posting to a stopped loop drops the task.
func (l *Loop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.ctx.Done():
	}
}

// PostDelayed schedules fn to be posted onto the loop after delay. The
// returned Timer can cancel the task before it runs.
func (l *Loop) PostDelayed(delay time.Duration, fn func()) *Timer {
	t := &Timer{}
	t.timer = time.AfterFunc(delay, func() {
		l.Post(func() {
			if t.canceled.Load() {
				return
			}
			fn()
		})
	})
	return t
}

// Sync posts a barrier task and waits for it to execute. Because the loop is
// FIFO, returning from Sync guarantees every task posted before the call has
// completed. Intended for tests and orderly shutdown paths.
func (l *Loop) Sync() {
	ch := make(chan struct{})
	l.Post(func() { close(ch) })
	select {
	case <-ch:
	case <-l.ctx.Done():
	}
}

// Package loop provides the single-threaded event loop every state machine
// in xfer runs on. Asynchronous work (stream I/O, platform confirmations)
// happens on other goroutines but always completes by posting back to the
// loop, so state is only ever mutated from one goroutine.
package loop

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler is the view of the event loop that components depend on.
type Scheduler interface {
	// Post queues fn to run on the loop goroutine. Safe to call from any goroutine.
	Post(fn func())
	// AfterFunc runs fn on the loop after d has elapsed.
	AfterFunc(d time.Duration, fn func()) Timer
	// Now returns the loop's notion of the current time.
	Now() time.Time
}

// Timer is a pending AfterFunc callback.
type Timer interface {
	// Stop cancels the timer. It reports whether the call stopped the timer
	// before it fired.
	Stop() bool
}

// Loop is the production Scheduler backed by a goroutine and wall-clock timers.
// Its queue is unbounded, so a task may post to its own loop any number of
// times.
type Loop struct {
	wake chan struct{}

	mu      sync.Mutex
	tasks   []func()
	stopped bool
}

// DefaultQueueSize is the initial queue capacity used by New when size <= 0.
const DefaultQueueSize = 256

// New returns a Loop. Call Run to start processing tasks.
func New(size int) *Loop {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Loop{
		wake:  make(chan struct{}, 1),
		tasks: make([]func(), 0, size),
	}
}

// Run processes tasks until ctx is cancelled. Tasks still queued when ctx
// ends are discarded.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if fn, ok := l.next(); ok {
			l.run(fn)
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.tasks) == 0 {
		return nil, false
	}
	fn := l.tasks[0]
	l.tasks[0] = nil
	l.tasks = l.tasks[1:]
	return fn, true
}

func (l *Loop) stop() {
	l.mu.Lock()
	l.stopped = true
	if n := len(l.tasks); n > 0 {
		slog.Debug("loop stopped, discarding tasks", "count", n)
	}
	l.tasks = nil
	l.mu.Unlock()
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("loop task panicked", "panic", r)
		}
	}()
	fn()
}

// Post implements Scheduler. It never blocks. Posting to a stopped loop
// drops the task.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		slog.Debug("loop stopped, dropping task")
		return
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// AfterFunc implements Scheduler.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &wallTimer{}
	t.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.cancelled() {
				return
			}
			fn()
		})
	})
	return t
}

// Now implements Scheduler.
func (l *Loop) Now() time.Time { return time.Now() }

type wallTimer struct {
	t *time.Timer

	mu   sync.Mutex
	dead bool
}

func (t *wallTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dead {
		return false
	}
	t.dead = true
	// The closure may already be queued on the loop; dead guards that case.
	t.t.Stop()
	return true
}

func (t *wallTimer) cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dead {
		return true
	}
	t.dead = true
	return false
}

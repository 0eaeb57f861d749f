package loop

import (
	"container/heap"
	"sync"
	"time"
)

// Manual is a deterministic Scheduler driven by the caller. Time only moves
// when Advance is called and tasks only run inside Drain, Advance or
// RunUntil. Other goroutines may Post to it.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	tasks  []func()
	timers timerHeap
	seq    uint64
	wake   chan struct{}
}

// NewManual returns a Manual loop whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start, wake: make(chan struct{}, 1)}
}

// Post implements Scheduler.
func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	m.tasks = append(m.tasks, fn)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// AfterFunc implements Scheduler.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{m: m, when: m.now.Add(d), seq: m.seq, fn: fn}
	heap.Push(&m.timers, t)
	return t
}

// Now implements Scheduler.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of queued tasks and armed timers.
func (m *Manual) Pending() (tasks, timers int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks), m.timers.Len()
}

// Drain runs queued tasks, including ones they queue, until none remain.
func (m *Manual) Drain() {
	for {
		m.mu.Lock()
		if len(m.tasks) == 0 {
			m.mu.Unlock()
			return
		}
		fn := m.tasks[0]
		m.tasks = m.tasks[1:]
		m.mu.Unlock()
		fn()
	}
}

// Advance moves the clock forward by d, firing due timers in deadline order
// and draining the task queue after each one.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()
	m.Drain()
	for {
		m.mu.Lock()
		if m.timers.Len() == 0 || m.timers[0].when.After(target) {
			m.now = target
			m.mu.Unlock()
			m.Drain()
			return
		}
		t := heap.Pop(&m.timers).(*manualTimer)
		if t.when.After(m.now) {
			m.now = t.when
		}
		t.fired = true
		m.mu.Unlock()
		t.fn()
		m.Drain()
	}
}

// RunUntil drains tasks as they are posted until done is closed or timeout
// elapses. It reports whether done closed. The virtual clock does not move.
func (m *Manual) RunUntil(done <-chan struct{}, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		m.Drain()
		select {
		case <-done:
			m.Drain()
			return true
		default:
		}
		select {
		case <-done:
			m.Drain()
			return true
		case <-m.wake:
		case <-deadline.C:
			return false
		}
	}
}

type manualTimer struct {
	m     *Manual
	when  time.Time
	seq   uint64
	fn    func()
	index int
	fired bool
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.fired || t.index < 0 {
		return false
	}
	heap.Remove(&t.m.timers, t.index)
	return true
}

type timerHeap []*manualTimer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	t := x.(*manualTimer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

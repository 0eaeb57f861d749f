package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManualRunsTimersInDeadlineOrder(t *testing.T) {
	m := NewManual(epoch)
	var got []string
	m.AfterFunc(30*time.Millisecond, func() { got = append(got, "c") })
	m.AfterFunc(10*time.Millisecond, func() { got = append(got, "a") })
	m.AfterFunc(10*time.Millisecond, func() { got = append(got, "b") })

	m.Advance(5 * time.Millisecond)
	assert.Empty(t, got)

	m.Advance(25 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, epoch.Add(30*time.Millisecond), m.Now())
}

func TestManualTimerRearmsFromFiringTime(t *testing.T) {
	m := NewManual(epoch)
	var fires []time.Duration
	var tick func()
	tick = func() {
		fires = append(fires, m.Now().Sub(epoch))
		m.AfterFunc(50*time.Millisecond, tick)
	}
	m.AfterFunc(50*time.Millisecond, tick)

	m.Advance(220 * time.Millisecond)
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 150 * time.Millisecond, 200 * time.Millisecond}, fires)
}

func TestManualStop(t *testing.T) {
	m := NewManual(epoch)
	fired := false
	tm := m.AfterFunc(time.Second, func() { fired = true })
	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	m.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestManualRunUntilWaitsForCrossGoroutinePosts(t *testing.T) {
	m := NewManual(epoch)
	f := NewFuture[int]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		m.Post(func() { f.Resolve(7) })
	}()
	require.True(t, m.RunUntil(f.Done(), time.Second))
	v, err := f.Result()
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestFutureCompletesOnce(t *testing.T) {
	f := NewFuture[string]()
	assert.False(t, f.Completed())
	assert.True(t, f.Resolve("first"))
	assert.False(t, f.Resolve("second"))
	assert.False(t, f.Reject(errors.New("late")))

	v, err := f.Result()
	require.NoError(t, err)
	assert.Equal(t, "first", v)
}

func TestFutureWaitHonoursContext(t *testing.T) {
	f := NewFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	g := Failed[int](errors.New("boom"))
	_, err = g.Wait(context.Background())
	assert.EqualError(t, err, "boom")
}

func TestThenRunsOnScheduler(t *testing.T) {
	m := NewManual(epoch)
	f := NewFuture[int]()
	done := make(chan struct{})
	var got int
	Then(m, f, func(v int, err error) {
		got = v
		close(done)
	})
	f.Resolve(3)
	require.True(t, m.RunUntil(done, time.Second))
	assert.Equal(t, 3, got)
}

func TestLoopRunsPostedTasksSequentially(t *testing.T) {
	l := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Run(ctx) }()

	var (
		mu  sync.Mutex
		seq []int
		wg  sync.WaitGroup
	)
	for i := range 50 {
		wg.Add(1)
		l.Post(func() {
			defer wg.Done()
			mu.Lock()
			seq = append(seq, i)
			mu.Unlock()
		})
	}
	wg.Wait()
	require.Len(t, seq, 50)
	for i, v := range seq {
		assert.Equal(t, i, v)
	}
}

func TestLoopAfterFuncAndStop(t *testing.T) {
	l := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Run(ctx) }()

	fired := make(chan struct{})
	l.AfterFunc(5*time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	stopped := l.AfterFunc(20*time.Millisecond, func() { t.Error("stopped timer fired") })
	assert.True(t, stopped.Stop())
	time.Sleep(40 * time.Millisecond)
}

func TestLoopSurvivesPanickingTask(t *testing.T) {
	l := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Run(ctx) }()

	l.Post(func() { panic("bad task") })
	done := make(chan struct{})
	l.Post(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop stopped after panic")
	}
}

func TestLoopTaskPostsBeyondInitialCapacity(t *testing.T) {
	l := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Run(ctx) }()

	const n = 1000
	ran := 0
	done := make(chan struct{})
	l.Post(func() {
		for range n {
			l.Post(func() { ran++ })
		}
		l.Post(func() { close(done) })
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop blocked on its own posts")
	}
	assert.Equal(t, n, ran)
}

func TestLoopPostAfterRunReturns(t *testing.T) {
	l := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	exited := make(chan error, 1)
	go func() { exited <- l.Run(ctx) }()
	cancel()
	require.ErrorIs(t, <-exited, context.Canceled)

	posted := make(chan struct{})
	go func() {
		for range DefaultQueueSize * 2 {
			l.Post(func() { t.Error("task ran after stop") })
		}
		close(posted)
	}()
	select {
	case <-posted:
	case <-time.After(time.Second):
		t.Fatal("Post blocked on a stopped loop")
	}
}

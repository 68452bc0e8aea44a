package poller

import (
	"context"
	"sync"
	"time"
)

// TaskFunc is run once per tick. seq increases by one for every run of the
// same task, starting at 1.
type TaskFunc func(ctx context.Context, seq uint64)

// Task is the handle of a repeating schedule started by Every.
type Task struct {
	fn     TaskFunc
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	cancelled bool
	seq       uint64
	runs      sync.WaitGroup
	loopDone  chan struct{}
}

// Every runs fn every period until the returned task is cancelled. Each run
// gets its own goroutine, so a slow run overlaps with the next one.
func Every(period time.Duration, fn TaskFunc) *Task {
	ticker := time.NewTicker(period)
	return start(ticker.C, ticker.Stop, fn)
}

func start(ticks <-chan time.Time, stopTicks func(), fn TaskFunc) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{
		fn:       fn,
		ctx:      ctx,
		cancel:   cancel,
		loopDone: make(chan struct{}),
	}
	go t.loop(ticks, stopTicks)
	return t
}

func (t *Task) loop(ticks <-chan time.Time, stopTicks func()) {
	defer close(t.loopDone)
	defer stopTicks()

	for {
		select {
		case <-ticks:
			if !t.Trigger() {
				return
			}
		case <-t.ctx.Done():
			return
		}
	}
}

// Trigger runs fn once right away, outside the tick cadence. It reports
// false when the task has already been cancelled.
func (t *Task) Trigger() bool {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return false
	}
	t.seq++
	seq := t.seq
	t.runs.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.runs.Done()
		t.fn(t.ctx, seq)
	}()
	return true
}

// Cancel stops the schedule. Runs already in flight see a cancelled context
// and Cancelled() == true. Cancel never blocks and may be called repeatedly.
func (t *Task) Cancel() {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()
	t.cancel()
}

// Cancelled reports whether Cancel has been called.
func (t *Task) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Wait blocks until the tick loop has exited and every in-flight run returned.
// Call it after Cancel.
func (t *Task) Wait() {
	<-t.loopDone
	t.runs.Wait()
}

package persist

import (
	"context"
	"sync"
	"time"
)

// debouncer runs the last triggered task once no new trigger arrived for delay.
// Tasks never overlap and run in trigger order.
type debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending func(ctx context.Context) error

	// held while a task runs
	runMu sync.Mutex
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay}
}

// Trigger arms the timer with fn, replacing any task that has not fired yet.
// It reports whether a pending task was superseded.
func (d *debouncer) Trigger(fn func(ctx context.Context) error) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	superseded := d.pending != nil
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	d.pending = fn

	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(gen)
	})
	return superseded
}

// Flush runs the pending task synchronously with ctx and returns its error.
// It reports whether there was one.
func (d *debouncer) Flush(ctx context.Context) (bool, error) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.mu.Lock()
	fn := d.take()
	d.mu.Unlock()

	if fn == nil {
		return false, nil
	}
	return true, fn(ctx)
}

// Stop drops the pending task without running it.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.take()
}

// Pending is true while a task waits for its window to elapse
func (d *debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

func (d *debouncer) fire(gen uint64) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.mu.Lock()
	if gen != d.gen {
		// superseded by a later trigger or taken by Flush/Stop
		d.mu.Unlock()
		return
	}
	fn := d.take()
	d.mu.Unlock()

	if fn != nil {
		// the task reports its own failures
		_ = fn(context.Background())
	}
}

// take must be called with mu held
func (d *debouncer) take() func(ctx context.Context) error {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	fn := d.pending
	d.pending = nil
	return fn
}

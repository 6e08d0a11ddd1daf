package form

import (
	"context"
	"sync"
	"time"
)

// DefaultDebounceDelay is the pause after the last change before regenerating
const DefaultDebounceDelay = 400 * time.Millisecond

// Debouncer runs only the latest scheduled task once changes pause.
// Scheduling a new task stops the pending timer and cancels the context of
// a task that is already running; tasks never run concurrently.
type Debouncer struct {
	delay time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	cancel context.CancelFunc
	gen    uint64

	run sync.Mutex
}

// NewDebouncer creates a debouncer with the given delay
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	return &Debouncer{delay: delay}
}

// Delay returns the configured delay
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Trigger schedules task, superseding whatever was scheduled or running
func (d *Debouncer) Trigger(task func(ctx context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.supersedeLocked()

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.gen++
	gen := d.gen

	d.timer = time.AfterFunc(d.delay, func() {
		d.run.Lock()
		defer d.run.Unlock()

		if ctx.Err() == nil {
			task(ctx)
		}

		d.mu.Lock()
		if d.gen == gen {
			d.cancel = nil
			d.timer = nil
		}
		d.mu.Unlock()
		cancel()
	})
}

// Stop drops the pending task and cancels a running one
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.supersedeLocked()
	d.gen++
}

// Pending reports whether a task is scheduled or running
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) supersedeLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

package syncer

import (
	"sync"
	"time"

	"github.com/matthewbaird/acdc/internal/clock"
)

// Debouncer runs fn once, delay after the last Trigger. Triggering again
// while a call is pending restarts the delay.
type Debouncer struct {
	clock clock.Clock
	delay time.Duration
	fn    func()

	mu    sync.Mutex
	timer clock.Timer
	gen   uint64
}

// NewDebouncer creates a trailing-edge debouncer.
func NewDebouncer(c clock.Clock, delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{clock: c, delay: delay, fn: fn}
}

// Trigger (re)arms the timer.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.gen != gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}

// Cancel drops a pending call. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	return true
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

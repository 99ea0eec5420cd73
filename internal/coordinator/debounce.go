package coordinator

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet interval after the last keystroke before a
// search is issued.
const DefaultDebounce = 400 * time.Millisecond

// Debouncer runs only the last of a burst of triggers, once the interval has
// passed without a newer one.
type Debouncer struct {
	mu    sync.Mutex
	clock Clock
	wait  time.Duration
	timer Timer
	fn    func()
	gen   uint64
}

// NewDebouncer returns a Debouncer waiting wait on clock.
func NewDebouncer(clock Clock, wait time.Duration) *Debouncer {
	return &Debouncer{clock: clock, wait: wait}
}

// Trigger discards any pending callback and schedules fn.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.fn = fn
	d.timer = d.clock.AfterFunc(d.wait, func() {
		d.mu.Lock()
		// A real timer may fire while Trigger or Stop is replacing it.
		if gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.fn = nil
		d.mu.Unlock()
		fn()
	})
}

// Flush runs the pending callback now instead of waiting out the interval.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	fn := d.fn
	d.fn = nil
	d.mu.Unlock()

	fn()
}

// Stop discards the pending callback, if any.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.fn = nil
	d.gen++
}

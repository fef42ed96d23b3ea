// Package debounce provides a trailing-edge value debouncer.
package debounce

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultDelay is used when a negative (unspecified) delay is given.
const DefaultDelay = 500 * time.Millisecond

// Option configures a Debouncer.
type Option func(*options)

type options struct {
	clock clockwork.Clock
}

// WithClock sets the clock used to schedule settle timers.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// Debouncer exposes the last value of a burst of pushes, updated only after
// the input has been quiet for the configured delay. Every push cancels the
// pending timer and reschedules from zero.
type Debouncer[T any] struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	delay    time.Duration
	timer    clockwork.Timer
	gen      uint64 // bumped whenever the pending timer is replaced or dropped
	latest   T
	pending  bool
	value    T
	settled  bool
	closed   bool
	onSettle func(T)
}

// New creates a Debouncer. onSettle may be nil; when set it is called from
// the timer goroutine with the settled value, outside the debouncer lock.
func New[T any](delay time.Duration, onSettle func(T), opts ...Option) *Debouncer[T] {
	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	if delay < 0 {
		delay = DefaultDelay
	}
	return &Debouncer[T]{
		clock:    o.clock,
		delay:    delay,
		onSettle: onSettle,
	}
}

// Push records v as the latest input and restarts the quiet period.
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.latest = v
	d.pending = true
	d.scheduleLocked()
}

// SetDelay changes the quiet period. A pending value is rescheduled from
// zero using the new delay.
func (d *Debouncer[T]) SetDelay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if delay < 0 {
		delay = DefaultDelay
	}
	if delay == d.delay {
		return
	}
	d.delay = delay
	if d.pending && !d.closed {
		d.scheduleLocked()
	}
}

// Delay returns the current quiet period.
func (d *Debouncer[T]) Delay() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delay
}

// Value returns the most recently settled value and whether anything has
// settled yet.
func (d *Debouncer[T]) Value() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value, d.settled
}

// Pending reports whether a pushed value is waiting to settle.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Cancel drops the pending value without settling it.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropLocked()
}

// Flush settles the pending value immediately on the calling goroutine.
// It reports whether there was anything to settle.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if !d.pending || d.closed {
		d.mu.Unlock()
		return false
	}
	v := d.latest
	d.dropLocked()
	d.value = v
	d.settled = true
	fn := d.onSettle
	d.mu.Unlock()

	if fn != nil {
		fn(v)
	}
	return true
}

// Close cancels any pending timer. Pushes after Close are ignored.
func (d *Debouncer[T]) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropLocked()
	d.closed = true
}

func (d *Debouncer[T]) scheduleLocked() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer[T]) dropLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.pending = false
	var zero T
	d.latest = zero
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	// A timer that already fired cannot be stopped; the generation check
	// discards callbacks belonging to a superseded schedule.
	if d.closed || !d.pending || gen != d.gen {
		d.mu.Unlock()
		return
	}
	v := d.latest
	d.pending = false
	d.timer = nil
	d.value = v
	d.settled = true
	fn := d.onSettle
	d.mu.Unlock()

	if fn != nil {
		fn(v)
	}
}

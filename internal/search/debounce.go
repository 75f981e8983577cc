package search

import (
	"sync"
	"time"
)

// Timer is the handle returned by a Clock.
type Timer interface {
	Stop() bool
}

// Clock schedules delayed calls.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock uses the runtime timers.
var RealClock Clock = realClock{}

// Debouncer runs the last scheduled task once no new task has been scheduled
// for the delay. At most one task is pending; scheduling stops the previous
// timer, and the generation check drops a fire that raced with Stop.
type Debouncer struct {
	mu         sync.Mutex
	clock      Clock
	delay      time.Duration
	pending    *task
	generation uint64
}

type task struct {
	generation uint64
	timer      Timer
	fn         func()
}

func NewDebouncer(clock Clock, delay time.Duration) *Debouncer {
	if clock == nil {
		clock = RealClock
	}
	return &Debouncer{clock: clock, delay: delay}
}

// Schedule replaces any pending task with fn.
func (d *Debouncer) Schedule(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.generation++
	t := &task{generation: d.generation, fn: fn}
	t.timer = d.clock.AfterFunc(d.delay, func() { d.fire(t.generation) })
	d.pending = t
}

// Cancel drops the pending task without running it. It reports whether a task
// was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	had := d.pending != nil
	d.stopLocked()
	return had
}

// Flush runs the pending task now, if any.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	t := d.pending
	d.stopLocked()
	d.mu.Unlock()
	if t == nil {
		return false
	}
	t.fn()
	return true
}

func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

func (d *Debouncer) stopLocked() {
	if d.pending == nil {
		return
	}
	d.pending.timer.Stop()
	d.pending = nil
	d.generation++
}

func (d *Debouncer) fire(generation uint64) {
	d.mu.Lock()
	t := d.pending
	if t == nil || t.generation != generation || d.generation != generation {
		d.mu.Unlock()
		return
	}
	d.pending = nil
	d.mu.Unlock()
	t.fn()
}

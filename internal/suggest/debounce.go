package suggest

import (
	"sync"
	"time"

	"github.com/dshills/nextedit/internal/backend"
)

// Debouncer coalesces rapid same-kind triggers into a single firing.
// Each Trigger supersedes the previous one of its kind: a sequence check
// guarantees two firings of the same kind never interleave, even if a
// timer goes off while a newer trigger is being armed.
type Debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	seq      map[backend.TriggerKind]uint64
	timers   map[backend.TriggerKind]*time.Timer
	stopped  bool
}

// NewDebouncer creates a debouncer with the given settle interval.
// A zero interval fires synchronously.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		interval: interval,
		seq:      make(map[backend.TriggerKind]uint64),
		timers:   make(map[backend.TriggerKind]*time.Timer),
	}
}

// SetInterval changes the settle interval for future triggers.
func (d *Debouncer) SetInterval(interval time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if interval >= 0 {
		d.interval = interval
	}
}

// Trigger arms kind's timer, superseding any earlier un-fired trigger of
// the same kind. fire runs once the interval passes without another
// trigger of this kind.
func (d *Debouncer) Trigger(kind backend.TriggerKind, fire func()) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}

	d.seq[kind]++
	mine := d.seq[kind]

	if t, ok := d.timers[kind]; ok {
		t.Stop()
		delete(d.timers, kind)
	}

	if d.interval <= 0 {
		d.mu.Unlock()
		fire()
		return
	}

	d.timers[kind] = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		current := d.seq[kind] == mine && !d.stopped
		if current {
			delete(d.timers, kind)
		}
		d.mu.Unlock()

		if current {
			fire()
		}
	})
	d.mu.Unlock()
}

// Cancel drops the pending trigger of one kind, if any.
func (d *Debouncer) Cancel(kind backend.TriggerKind) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq[kind]++
	if t, ok := d.timers[kind]; ok {
		t.Stop()
		delete(d.timers, kind)
	}
}

// Stop cancels every pending trigger and refuses new ones.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for kind, t := range d.timers {
		t.Stop()
		delete(d.timers, kind)
	}
}

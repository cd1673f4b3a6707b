package coordinator

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// pending is one armed debounce slot.
type pending struct {
	timer  clockwork.Timer
	cancel chan struct{}
}

// Debouncer coalesces rapid calls per key into one trailing-edge callback.
// High-frequency continuous inputs (drags, sliders) update local state on
// every event but only the last value inside the window is sent out.
type Debouncer struct {
	clock  clockwork.Clock
	window time.Duration

	mu      sync.Mutex
	slots   map[string]*pending
	stop    chan struct{}
	stopped bool
	wg      sync.WaitGroup
}

// NewDebouncer creates a debouncer firing callbacks window after the last
// trigger for a key.
func NewDebouncer(clock clockwork.Clock, window time.Duration) *Debouncer {
	return &Debouncer{
		clock:  clock,
		window: window,
		slots:  make(map[string]*pending),
		stop:   make(chan struct{}),
	}
}

// Trigger schedules fn to run after the debounce window, replacing any
// callback already scheduled for the same key. After Close, triggers are
// dropped.
func (d *Debouncer) Trigger(key string, fn func()) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if prev, ok := d.slots[key]; ok {
		close(prev.cancel)
	}
	p := &pending{
		timer:  d.clock.NewTimer(d.window),
		cancel: make(chan struct{}),
	}
	d.slots[key] = p
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		select {
		case <-p.timer.Chan():
			d.mu.Lock()
			if d.stopped || d.slots[key] != p {
				d.mu.Unlock()
				return
			}
			delete(d.slots, key)
			d.mu.Unlock()
			fn()
		case <-p.cancel:
			stopAndDrainTimer(p.timer)
		case <-d.stop:
			stopAndDrainTimer(p.timer)
		}
	}()
}

// Close cancels every pending callback and waits for the timer goroutines
// to exit. No callback fires after Close returns.
func (d *Debouncer) Close() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.stop)
	d.mu.Unlock()
	d.wg.Wait()
}

// stopAndDrainTimer stops a timer and drains an already-delivered tick so
// the channel cannot hold a stale value.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

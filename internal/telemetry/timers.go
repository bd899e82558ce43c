package telemetry

import (
	"sync"
	"time"
)

// NoTimer is returned by [TimerSet.Stop] when no matching Start preceded it.
const NoTimer = time.Duration(-1)

// TimerSet tracks named one-shot timers. A timer is armed by Start and
// consumed by Stop; stopping a timer that was never started (or was already
// consumed) reports [NoTimer] rather than an error, so callers can stop
// unconditionally on every content chunk and only record real measurements.
//
// All methods are safe for concurrent use.
type TimerSet struct {
	mu     sync.Mutex
	starts map[string]time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewTimerSet creates an empty TimerSet.
func NewTimerSet() *TimerSet {
	return &TimerSet{
		starts: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Start arms the named timer. Starting an already-armed timer resets its
// baseline.
func (t *TimerSet) Start(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.starts[name] = t.now()
}

// Stop consumes the named timer and returns the elapsed time since Start.
// Returns [NoTimer] when the timer is not armed.
func (t *TimerSet) Stop(name string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	start, ok := t.starts[name]
	if !ok {
		return NoTimer
	}
	delete(t.starts, name)
	return t.now().Sub(start)
}

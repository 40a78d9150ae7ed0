package doc

import (
	"sync"
	"time"
)

// Auto-save defaults applied when the configuration leaves them zero.
const (
	DefaultAutoSaveInterval   = 30 * time.Second
	DefaultAutoSaveMaxRetries = 3
)

// autoSaver owns the debounced, retrying background save. The timer handle is
// nullable with cancel-then-reassign semantics: arming or cancelling always
// invalidates any pending expiry first. Cancellation is best effort; a save
// already in flight is not aborted, only never rescheduled.
type autoSaver struct {
	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	retries    int
	interval   time.Duration
	maxRetries int
	stopped    bool
	fire       func()
}

func newAutoSaver(interval time.Duration, maxRetries int, fire func()) *autoSaver {
	if interval <= 0 {
		interval = DefaultAutoSaveInterval
	}
	if maxRetries <= 0 {
		maxRetries = DefaultAutoSaveMaxRetries
	}
	return &autoSaver{
		interval:   interval,
		maxRetries: maxRetries,
		fire:       fire,
	}
}

// arm cancels any pending timer, resets the retry counter, and schedules a
// fresh expiry one interval out. Each user-driven change re-arms from zero.
func (a *autoSaver) arm() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.cancelLocked()
	a.retries = 0
	a.scheduleLocked(a.interval)
}

// cancel invalidates the pending timer, if any.
func (a *autoSaver) cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelLocked()
}

// stop cancels and prevents any future arming; used on controller teardown.
func (a *autoSaver) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelLocked()
	a.stopped = true
}

func (a *autoSaver) cancelLocked() {
	a.generation++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *autoSaver) scheduleLocked(delay time.Duration) {
	generation := a.generation
	a.timer = time.AfterFunc(delay, func() {
		a.expired(generation)
	})
}

func (a *autoSaver) expired(generation uint64) {
	a.mu.Lock()
	if a.stopped || generation != a.generation {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	fire := a.fire
	a.mu.Unlock()
	if fire != nil {
		fire()
	}
}

// succeeded resets the retry counter after a completed auto-save.
func (a *autoSaver) succeeded() {
	a.mu.Lock()
	a.retries = 0
	a.mu.Unlock()
}

// failed increments the retry counter and reschedules with exponential
// backoff while retries remain under the maximum. Once exhausted, nothing
// fires again until the next arm.
func (a *autoSaver) failed() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.retries++
	if a.retries >= a.maxRetries {
		return
	}
	a.cancelLocked()
	a.scheduleLocked(a.interval << (a.retries - 1))
}

// pending reports whether a timer is currently armed.
func (a *autoSaver) pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timer != nil
}

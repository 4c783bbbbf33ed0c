// Package visibility tracks whether the UI shell is on screen and defers
// level-up reveals until it is.
package visibility

import (
	"log/slog"
	"sync"
)

// Signal reports document visibility and delivers a one-shot notification
// when the shell becomes visible again.
type Signal interface {
	// Visible reports whether the shell is currently on screen.
	Visible() bool
	// NotifyVisible registers fn to run once, on the next hidden-to-visible
	// transition. If the shell is already visible the waiter still waits
	// for the next transition; callers check Visible first.
	NotifyVisible(fn func())
}

// Tracker is the Signal implementation fed by shell visibility reports.
// The shell is assumed visible until it says otherwise, so a reveal is
// never held hostage by a report that got lost.
type Tracker struct {
	logger *slog.Logger

	mu      sync.Mutex
	visible bool
	waiters []func()
}

// NewTracker creates a tracker in the visible state.
func NewTracker(logger *slog.Logger) *Tracker {
	return &Tracker{logger: logger, visible: true}
}

// Visible implements Signal.
func (t *Tracker) Visible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}

// NotifyVisible implements Signal.
func (t *Tracker) NotifyVisible(fn func()) {
	t.mu.Lock()
	t.waiters = append(t.waiters, fn)
	t.mu.Unlock()
}

// Set records a visibility report from the shell. A hidden-to-visible
// transition fires all pending waiters exactly once.
func (t *Tracker) Set(visible bool) {
	t.mu.Lock()
	becameVisible := visible && !t.visible
	t.visible = visible
	var fire []func()
	if becameVisible {
		fire = t.waiters
		t.waiters = nil
	}
	t.mu.Unlock()

	if t.logger != nil {
		t.logger.Debug("visibility reported", "visible", visible)
	}
	for _, fn := range fire {
		fn()
	}
}

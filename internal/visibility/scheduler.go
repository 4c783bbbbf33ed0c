package visibility

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultVisibleDelay keeps the reveal from colliding with other UI
	// transitions that fired in the same moment.
	DefaultVisibleDelay = 300 * time.Millisecond
	// DefaultHiddenDelay debounces rapid tab-switch sequences after the
	// shell comes back on screen.
	DefaultHiddenDelay = time.Second
)

// Scheduler runs a pending reveal once the shell is visible. Each call to
// Schedule supersedes the previous pending reveal: a generation counter
// invalidates in-flight timers and waiters, so a stale timer firing is a
// no-op rather than a duplicate reveal.
type Scheduler struct {
	signal       Signal
	visibleDelay time.Duration
	hiddenDelay  time.Duration
	logger       *slog.Logger

	mu    sync.Mutex
	gen   uint64
	timer *time.Timer
}

// NewScheduler creates a reveal scheduler. Non-positive delays fall back
// to the defaults.
func NewScheduler(signal Signal, visibleDelay, hiddenDelay time.Duration, logger *slog.Logger) *Scheduler {
	if visibleDelay <= 0 {
		visibleDelay = DefaultVisibleDelay
	}
	if hiddenDelay <= 0 {
		hiddenDelay = DefaultHiddenDelay
	}
	return &Scheduler{
		signal:       signal,
		visibleDelay: visibleDelay,
		hiddenDelay:  hiddenDelay,
		logger:       logger,
	}
}

// Schedule arranges for reveal to run once the shell is visible and the
// applicable delay has elapsed. Last writer wins.
func (s *Scheduler) Schedule(reveal func()) {
	gen := s.bump()
	if s.logger != nil {
		s.logger.Debug("reveal scheduled", "visible", s.signal.Visible())
	}
	s.check(gen, reveal)
}

// Cancel invalidates any pending reveal.
func (s *Scheduler) Cancel() {
	s.bump()
}

// bump advances the generation, stopping the current timer.
func (s *Scheduler) bump() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	return s.gen
}

// check re-evaluates visibility for the given generation. Hidden: wait for
// the shell to come back, debounce, then check again (it may have hidden
// itself in the meantime). Visible: apply the reveal after the short delay.
func (s *Scheduler) check(gen uint64, reveal func()) {
	if !s.signal.Visible() {
		s.signal.NotifyVisible(func() {
			s.after(gen, s.hiddenDelay, func() { s.check(gen, reveal) })
		})
		return
	}
	s.after(gen, s.visibleDelay, reveal)
}

// after schedules fn on a one-shot timer tied to the given generation.
func (s *Scheduler) after(gen uint64, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		stale := gen != s.gen
		s.mu.Unlock()
		if stale {
			return
		}
		fn()
	})
}

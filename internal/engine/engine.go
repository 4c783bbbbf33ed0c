// Package engine reconciles the locally cached rank snapshot with the
// authoritative remote one and owns the two externally callable mutations.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/readmarkapp/readmark-agent/internal/domain"
	"github.com/readmarkapp/readmark-agent/internal/errors"
	"github.com/readmarkapp/readmark-agent/internal/session"
	"github.com/readmarkapp/readmark-agent/internal/store"
)

// alwaysShowLatest controls which of the two value paths callers see.
// When true, Output reports the immediate merged values while the deferred
// path still gates the celebration. Kept as a constant because flipping it
// changes what every client displays mid-merge.
const alwaysShowLatest = true

// Fetcher retrieves the authoritative snapshot for a user.
// (nil, nil) means the user has no remote rank yet. Invalidate drops any
// cached result for a user so a later pass refetches.
type Fetcher interface {
	Fetch(ctx context.Context, userID string) (*domain.RankSnapshot, error)
	Invalidate(userID string)
}

// RevealScheduler defers the level-up celebration until the shell is
// visible.
type RevealScheduler interface {
	Schedule(reveal func())
	Cancel()
}

// Output is the rank state exposed to the UI shell.
type Output struct {
	IsLoading   bool `json:"is_loading"`
	Rank        int  `json:"rank"`
	Progress    int  `json:"progress"`
	MaxProgress int  `json:"max_progress"`
	// LevelUp reports a rank transition pending acknowledgment.
	LevelUp bool `json:"level_up"`
	// Reveal tells the shell to play the celebration now. It only flips
	// once the visibility-gated delay has elapsed.
	Reveal bool `json:"reveal"`
}

// Engine is the reconciliation state machine.
type Engine struct {
	store      store.Store
	fetcher    Fetcher
	sessions   session.Provider
	scheduler  RevealScheduler
	thresholds domain.Thresholds
	now        func() time.Time
	logger     *slog.Logger

	mu          sync.Mutex
	phase       Phase
	cacheLoaded bool
	cached      *domain.CachedRankSnapshot
	remote      *domain.RankSnapshot
	remoteState remoteState
	remoteFor   string // user id the remote state belongs to
	fetching    bool

	display        domain.RankSnapshot
	deferred       domain.RankSnapshot
	levelUpPending bool
	revealNow      bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source. Used in tests to pin the
// day and week rules.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine. Call Start to begin the cache load.
func New(st store.Store, fetcher Fetcher, sessions session.Provider, scheduler RevealScheduler, thresholds domain.Thresholds, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:      st,
		fetcher:    fetcher,
		sessions:   sessions,
		scheduler:  scheduler,
		thresholds: thresholds,
		now:        time.Now,
		logger:     logger,
		phase:      PhaseUninitialized,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start kicks off the asynchronous cache load. The engine stays in
// PhaseUninitialized until it completes; a read failure counts as an empty
// cache.
func (e *Engine) Start(ctx context.Context) {
	go func() {
		snap, err := e.store.LoadSnapshot(ctx)
		if err != nil {
			e.logger.Warn("cache load failed, starting empty", "error", err)
			snap = nil
		}
		e.mu.Lock()
		e.cached = snap
		e.cacheLoaded = true
		e.mu.Unlock()
		e.Recompute(ctx)
	}()
}

// OnSessionChanged re-runs reconciliation after an identity change or
// token refresh. Wire it to the session manager's change callback.
func (e *Engine) OnSessionChanged(ctx context.Context) {
	e.Recompute(ctx)
}

// Recompute runs one reconciliation pass over the current inputs.
func (e *Engine) Recompute(ctx context.Context) {
	e.mu.Lock()

	userID := ""
	if user := e.sessions.CurrentUser(); user != nil {
		userID = user.ID
	}

	// An identity change invalidates the remote fetch state, including the
	// fetcher's cached result for the old identity. A user signing back in
	// later must refetch rather than see a stale cached not-found.
	if e.remoteFor != userID {
		e.fetcher.Invalidate(e.remoteFor)
		e.remoteFor = userID
		e.remote = nil
		e.remoteState = remotePending
	}

	in := inputs{
		cacheLoaded:    e.cacheLoaded,
		cached:         e.cached,
		remote:         e.remote,
		remoteState:    e.remoteState,
		userID:         userID,
		tokenRefreshed: e.sessions.TokenRefreshed(),
		now:            e.now(),
	}
	out := reconcile(in, e.thresholds)
	e.apply(ctx, out, userID)

	startFetch := out.needFetch && !e.fetching && userID != ""
	if startFetch {
		e.fetching = true
	}
	e.mu.Unlock()

	if startFetch {
		go e.runFetch(ctx, userID)
	}
}

// apply installs an outcome. Caller holds e.mu.
func (e *Engine) apply(ctx context.Context, out outcome, userID string) {
	e.phase = out.phase
	e.display = out.display
	e.deferred = out.deferred

	if out.persist != nil {
		if err := e.store.SaveSnapshot(ctx, out.persist); err != nil {
			e.logger.Warn("failed to persist snapshot", "error", err)
		} else {
			e.cached = out.persist
		}
	}
	if out.clearCache {
		if err := e.store.ClearSnapshot(ctx); err != nil {
			e.logger.Warn("failed to clear snapshot", "error", err)
		} else {
			e.cached = nil
			e.logger.Info("cleared snapshot for new identity", "user_id", userID)
		}
	}

	if out.levelUp && !e.levelUpPending {
		e.levelUpPending = true
		e.logger.Info("level up pending",
			"rank", out.display.CurrentRank,
			"progress", out.display.ProgressThisWeek,
		)
		e.scheduler.Schedule(e.reveal)
	}
}

// runFetch resolves the remote snapshot for userID and re-reconciles.
func (e *Engine) runFetch(ctx context.Context, userID string) {
	snap, err := e.fetcher.Fetch(ctx, userID)

	e.mu.Lock()
	e.fetching = false
	if e.remoteFor == userID {
		switch {
		case err != nil:
			e.logger.Warn("remote fetch failed, using cache only", "user_id", userID, "error", err)
			e.remote = nil
			e.remoteState = remoteFailed
		case snap == nil:
			e.remote = nil
			e.remoteState = remoteAbsent
		default:
			e.remote = snap
			e.remoteState = remoteSuccess
		}
	}
	e.mu.Unlock()

	e.Recompute(ctx)
}

// reveal flips the UI trigger once the scheduler clears it through the
// visibility gate. A reveal for an already-acknowledged transition is
// dropped.
func (e *Engine) reveal() {
	e.mu.Lock()
	if e.levelUpPending {
		e.revealNow = true
		e.logger.Info("level up revealed", "rank", e.display.CurrentRank)
	}
	e.mu.Unlock()
}

// Output returns the rank state exposed to callers.
func (e *Engine) Output() Output {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.deferred
	if alwaysShowLatest {
		snap = e.display
	}
	return Output{
		IsLoading:   e.phase != PhaseStable,
		Rank:        snap.CurrentRank,
		Progress:    snap.ProgressThisWeek,
		MaxProgress: e.thresholds.Max(),
		LevelUp:     e.levelUpPending,
		Reveal:      e.revealNow,
	}
}

// IncrementReadingRank records one qualifying read. It is a silent no-op
// when today's read is already banked or the week's goal is reached, a
// rejection when an anonymous session is at the rank-zero ceiling, and held
// with NotReady until the cache is loaded and the session is established.
// The whole read-modify-write is one critical section: two rapid calls
// cannot both pass the gates.
func (e *Engine) IncrementReadingRank(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cacheLoaded {
		return errors.NotReady("rank state not loaded yet")
	}

	now := e.now()
	cur := clamp(e.display.Refreshed(now), e.thresholds)

	if cur.ReadToday {
		e.logger.Debug("increment skipped, already read today")
		return nil
	}
	if cur.ProgressThisWeek >= e.thresholds.Max() {
		e.logger.Debug("increment skipped, weekly goal complete")
		return nil
	}

	user := e.sessions.CurrentUser()
	if user == nil && !e.sessions.TokenRefreshed() {
		// Before the shell hands the token over, the absence of a user is
		// indeterminate. Applying anonymous policy here could reject a
		// signed-in user at the ceiling or strip their identity tag from
		// the slot.
		return errors.NotReady("session not established yet")
	}
	if user == nil && cur.ProgressThisWeek >= e.thresholds.AnonymousCeiling() {
		return errors.CeilingReached("sign in to rank up further")
	}

	next := cur.Incremented(e.thresholds, now)
	leveled := next.CurrentRank > cur.CurrentRank

	// Optimistic write to the in-memory remote-equivalent state.
	e.display = next
	e.deferred = next
	e.remote = &next
	if e.remoteState == remoteAbsent || e.remoteState == remoteFailed {
		e.remoteState = remoteSuccess
	}

	rec := &domain.CachedRankSnapshot{RankSnapshot: next}
	if user != nil {
		rec.UserID = user.ID
	}
	if err := e.store.SaveSnapshot(ctx, rec); err != nil {
		e.logger.Warn("failed to persist increment", "error", err)
	} else {
		e.cached = rec
	}

	e.logger.Info("reading rank incremented",
		"rank", next.CurrentRank,
		"progress", next.ProgressThisWeek,
		"leveled", leveled,
	)

	if leveled && !e.levelUpPending {
		e.levelUpPending = true
		e.scheduler.Schedule(e.reveal)
	}
	return nil
}

// ConfirmLevelUp acknowledges the celebration. For a signed-in user the
// current post-merge snapshot becomes the new cached baseline; for an
// anonymous session the stored rank collapses back to zero while the
// week's progress context survives.
func (e *Engine) ConfirmLevelUp(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.scheduler.Cancel()
	e.levelUpPending = false
	e.revealNow = false

	if !e.cacheLoaded {
		return nil
	}

	user := e.sessions.CurrentUser()
	if user == nil && !e.sessions.TokenRefreshed() {
		// Same indeterminate window as the increment gate: acknowledging
		// here must not collapse a possibly signed-in slot to rank zero.
		return nil
	}

	snap := e.display
	rec := &domain.CachedRankSnapshot{RankSnapshot: snap}
	if user != nil {
		rec.UserID = user.ID
	} else {
		rec.CurrentRank = 0
		e.display.CurrentRank = 0
	}

	if err := e.store.SaveSnapshot(ctx, rec); err != nil {
		e.logger.Warn("failed to persist confirmation", "error", err)
		return errors.Wrap(err, errors.CodeInternal, "persist confirmation")
	}
	e.cached = rec
	e.deferred = rec.RankSnapshot

	e.logger.Info("level up confirmed", "rank", rec.CurrentRank)
	return nil
}

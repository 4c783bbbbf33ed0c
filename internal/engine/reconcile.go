package engine

import (
	"time"

	"github.com/readmarkapp/readmark-agent/internal/domain"
)

// Phase is the engine's lifecycle state.
type Phase int

const (
	// PhaseUninitialized means the local cache has not been read yet.
	PhaseUninitialized Phase = iota
	// PhaseReconciling means inputs are still arriving (remote fetch in
	// flight, or the session is not yet known).
	PhaseReconciling
	// PhaseStable means the externally visible state is settled.
	PhaseStable
)

// remoteState tracks the outcome of the authoritative fetch for the
// current identity.
type remoteState int

const (
	remotePending remoteState = iota
	remoteSuccess
	remoteAbsent // the user has no remote rank yet
	remoteFailed // transport failure; cache-only degradation
)

// inputs is everything one reconciliation pass depends on. Passes are pure:
// the same inputs always produce the same outcome.
type inputs struct {
	cacheLoaded    bool
	cached         *domain.CachedRankSnapshot
	remote         *domain.RankSnapshot
	remoteState    remoteState
	userID         string // empty for anonymous
	tokenRefreshed bool
	now            time.Time
}

// outcome is what a pass decided. The engine applies it: updates the
// visible state, persists or clears the slot, starts a fetch, and routes a
// new level-up through the reveal scheduler.
type outcome struct {
	phase      Phase
	display    domain.RankSnapshot // immediate merged values
	deferred   domain.RankSnapshot // cache-backed values, lagging until confirm
	levelUp    bool                // an upward rank transition awaits acknowledgment
	persist    *domain.CachedRankSnapshot
	clearCache bool
	needFetch  bool
}

// reconcile merges the cached and remote snapshots for the current session.
//
// Decision order: gate on the cache read, then split anonymous from
// authenticated, then handle identity switches, then merge cache against
// remote. Rank only moves upward through here; the sole downward path is
// the weekly reset inside Refreshed.
func reconcile(in inputs, t domain.Thresholds) outcome {
	if !in.cacheLoaded {
		return outcome{phase: PhaseUninitialized}
	}

	var cached *domain.RankSnapshot
	if in.cached != nil {
		s := clamp(in.cached.RankSnapshot.Refreshed(in.now), t)
		cached = &s
	}

	if in.userID == "" {
		return reconcileAnonymous(in, cached)
	}

	if in.cached != nil && in.cached.UserID != in.userID {
		return reconcileIdentitySwitch(in, t)
	}

	return reconcileAuthenticated(in, cached, t)
}

// reconcileAnonymous handles sessions with no signed-in user. No remote
// data exists for them; the cache carries the whole state.
func reconcileAnonymous(in inputs, cached *domain.RankSnapshot) outcome {
	// Right after startup the absence of a user may just mean the shell
	// has not handed the token over yet. Hold at Reconciling rather than
	// resetting a signed-in user's state.
	if !in.tokenRefreshed {
		out := outcome{phase: PhaseReconciling}
		if cached != nil {
			out.display, out.deferred = *cached, *cached
		}
		return out
	}

	snap := domain.DefaultSnapshot()
	if in.cached != nil && in.cached.InCurrentWeek(in.now) {
		// Keep this week's progress; Refreshed already corrected ReadToday.
		snap = *cached
	}

	out := outcome{phase: PhaseStable, display: snap, deferred: snap}

	// Rewrite the slot when its stored form no longer matches: a recorded
	// identity is dropped, a stale week collapsed, or the day gate opened.
	if in.cached != nil && (in.cached.UserID != "" || !snapshotsEqual(in.cached.RankSnapshot, snap)) {
		out.persist = &domain.CachedRankSnapshot{RankSnapshot: snap}
	}
	return out
}

// reconcileIdentitySwitch handles a cache recorded for a different
// identity than the current user (including an anonymous-recorded cache
// after sign-in). The old cache is never inherited.
func reconcileIdentitySwitch(in inputs, t domain.Thresholds) outcome {
	switch in.remoteState {
	case remoteSuccess:
		snap := clamp(in.remote.Refreshed(in.now), t)
		return outcome{
			phase:    PhaseStable,
			display:  snap,
			deferred: snap,
			persist:  &domain.CachedRankSnapshot{RankSnapshot: snap, UserID: in.userID},
		}
	case remoteAbsent:
		// New user with no remote rank: clear the slot outright rather
		// than leaving state attributed to the wrong identity.
		return outcome{phase: PhaseStable, clearCache: true}
	case remoteFailed:
		// Can't attribute the old cache to this user; show defaults and
		// leave the slot alone so a later pass can retry the fetch.
		return outcome{phase: PhaseStable}
	default:
		return outcome{phase: PhaseReconciling, needFetch: true}
	}
}

// reconcileAuthenticated merges cache against remote for the user the
// cache was recorded for (or a fresh cache).
func reconcileAuthenticated(in inputs, cached *domain.RankSnapshot, t domain.Thresholds) outcome {
	switch in.remoteState {
	case remotePending:
		out := outcome{phase: PhaseReconciling, needFetch: true}
		if cached != nil {
			out.display, out.deferred = *cached, *cached
		}
		return out

	case remoteAbsent, remoteFailed:
		// Cache-only operation; the UI never blocks on the network.
		out := outcome{phase: PhaseStable}
		if cached != nil {
			out.display, out.deferred = *cached, *cached
		}
		return out
	}

	remote := clamp(in.remote.Refreshed(in.now), t)

	if cached == nil {
		// Device catching up to an already-known state: adopt and persist
		// immediately, with no celebration.
		return outcome{
			phase:    PhaseStable,
			display:  remote,
			deferred: remote,
			persist:  &domain.CachedRankSnapshot{RankSnapshot: remote, UserID: in.userID},
		}
	}

	if remote.ProgressThisWeek < cached.ProgressThisWeek {
		// Local optimistic writes are ahead of the server; keep them.
		return outcome{phase: PhaseStable, display: *cached, deferred: *cached}
	}

	if remote.CurrentRank > cached.CurrentRank {
		// The rank genuinely advanced since the cache was written (another
		// device, or a raced server-side increment). Show the new values
		// immediately but defer the celebration; the cache baseline moves
		// only when the user acknowledges.
		return outcome{
			phase:    PhaseStable,
			display:  remote,
			deferred: *cached,
			levelUp:  true,
		}
	}

	// Ranks equal: silently refresh the cache from remote. A remote rank
	// below the cached one with progress not behind is inconsistent data;
	// rank never moves down here, only the weekly reset lowers it.
	merged := remote
	if merged.CurrentRank < cached.CurrentRank {
		merged.CurrentRank = cached.CurrentRank
	}
	out := outcome{phase: PhaseStable, display: merged, deferred: merged}
	if !snapshotsEqual(in.cached.RankSnapshot, merged) || in.cached.UserID != in.userID {
		out.persist = &domain.CachedRankSnapshot{RankSnapshot: merged, UserID: in.userID}
	}
	return out
}

// clamp enforces the table maximum on weekly progress.
func clamp(s domain.RankSnapshot, t domain.Thresholds) domain.RankSnapshot {
	if max := t.Max(); s.ProgressThisWeek > max {
		s.ProgressThisWeek = max
	}
	return s
}

// snapshotsEqual compares snapshots field by field; LastReadTime compares
// by instant.
func snapshotsEqual(a, b domain.RankSnapshot) bool {
	if a.CurrentRank != b.CurrentRank ||
		a.ProgressThisWeek != b.ProgressThisWeek ||
		a.ReadToday != b.ReadToday {
		return false
	}
	switch {
	case a.LastReadTime == nil && b.LastReadTime == nil:
		return true
	case a.LastReadTime == nil || b.LastReadTime == nil:
		return false
	default:
		return a.LastReadTime.Equal(*b.LastReadTime)
	}
}

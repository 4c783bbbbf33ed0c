package domain

import "time"

// RankSnapshot is the unit of gamification state, persisted locally and
// returned by the remote rank endpoint. The zero value is the default
// snapshot used to bootstrap the engine before any data has loaded.
type RankSnapshot struct {
	CurrentRank      int        `json:"current_rank"`
	ProgressThisWeek int        `json:"progress_this_week"`
	ReadToday        bool       `json:"read_today"`
	LastReadTime     *time.Time `json:"last_read_time,omitempty"`
}

// CachedRankSnapshot is a RankSnapshot plus the identity it was captured
// for. UserID is empty for anonymous sessions; the reconciler compares it
// against the current session to detect a device changing hands.
type CachedRankSnapshot struct {
	RankSnapshot
	UserID string `json:"user_id,omitempty"`
}

// DefaultSnapshot returns the zero-valued bootstrap snapshot.
func DefaultSnapshot() RankSnapshot {
	return RankSnapshot{}
}

// ReadOn reports whether the last increment happened on the same calendar
// day as now (local time).
func (s RankSnapshot) ReadOn(now time.Time) bool {
	if s.LastReadTime == nil {
		return false
	}
	y1, m1, d1 := s.LastReadTime.Local().Date()
	y2, m2, d2 := now.Local().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// InCurrentWeek reports whether the last increment falls inside the same
// ISO week as now. A snapshot with no LastReadTime has never been written
// this week and is not considered current.
func (s RankSnapshot) InCurrentWeek(now time.Time) bool {
	if s.LastReadTime == nil {
		return false
	}
	return SameISOWeek(*s.LastReadTime, now)
}

// Refreshed applies the lazy staleness rules: a snapshot whose last read
// crossed an ISO week boundary collapses to the default, and ReadToday is
// corrected when the last read was on an earlier day. Progress earned this
// week survives the day rollover.
func (s RankSnapshot) Refreshed(now time.Time) RankSnapshot {
	if s.LastReadTime != nil && !s.InCurrentWeek(now) {
		return DefaultSnapshot()
	}
	if s.ReadToday && !s.ReadOn(now) {
		s.ReadToday = false
	}
	return s
}

// Incremented returns the snapshot after one qualifying read: progress
// advances by one (clamped to the table maximum), the day gate closes, and
// the rank is re-derived from the new progress.
func (s RankSnapshot) Incremented(t Thresholds, now time.Time) RankSnapshot {
	next := s
	if next.ProgressThisWeek < t.Max() {
		next.ProgressThisWeek++
	}
	next.CurrentRank = t.RankFor(next.ProgressThisWeek)
	next.ReadToday = true
	ts := now
	next.LastReadTime = &ts
	return next
}

// SameISOWeek reports whether two instants fall in the same ISO 8601 week.
func SameISOWeek(a, b time.Time) bool {
	ay, aw := a.Local().ISOWeek()
	by, bw := b.Local().ISOWeek()
	return ay == by && aw == bw
}

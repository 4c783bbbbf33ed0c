package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr(t time.Time) *time.Time { return &t }

func TestRankFor(t *testing.T) {
	thresholds := Thresholds{3, 7}

	tests := []struct {
		name     string
		progress int
		want     int
	}{
		{"below first threshold", 2, 0},
		{"exactly first threshold", 3, 1},
		{"between thresholds", 5, 1},
		{"exactly final threshold", 7, 2},
		{"beyond final threshold", 9, 2},
		{"zero progress", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, thresholds.RankFor(tt.progress))
		})
	}
}

func TestThresholds_Bounds(t *testing.T) {
	assert.Equal(t, 25, DefaultThresholds.Max())
	assert.Equal(t, 3, DefaultThresholds.AnonymousCeiling())

	empty := Thresholds{}
	assert.Equal(t, 0, empty.Max())
	assert.Equal(t, 0, empty.AnonymousCeiling())
	assert.Equal(t, 0, empty.RankFor(100))
}

func TestIncremented_CrossesEveryThreshold(t *testing.T) {
	thresholds := Thresholds{1, 3, 6}
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.Local)

	for i, threshold := range thresholds {
		s := RankSnapshot{
			CurrentRank:      thresholds.RankFor(threshold - 1),
			ProgressThisWeek: threshold - 1,
		}
		next := s.Incremented(thresholds, now)
		assert.Equal(t, i+1, next.CurrentRank, "threshold %d", threshold)
		assert.Equal(t, threshold, next.ProgressThisWeek)
		assert.True(t, next.ReadToday)
		assert.Equal(t, now, *next.LastReadTime)
	}
}

func TestIncremented_ClampsAtWeeklyMax(t *testing.T) {
	thresholds := Thresholds{3, 7}
	now := time.Now()

	s := RankSnapshot{CurrentRank: 2, ProgressThisWeek: 7}
	next := s.Incremented(thresholds, now)
	assert.Equal(t, 7, next.ProgressThisWeek)
	assert.Equal(t, 2, next.CurrentRank)
}

func TestRefreshed_WeekRollover(t *testing.T) {
	// Friday of one ISO week vs Tuesday of the next.
	read := time.Date(2026, 2, 6, 20, 0, 0, 0, time.Local)
	now := time.Date(2026, 2, 10, 8, 0, 0, 0, time.Local)

	s := RankSnapshot{CurrentRank: 2, ProgressThisWeek: 9, ReadToday: true, LastReadTime: ptr(read)}
	assert.Equal(t, DefaultSnapshot(), s.Refreshed(now))
}

func TestRefreshed_DayRolloverKeepsProgress(t *testing.T) {
	// Same ISO week, previous day.
	read := time.Date(2026, 2, 4, 22, 0, 0, 0, time.Local)
	now := time.Date(2026, 2, 5, 7, 0, 0, 0, time.Local)

	s := RankSnapshot{CurrentRank: 1, ProgressThisWeek: 4, ReadToday: true, LastReadTime: ptr(read)}
	got := s.Refreshed(now)
	assert.False(t, got.ReadToday)
	assert.Equal(t, 4, got.ProgressThisWeek)
	assert.Equal(t, 1, got.CurrentRank)
}

func TestRefreshed_SameDayUntouched(t *testing.T) {
	now := time.Date(2026, 2, 5, 15, 0, 0, 0, time.Local)
	read := now.Add(-2 * time.Hour)

	s := RankSnapshot{CurrentRank: 1, ProgressThisWeek: 4, ReadToday: true, LastReadTime: ptr(read)}
	assert.Equal(t, s, s.Refreshed(now))
}

func TestRefreshed_FreshSnapshot(t *testing.T) {
	// No LastReadTime means nothing to correct.
	s := DefaultSnapshot()
	assert.Equal(t, s, s.Refreshed(time.Now()))
}

func TestSameISOWeek_YearBoundary(t *testing.T) {
	// 2025-12-29 (Mon) and 2026-01-04 (Sun) are both ISO week 1 of 2026.
	a := time.Date(2025, 12, 29, 10, 0, 0, 0, time.Local)
	b := time.Date(2026, 1, 4, 10, 0, 0, 0, time.Local)
	assert.True(t, SameISOWeek(a, b))

	// 2026-01-05 starts week 2.
	c := time.Date(2026, 1, 5, 10, 0, 0, 0, time.Local)
	assert.False(t, SameISOWeek(b, c))
}

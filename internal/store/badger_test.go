package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readmarkapp/readmark-agent/internal/domain"
)

func setupStore(t *testing.T) *BadgerStore {
	t.Helper()

	st, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestBadgerStore_SnapshotRoundTrip(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	// Empty slot reads as (nil, nil).
	snap, err := st.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)

	last := time.Date(2026, 2, 4, 12, 0, 0, 0, time.UTC)
	rec := &domain.CachedRankSnapshot{
		RankSnapshot: domain.RankSnapshot{
			CurrentRank:      2,
			ProgressThisWeek: 5,
			ReadToday:        true,
			LastReadTime:     &last,
		},
		UserID: "user-a",
	}
	require.NoError(t, st.SaveSnapshot(ctx, rec))

	got, err := st.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.CurrentRank)
	assert.Equal(t, 5, got.ProgressThisWeek)
	assert.True(t, got.ReadToday)
	assert.Equal(t, "user-a", got.UserID)
	require.NotNil(t, got.LastReadTime)
	assert.True(t, got.LastReadTime.Equal(last))
}

func TestBadgerStore_SaveOverwritesSlot(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	first := &domain.CachedRankSnapshot{UserID: "user-a"}
	first.ProgressThisWeek = 1
	require.NoError(t, st.SaveSnapshot(ctx, first))

	second := &domain.CachedRankSnapshot{}
	second.ProgressThisWeek = 3
	require.NoError(t, st.SaveSnapshot(ctx, second))

	got, err := st.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.ProgressThisWeek)
	assert.Empty(t, got.UserID)
}

func TestBadgerStore_ClearSnapshot(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveSnapshot(ctx, &domain.CachedRankSnapshot{UserID: "user-a"}))
	require.NoError(t, st.ClearSnapshot(ctx))

	got, err := st.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Clearing an already-empty slot is fine.
	require.NoError(t, st.ClearSnapshot(ctx))
}

func TestBadgerStore_DeviceIDStable(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	first, err := st.DeviceID(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, "device-"))

	second, err := st.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBadgerStore_DeviceIDSurvivesClear(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	deviceID, err := st.DeviceID(ctx)
	require.NoError(t, err)

	require.NoError(t, st.SaveSnapshot(ctx, &domain.CachedRankSnapshot{}))
	require.NoError(t, st.ClearSnapshot(ctx))

	got, err := st.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, deviceID, got)
}

func TestBadgerStore_CancelledContext(t *testing.T) {
	st := setupStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.LoadSnapshot(ctx)
	assert.Error(t, err)
	assert.Error(t, st.SaveSnapshot(ctx, &domain.CachedRankSnapshot{}))
}

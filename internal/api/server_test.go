package api

import (
	"context"
	"encoding/json/v2"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readmarkapp/readmark-agent/internal/domain"
	"github.com/readmarkapp/readmark-agent/internal/engine"
	"github.com/readmarkapp/readmark-agent/internal/logger"
	"github.com/readmarkapp/readmark-agent/internal/session"
	"github.com/readmarkapp/readmark-agent/internal/visibility"
)

// memStore is an in-memory snapshot store for handler tests.
type memStore struct {
	mu   sync.Mutex
	snap *domain.CachedRankSnapshot
}

func (s *memStore) LoadSnapshot(context.Context) (*domain.CachedRankSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, nil
}

func (s *memStore) SaveSnapshot(_ context.Context, snap *domain.CachedRankSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	return nil
}

func (s *memStore) ClearSnapshot(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = nil
	return nil
}

func (s *memStore) DeviceID(context.Context) (string, error) { return "device-test", nil }
func (s *memStore) Close() error                             { return nil }

// noRemote reports every user as having no remote rank.
type noRemote struct{}

func (noRemote) Fetch(context.Context, string) (*domain.RankSnapshot, error) { return nil, nil }

func (noRemote) Invalidate(string) {}

// recordScheduler captures reveal callbacks without timing them.
type recordScheduler struct {
	mu     sync.Mutex
	reveal func()
}

func (s *recordScheduler) Schedule(reveal func()) {
	s.mu.Lock()
	s.reveal = reveal
	s.mu.Unlock()
}

func (s *recordScheduler) Cancel() {
	s.mu.Lock()
	s.reveal = nil
	s.mu.Unlock()
}

type apiClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *apiClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *apiClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testServer struct {
	*Server
	api      humatest.TestAPI
	key      paseto.V4SymmetricKey
	clock    *apiClock
	sessions *session.Manager
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	log := logger.New(logger.Config{Environment: "development"})

	key := paseto.NewV4SymmetricKey()
	verifier, err := session.NewTokenVerifier(key.ExportHex())
	require.NoError(t, err)
	sessions := session.NewManager(verifier, log.Logger)
	// The shell has reported: no user means anonymous.
	sessions.Clear()

	tracker := visibility.NewTracker(log.Logger)
	scheduler := &recordScheduler{}
	st := &memStore{}
	clock := &apiClock{now: time.Date(2026, 2, 4, 12, 0, 0, 0, time.Local)}

	eng := engine.New(st, noRemote{}, sessions, scheduler, domain.Thresholds{1, 3, 6}, log.Logger,
		engine.WithClock(clock.Now))
	sessions.OnChange(func() { eng.OnSessionChanged(context.Background()) })
	eng.Start(context.Background())
	require.Eventually(t, func() bool {
		return !eng.Output().IsLoading
	}, 2*time.Second, 5*time.Millisecond)

	router := chi.NewRouter()
	humaConfig := huma.DefaultConfig("ReadMark Rank Agent Test", Version)
	humaAPI := humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s := &Server{
		engine:   eng,
		sessions: sessions,
		tracker:  tracker,
		store:    st,
		router:   router,
		api:      humaAPI,
		logger:   log.Logger,
	}
	s.setupRoutes()

	return &testServer{
		Server:   s,
		api:      humatest.Wrap(t, humaAPI),
		key:      key,
		clock:    clock,
		sessions: sessions,
	}
}

func (ts *testServer) mintToken(t *testing.T, userID string) string {
	t.Helper()

	now := time.Now()
	token := paseto.NewToken()
	token.SetIssuer("readmark-api")
	token.SetAudience("readmark-client")
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(time.Hour))
	_ = token.Set("user_id", userID)
	_ = token.Set("email", userID+"@readmark.app")
	return token.V4Encrypt(ts.key, nil)
}

func decodeRank(t *testing.T, body []byte) engine.Output {
	t.Helper()
	var out engine.Output
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestGetRank_Defaults(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/rank")
	require.Equal(t, http.StatusOK, resp.Code)

	out := decodeRank(t, resp.Body.Bytes())
	assert.False(t, out.IsLoading)
	assert.Equal(t, 0, out.Rank)
	assert.Equal(t, 0, out.Progress)
	assert.Equal(t, 6, out.MaxProgress)
}

func TestIncrementRank_AdvancesOncePerDay(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/rank/increment")
	require.Equal(t, http.StatusOK, resp.Code)
	out := decodeRank(t, resp.Body.Bytes())
	assert.Equal(t, 1, out.Progress)
	assert.Equal(t, 1, out.Rank)
	assert.True(t, out.LevelUp)

	// Same day: still 200, nothing changes.
	resp = ts.api.Post("/api/v1/rank/increment")
	require.Equal(t, http.StatusOK, resp.Code)
	out = decodeRank(t, resp.Body.Bytes())
	assert.Equal(t, 1, out.Progress)
}

func TestIncrementRank_AnonymousCeilingConflict(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/rank/increment")
	require.Equal(t, http.StatusOK, resp.Code)

	ts.clock.Advance(24 * time.Hour)
	resp = ts.api.Post("/api/v1/rank/increment")
	assert.Equal(t, http.StatusConflict, resp.Code)

	var apiErr APIError
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &apiErr))
	assert.Equal(t, "CEILING_REACHED", apiErr.Code)
}

func TestConfirmLevelUp_AnonymousCollapsesRank(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/rank/increment")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Post("/api/v1/rank/confirm")
	require.Equal(t, http.StatusOK, resp.Code)
	out := decodeRank(t, resp.Body.Bytes())
	assert.Equal(t, 0, out.Rank)
	assert.Equal(t, 1, out.Progress)
	assert.False(t, out.LevelUp)
}

func TestUpdateSession_TokenHandover(t *testing.T) {
	ts := setupTestServer(t)

	token := ts.mintToken(t, "user-a")
	resp := ts.api.Post("/api/v1/session", map[string]any{"token": token})
	require.Equal(t, http.StatusOK, resp.Code)

	var body SessionResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, body.Authenticated)
	assert.Equal(t, "user-a", body.UserID)

	user := ts.sessions.CurrentUser()
	require.NotNil(t, user)
	assert.Equal(t, "user-a", user.ID)
}

func TestUpdateSession_EmptyTokenSignsOut(t *testing.T) {
	ts := setupTestServer(t)

	token := ts.mintToken(t, "user-a")
	resp := ts.api.Post("/api/v1/session", map[string]any{"token": token})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Post("/api/v1/session", map[string]any{"token": ""})
	require.Equal(t, http.StatusOK, resp.Code)

	var body SessionResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.False(t, body.Authenticated)
	assert.Nil(t, ts.sessions.CurrentUser())
}

func TestUpdateSession_InvalidTokenUnauthorized(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/session", map[string]any{"token": "v4.local.garbage"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	var apiErr APIError
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &apiErr))
	assert.Equal(t, "UNAUTHORIZED", apiErr.Code)
}

func TestReportVisibility_TogglesTracker(t *testing.T) {
	ts := setupTestServer(t)

	require.True(t, ts.tracker.Visible())

	resp := ts.api.Post("/api/v1/visibility", map[string]any{"visible": false})
	require.Equal(t, http.StatusNoContent, resp.Code)
	assert.False(t, ts.tracker.Visible())

	resp = ts.api.Post("/api/v1/visibility", map[string]any{"visible": true})
	require.Equal(t, http.StatusNoContent, resp.Code)
	assert.True(t, ts.tracker.Visible())
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	ts.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data    HealthResponse `json:"data"`
		Success bool           `json:"success"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, "healthy", envelope.Data.Status)
	assert.Equal(t, Version, envelope.Data.Version)
	assert.Contains(t, envelope.Data.Components, "database")
	assert.Contains(t, envelope.Data.Components, "engine")
}

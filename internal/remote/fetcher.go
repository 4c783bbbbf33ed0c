// Package remote fetches the authoritative rank snapshot from the
// ReadMark API. Results are cached per user key so repeated reconciliation
// passes do not refetch, and concurrent passes share one in-flight request.
package remote

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/readmarkapp/readmark-agent/internal/domain"
	"github.com/readmarkapp/readmark-agent/internal/errors"
	"github.com/readmarkapp/readmark-agent/internal/ratelimit"
)

// AnonymousKey is the cache key component used when no user is signed in.
const AnonymousKey = "anonymous"

// rankEnvelope is the wire shape of the rank endpoint response.
type rankEnvelope struct {
	Rank *rankDTO `json:"rank" validate:"required"`
}

type rankDTO struct {
	CurrentRank      int        `json:"current_rank" validate:"gte=0"`
	ProgressThisWeek int        `json:"progress_this_week" validate:"gte=0"`
	ReadToday        bool       `json:"read_today"`
	LastReadTime     *time.Time `json:"last_read_time"`
}

// Fetcher retrieves authoritative snapshots over HTTP.
type Fetcher struct {
	baseURL  string
	deviceID string
	client   *http.Client
	limiter  *ratelimit.KeyedRateLimiter
	validate *validator.Validate
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string]*cacheEntry
}

// cacheEntry is a fetch result shared by concurrent callers. ready is
// closed once snap/err are populated.
type cacheEntry struct {
	ready chan struct{}
	snap  *domain.RankSnapshot
	err   error
}

// NewFetcher creates a fetcher against the given API base URL. deviceID is
// sent with every request so the API can attribute device activity.
func NewFetcher(baseURL, deviceID string, timeout time.Duration, limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		baseURL:  baseURL,
		deviceID: deviceID,
		client:   &http.Client{Timeout: timeout},
		limiter:  limiter,
		validate: validator.New(),
		logger:   logger,
		cache:    make(map[string]*cacheEntry),
	}
}

// CacheKey derives the de-duplication key for a user id.
func CacheKey(userID string) string {
	if userID == "" {
		userID = AnonymousKey
	}
	return userID + ":rank"
}

// Fetch returns the authoritative snapshot for the user.
//
// Returns (nil, nil) when the user has no remote rank yet (404), which is
// distinct from a transport failure. Successful and not-found results are
// cached under the user key; failures are not, so the next pass retries.
func (f *Fetcher) Fetch(ctx context.Context, userID string) (*domain.RankSnapshot, error) {
	key := CacheKey(userID)

	f.mu.Lock()
	entry, exists := f.cache[key]
	if !exists {
		entry = &cacheEntry{ready: make(chan struct{})}
		f.cache[key] = entry
	}
	f.mu.Unlock()

	if exists {
		select {
		case <-entry.ready:
			return entry.snap, entry.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	entry.snap, entry.err = f.fetch(ctx, userID, key)
	close(entry.ready)

	// Drop failed fetches from the cache so a later pass can retry.
	if entry.err != nil {
		f.mu.Lock()
		delete(f.cache, key)
		f.mu.Unlock()
	}

	return entry.snap, entry.err
}

// Invalidate drops any cached result for the user.
func (f *Fetcher) Invalidate(userID string) {
	f.mu.Lock()
	delete(f.cache, CacheKey(userID))
	f.mu.Unlock()
}

// fetch performs the HTTP request.
func (f *Fetcher) fetch(ctx context.Context, userID, key string) (*domain.RankSnapshot, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, key); err != nil {
			return nil, err
		}
	}

	url := fmt.Sprintf("%s/api/v1/users/%s/rank", f.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build rank request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Device-ID", f.deviceID)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Unavailable("rank fetch failed").WithCause(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// The user exists but has no rank yet.
		f.logger.Debug("no remote rank", "user_id", userID)
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, errors.Unavailablef("rank fetch returned %d", resp.StatusCode)
	}

	var envelope rankEnvelope
	if err := json.UnmarshalRead(resp.Body, &envelope); err != nil {
		// Malformed body is treated as the default snapshot, not a failure.
		f.logger.Warn("malformed rank response", "user_id", userID, "error", err)
		snap := domain.DefaultSnapshot()
		return &snap, nil
	}

	if err := f.validate.Struct(envelope); err != nil {
		f.logger.Warn("invalid rank response shape", "user_id", userID, "error", err)
		snap := domain.DefaultSnapshot()
		return &snap, nil
	}

	snap := domain.RankSnapshot{
		CurrentRank:      envelope.Rank.CurrentRank,
		ProgressThisWeek: envelope.Rank.ProgressThisWeek,
		ReadToday:        envelope.Rank.ReadToday,
		LastReadTime:     envelope.Rank.LastReadTime,
	}

	f.logger.Info("fetched remote rank",
		"user_id", userID,
		"rank", snap.CurrentRank,
		"progress", snap.ProgressThisWeek,
	)

	return &snap, nil
}

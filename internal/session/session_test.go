package session

import (
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readmarkapp/readmark-agent/internal/errors"
)

// mintToken builds a v4.local token the way the ReadMark API does.
func mintToken(t *testing.T, key paseto.V4SymmetricKey, userID, email string, expiresIn time.Duration) string {
	t.Helper()

	now := time.Now()
	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetAudience(tokenAudience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(expiresIn))
	if userID != "" {
		_ = token.Set("user_id", userID)
	}
	_ = token.Set("email", email)

	return token.V4Encrypt(key, nil)
}

func newVerifier(t *testing.T) (*TokenVerifier, paseto.V4SymmetricKey) {
	t.Helper()

	key := paseto.NewV4SymmetricKey()
	verifier, err := NewTokenVerifier(key.ExportHex())
	require.NoError(t, err)
	return verifier, key
}

func TestNewTokenVerifier_RejectsBadKeys(t *testing.T) {
	_, err := NewTokenVerifier("short")
	assert.Error(t, err)

	_, err = NewTokenVerifier("zz" + "00000000000000000000000000000000000000000000000000000000000000")
	assert.Error(t, err)
}

func TestVerify_ValidToken(t *testing.T) {
	verifier, key := newVerifier(t)

	token := mintToken(t, key, "user-a", "a@readmark.app", time.Hour)
	claims, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-a", claims.UserID)
	assert.Equal(t, "a@readmark.app", claims.Email)
}

func TestVerify_ExpiredToken(t *testing.T) {
	verifier, key := newVerifier(t)

	token := mintToken(t, key, "user-a", "a@readmark.app", -time.Minute)
	_, err := verifier.Verify(token)
	assert.Error(t, err)
}

func TestVerify_WrongKey(t *testing.T) {
	verifier, _ := newVerifier(t)
	otherKey := paseto.NewV4SymmetricKey()

	token := mintToken(t, otherKey, "user-a", "a@readmark.app", time.Hour)
	_, err := verifier.Verify(token)
	assert.Error(t, err)
}

func TestVerify_MissingUserID(t *testing.T) {
	verifier, key := newVerifier(t)

	token := mintToken(t, key, "", "a@readmark.app", time.Hour)
	_, err := verifier.Verify(token)
	assert.Error(t, err)
}

func TestManager_StartsUnrefreshed(t *testing.T) {
	verifier, _ := newVerifier(t)
	m := NewManager(verifier, slog.Default())

	assert.Nil(t, m.CurrentUser())
	assert.False(t, m.TokenRefreshed(), "before any handover the session is not trusted anonymous")
}

func TestManager_SetTokenEstablishesSession(t *testing.T) {
	verifier, key := newVerifier(t)
	m := NewManager(verifier, slog.Default())

	var changes atomic.Int32
	m.OnChange(func() { changes.Add(1) })

	token := mintToken(t, key, "user-a", "a@readmark.app", time.Hour)
	require.NoError(t, m.SetToken(token))

	user := m.CurrentUser()
	require.NotNil(t, user)
	assert.Equal(t, "user-a", user.ID)
	assert.True(t, m.TokenRefreshed())
	assert.Equal(t, int32(1), changes.Load())
}

func TestManager_InvalidTokenLeavesSessionUntouched(t *testing.T) {
	verifier, key := newVerifier(t)
	m := NewManager(verifier, slog.Default())

	token := mintToken(t, key, "user-a", "a@readmark.app", time.Hour)
	require.NoError(t, m.SetToken(token))

	err := m.SetToken("v4.local.garbage")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))

	user := m.CurrentUser()
	require.NotNil(t, user)
	assert.Equal(t, "user-a", user.ID)
}

func TestManager_ClearIsAffirmativeSignOut(t *testing.T) {
	verifier, key := newVerifier(t)
	m := NewManager(verifier, slog.Default())

	var changes atomic.Int32
	m.OnChange(func() { changes.Add(1) })

	token := mintToken(t, key, "user-a", "a@readmark.app", time.Hour)
	require.NoError(t, m.SetToken(token))

	m.Clear()
	assert.Nil(t, m.CurrentUser())
	assert.True(t, m.TokenRefreshed())
	assert.Equal(t, int32(2), changes.Load())
}

func TestManager_NilVerifierRejectsTokens(t *testing.T) {
	m := NewManager(nil, slog.Default())

	err := m.SetToken("anything")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))

	// Sign-out still works without a verifier.
	m.Clear()
	assert.True(t, m.TokenRefreshed())
}

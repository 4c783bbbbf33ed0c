package session

import (
	"encoding/hex"
	"encoding/json/v2"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
)

const (
	tokenIssuer   = "readmark-api"
	tokenAudience = "readmark-client"

	// PASETO v4 symmetric key requirements.
	keyBytesSize = 32 // 256 bits
	keyHexSize   = 64 // 32 bytes as hex string
)

// AccessClaims are the claims carried by a ReadMark access token.
type AccessClaims struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	Expiration time.Time `json:"exp"`
}

// TokenVerifier verifies PASETO v4.local access tokens issued by the
// ReadMark API. The agent never mints tokens, it only checks the one the
// UI shell hands over.
type TokenVerifier struct {
	symmetricKey paseto.V4SymmetricKey
}

// NewTokenVerifier creates a verifier from the hex-encoded symmetric key.
func NewTokenVerifier(keyHex string) (*TokenVerifier, error) {
	if len(keyHex) != keyHexSize {
		return nil, fmt.Errorf("PASETO v4 key must be exactly %d hex characters (%d bytes), got %d", keyHexSize, keyBytesSize, len(keyHex))
	}

	keyBytes, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string for PASETO key: %w", err)
	}

	key, err := paseto.V4SymmetricKeyFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}

	return &TokenVerifier{symmetricKey: key}, nil
}

// Verify parses and validates an access token, returning its claims.
func (v *TokenVerifier) Verify(tokenString string) (*AccessClaims, error) {
	parser := paseto.NewParser()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.NotExpired())
	parser.AddRule(paseto.ValidAt(time.Now()))

	token, err := parser.ParseV4Local(v.symmetricKey, tokenString, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	var claims AccessClaims
	if err := json.Unmarshal(token.ClaimsJSON(), &claims); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token missing user_id claim")
	}

	return &claims, nil
}

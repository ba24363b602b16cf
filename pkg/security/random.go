package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// OpaqueToken is a random token validated only by server-side lookup.
type OpaqueToken struct {
	Token     string
	ExpiresAt time.Time
}

// GenerateSecureToken returns byteLength bytes from crypto/rand, hex encoded.
func GenerateSecureToken(byteLength int) (string, error) {
	if byteLength < 0 {
		return "", errors.New("token length must not be negative")
	}
	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// TokenGenerator mints opaque tokens with absolute expiry timestamps.
type TokenGenerator struct {
	now func() time.Time
}

func NewTokenGenerator(now func() time.Time) *TokenGenerator {
	if now == nil {
		now = time.Now
	}
	return &TokenGenerator{now: now}
}

func (g *TokenGenerator) Generate(byteLength int) (string, error) {
	return GenerateSecureToken(byteLength)
}

// ExpiringToken returns a fresh token that expires ttl from now.
func (g *TokenGenerator) ExpiringToken(byteLength int, ttl time.Duration) (OpaqueToken, error) {
	tok, err := GenerateSecureToken(byteLength)
	if err != nil {
		return OpaqueToken{}, err
	}
	return OpaqueToken{Token: tok, ExpiresAt: g.now().Add(ttl)}, nil
}

package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token purposes. A token minted for one purpose is rejected by callers
// expecting another.
const (
	PurposeAccess       = "access"
	PurposeMFAChallenge = "mfa_challenge"
)

// ErrInvalidToken is returned by Verify for any token that must not be trusted.
var ErrInvalidToken = errors.New("invalid token")

// Subject is the identity embedded into a signed token.
type Subject struct {
	UserID  string
	Role    string
	Purpose string
}

type Claims struct {
	UserID  string `json:"user_id"`
	Role    string `json:"role"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies HS256 tokens. The secret is fixed for the
// lifetime of the codec.
type TokenCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// CodecOption customizes a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewTokenCodec(secret, issuer string, opts ...CodecOption) *TokenCodec {
	c := &TokenCodec{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue creates a new JWT for s that stops verifying once ttl has elapsed.
func (c *TokenCodec) Issue(s Subject, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}

	// NumericDate has second precision. Truncate the issue time once and
	// derive the expiry from it, so exp is exactly the embedded iat plus ttl
	// (rounded up to a whole second).
	now := c.now().Truncate(time.Second)
	if rem := ttl % time.Second; rem != 0 {
		ttl += time.Second - rem
	}
	exp := now.Add(ttl)

	claims := Claims{
		UserID:  s.UserID,
		Role:    s.Role,
		Purpose: s.Purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   s.UserID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    c.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify parses and validates tokenString. Every failure, whether a bad
// signature, malformed input or expiry, is reported as ErrInvalidToken.
func (c *TokenCodec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.now),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}

	// jwt accepts now == exp; the token lifetime is half-open.
	if !c.now().Before(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
	}

	return claims, nil
}

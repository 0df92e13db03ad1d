package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes access tokens from refresh tokens. It is carried
// in the "type" claim so one kind can never stand in for the other.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

const bearerPrefix = "Bearer "

// Claims are the signed payload of every token.
type Claims struct {
	Type TokenKind `json:"type"`
	jwt.RegisteredClaims
}

// TokenSigner issues and verifies HS256 tokens with a single symmetric key.
type TokenSigner struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      Clock
	parser     *jwt.Parser
}

func NewTokenSigner(key []byte, accessTTL, refreshTTL time.Duration, clock Clock) (*TokenSigner, error) {
	if len(key) == 0 {
		return nil, errors.New("token signer: empty signing key")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token signer: lifetimes must be positive")
	}
	if clock == nil {
		clock = NewRealClock()
	}
	return &TokenSigner{
		key:        key,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		clock:      clock,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(clock.Now),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

// TTL returns the configured lifetime for kind.
func (s *TokenSigner) TTL(kind TokenKind) time.Duration {
	if kind == KindRefresh {
		return s.refreshTTL
	}
	return s.accessTTL
}

// Issue signs a token for userID. Every token carries a random jti, so two
// tokens issued within the same second still differ.
func (s *TokenSigner) Issue(userID string, kind TokenKind) (string, error) {
	if kind != KindAccess && kind != KindRefresh {
		return "", fmt.Errorf("issue token: unknown kind %q", kind)
	}
	now := s.clock.Now()
	claims := Claims{
		Type: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.TTL(kind))),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	tokensIssuedTotal.WithLabelValues(string(kind)).Inc()
	return signed, nil
}

// Verify checks signature, expiry and kind and returns the subject. An
// optional "Bearer " prefix is ignored.
func (s *TokenSigner) Verify(token string, expected TokenKind) (string, error) {
	raw := StripBearer(token)
	if raw == "" {
		return "", ErrMalformedToken
	}

	var claims Claims
	_, err := s.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrTokenExpired
	default:
		return "", ErrMalformedToken
	}

	if claims.Subject == "" {
		return "", ErrMalformedToken
	}
	if claims.Type != expected {
		return "", ErrWrongKind
	}
	return claims.Subject, nil
}

// StripBearer removes a leading "Bearer " scheme and surrounding spaces.
func StripBearer(token string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), bearerPrefix))
}

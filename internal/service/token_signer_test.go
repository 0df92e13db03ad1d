package service

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte(strings.Repeat("k", 32))

func newTestSigner(t *testing.T, clock Clock) *TokenSigner {
	t.Helper()
	s, err := NewTokenSigner(testKey, 15*time.Minute, 30*24*time.Hour, clock)
	require.NoError(t, err)
	return s
}

func TestTokenSigner_RoundTrip(t *testing.T) {
	s := newTestSigner(t, NewMockClock(time.Now()))

	for _, kind := range []TokenKind{KindAccess, KindRefresh} {
		tok, err := s.Issue("user-1", kind)
		require.NoError(t, err)

		sub, err := s.Verify(tok, kind)
		require.NoError(t, err)
		assert.Equal(t, "user-1", sub)
	}
}

func TestTokenSigner_AcceptsBearerPrefix(t *testing.T) {
	s := newTestSigner(t, NewMockClock(time.Now()))
	tok, err := s.Issue("user-1", KindAccess)
	require.NoError(t, err)

	sub, err := s.Verify("Bearer "+tok, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)
}

func TestTokenSigner_WrongKind(t *testing.T) {
	s := newTestSigner(t, NewMockClock(time.Now()))
	access, err := s.Issue("user-1", KindAccess)
	require.NoError(t, err)
	refresh, err := s.Issue("user-1", KindRefresh)
	require.NoError(t, err)

	_, err = s.Verify(access, KindRefresh)
	assert.ErrorIs(t, err, ErrWrongKind)
	_, err = s.Verify(refresh, KindAccess)
	assert.ErrorIs(t, err, ErrWrongKind)
}

func TestTokenSigner_Expiry(t *testing.T) {
	clock := NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s := newTestSigner(t, clock)
	tok, err := s.Issue("user-1", KindAccess)
	require.NoError(t, err)

	clock.Advance(15*time.Minute - time.Second)
	_, err = s.Verify(tok, KindAccess)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = s.Verify(tok, KindAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenSigner_Malformed(t *testing.T) {
	s := newTestSigner(t, NewMockClock(time.Now()))
	tok, err := s.Issue("user-1", KindAccess)
	require.NoError(t, err)

	other, err := NewTokenSigner([]byte(strings.Repeat("x", 32)), time.Minute, time.Hour, NewMockClock(time.Now()))
	require.NoError(t, err)
	foreign, err := other.Issue("user-1", KindAccess)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	foreignParts := strings.Split(foreign, ".")
	tampered := parts[0] + "." + parts[1] + "." + foreignParts[2]

	cases := map[string]string{
		"empty":           "",
		"bearer only":     "Bearer ",
		"garbage":         "not.a.jwt",
		"foreign key":     foreign,
		"tampered":        tampered,
		"truncated":       tok[:len(tok)/2],
		"unsigned (none)": unsignedToken(t),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.Verify(in, KindAccess)
			assert.ErrorIs(t, err, ErrMalformedToken)
		})
	}
}

func TestTokenSigner_MissingSubjectIsMalformed(t *testing.T) {
	now := time.Now()
	claims := Claims{
		Type: KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testKey)
	require.NoError(t, err)

	_, err = newTestSigner(t, NewMockClock(now)).Verify(tok, KindAccess)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestTokenSigner_MissingExpiryIsMalformed(t *testing.T) {
	claims := Claims{Type: KindAccess, RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testKey)
	require.NoError(t, err)

	_, err = newTestSigner(t, NewMockClock(time.Now())).Verify(tok, KindAccess)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestTokenSigner_SameSecondTokensDiffer(t *testing.T) {
	s := newTestSigner(t, NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	a, err := s.Issue("user-1", KindRefresh)
	require.NoError(t, err)
	b, err := s.Issue("user-1", KindRefresh)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestNewTokenSigner_Validates(t *testing.T) {
	_, err := NewTokenSigner(nil, time.Minute, time.Hour, nil)
	assert.Error(t, err)
	_, err = NewTokenSigner(testKey, 0, time.Hour, nil)
	assert.Error(t, err)
}

func TestStripBearer(t *testing.T) {
	assert.Equal(t, "abc", StripBearer("Bearer abc"))
	assert.Equal(t, "abc", StripBearer("  Bearer abc "))
	assert.Equal(t, "abc", StripBearer("abc"))
}

func unsignedToken(t *testing.T) string {
	t.Helper()
	claims := Claims{
		Type: KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return tok
}

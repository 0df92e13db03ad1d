package service

import "errors"

type ErrorKind string

const (
	KindDuplicateEmail      ErrorKind = "DUPLICATE_EMAIL"
	KindInvalidCredentials  ErrorKind = "INVALID_CREDENTIALS"
	KindInvalidRefreshToken ErrorKind = "INVALID_REFRESH_TOKEN"
	KindExpiredRefreshToken ErrorKind = "EXPIRED_REFRESH_TOKEN"
)

// AuthError is a business-rule failure of the auth core. Two AuthErrors
// match under errors.Is when their kinds are equal, so wrapped or
// cause-carrying values still compare against the sentinels below.
type AuthError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}

var (
	ErrDuplicateEmail = &AuthError{
		Kind:    KindDuplicateEmail,
		Message: "email already registered",
	}
	ErrInvalidCredentials = &AuthError{
		Kind:    KindInvalidCredentials,
		Message: "invalid credentials",
	}
	ErrInvalidRefreshToken = &AuthError{
		Kind:    KindInvalidRefreshToken,
		Message: "invalid refresh token",
	}
	ErrExpiredRefreshToken = &AuthError{
		Kind:    KindExpiredRefreshToken,
		Message: "refresh token expired",
	}
)

// Token verification outcomes. Library parse errors never escape the signer.
var (
	ErrMalformedToken = errors.New("malformed token")
	ErrTokenExpired   = errors.New("token expired")
	ErrWrongKind      = errors.New("wrong token kind")
)

package middleware

// identity.go carries the authenticated user id through the request
// context. Only Authenticate writes it; handlers read it with UserIDFrom
// instead of pulling values out of the echo context.

import "context"

type ctxKey int

const userIDKey ctxKey = iota

// WithUserID returns a copy of ctx carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFrom returns the user id attached by Authenticate, if any.
func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

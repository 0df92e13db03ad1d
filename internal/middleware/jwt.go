package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/notes-auth/internal/logging"
	"github.com/iliyamo/notes-auth/internal/service"
)

// TokenVerifier checks a token of the expected kind and returns its subject.
type TokenVerifier interface {
	Verify(token string, expected service.TokenKind) (string, error)
}

const bearerPrefix = "Bearer "

// Authenticate returns an Echo middleware that requires a valid access
// token in the Authorization header. Requests without one are answered with
// 401 before the wrapped handler runs; otherwise the token's subject is
// attached to the request context (see UserIDFrom).
func Authenticate(verifier TokenVerifier, log logging.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = logging.Discard()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			auth := req.Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, bearerPrefix) {
				return unauthorized(c)
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, bearerPrefix))
			if raw == "" {
				return unauthorized(c)
			}

			userID, err := verifier.Verify(raw, service.KindAccess)
			if err != nil {
				log.Debug(req.Context(), "access token rejected", "error", err, "path", c.Path())
				return unauthorized(c)
			}

			c.SetRequest(req.WithContext(WithUserID(req.Context(), userID)))
			return next(c)
		}
	}
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// RequireUserID is a helper for handlers behind Authenticate.
func RequireUserID(ctx context.Context) (string, error) {
	id, ok := UserIDFrom(ctx)
	if !ok {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return id, nil
}

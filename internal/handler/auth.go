package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/notes-auth/internal/logging"
	"github.com/iliyamo/notes-auth/internal/model"
	"github.com/iliyamo/notes-auth/internal/service"
)

const requestTimeout = 5 * time.Second

// Authenticator is the auth core as seen by HTTP handlers.
type Authenticator interface {
	Register(ctx context.Context, email, password string) (model.User, error)
	Login(ctx context.Context, email, password string) (service.TokenPair, error)
	Refresh(ctx context.Context, presented string) (service.TokenPair, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth Authenticator
	Log  logging.Logger
}

func NewAuthHandler(auth Authenticator, log logging.Logger) *AuthHandler {
	if log == nil {
		log = logging.Discard()
	}
	return &AuthHandler{Auth: auth, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type registerResp struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type tokenPairResp struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Register creates an account. Tokens are obtained with a separate login.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Auth.Register(ctx, req.Email, req.Password)
	if err != nil {
		return h.writeAuthError(c, err)
	}
	return c.JSON(http.StatusOK, registerResp{ID: u.ID, Email: u.Email})
}

// Login verifies credentials and returns a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	pair, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return h.writeAuthError(c, err)
	}
	return c.JSON(http.StatusOK, tokenPairResp{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// Refresh redeems a refresh token for a rotated pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	pair, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return h.writeAuthError(c, err)
	}
	return c.JSON(http.StatusOK, tokenPairResp{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// writeAuthError maps auth core failures to fixed statuses and generic
// bodies. Anything unrecognised is logged and reported as a 500.
func (h *AuthHandler) writeAuthError(c echo.Context, err error) error {
	var ae *service.AuthError
	if errors.As(err, &ae) {
		switch ae.Kind {
		case service.KindDuplicateEmail:
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		case service.KindInvalidCredentials:
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		case service.KindInvalidRefreshToken:
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		case service.KindExpiredRefreshToken:
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "refresh token expired"})
		}
	}
	h.Log.Error(c.Request().Context(), "auth request failed", "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

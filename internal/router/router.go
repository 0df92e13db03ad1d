// Package router registers HTTP routes. Auth endpoints are public; every
// /api route sits behind the access token gate.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/notes-auth/internal/handler"
	"github.com/iliyamo/notes-auth/internal/logging"
	"github.com/iliyamo/notes-auth/internal/middleware"
)

// Deps are the collaborators routes are wired to.
type Deps struct {
	Auth     *handler.AuthHandler
	Notes    *handler.NoteHandler
	Verifier middleware.TokenVerifier
	Cache    *middleware.ResponseCache
	Log      logging.Logger
}

// RegisterRoutes registers operational endpoints that need no authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers register, login and refresh under /auth.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
}

// RegisterNotes registers the protected note routes under /api. Only the
// list is cached, and the cache runs after the gate so entries are keyed by
// the verified caller.
func RegisterNotes(e *echo.Echo, n *handler.NoteHandler, verifier middleware.TokenVerifier, cache *middleware.ResponseCache, log logging.Logger) {
	api := e.Group("/api")
	api.Use(middleware.Authenticate(verifier, log))

	api.POST("/notes", n.Save)
	api.GET("/notes", n.List, cache.Middleware())
	api.DELETE("/notes/:id", n.Delete)
}

// Register wires every route group onto e.
func Register(e *echo.Echo, d Deps) {
	e.Validator = handler.NewRequestValidator()
	RegisterRoutes(e)
	RegisterAuth(e, d.Auth)
	RegisterNotes(e, d.Notes, d.Verifier, d.Cache, d.Log)
}

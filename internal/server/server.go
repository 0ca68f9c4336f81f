package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/hongminglow/lms-be/internal/auth"
	"github.com/hongminglow/lms-be/internal/config"
	"github.com/hongminglow/lms-be/internal/http/handlers"
	"github.com/hongminglow/lms-be/internal/http/respond"
	"github.com/hongminglow/lms-be/internal/metrics"
	"github.com/hongminglow/lms-be/internal/middleware"
	"github.com/hongminglow/lms-be/internal/users"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Auth      *auth.Service
	Gate      *auth.Gate
	Directory *users.Directory
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, deps Deps, log zerolog.Logger) *Server {
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           NewRouter(cfg, deps, log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return &Server{inner: httpServer}
}

// NewRouter builds the full handler tree. Every API route is served both at
// the root and under cfg.APIPrefix.
func NewRouter(cfg config.Config, deps Deps, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		middleware.Logging(log),
		chimw.Recoverer,
		middleware.Metrics,
		middleware.CORS(cfg.CORSOrigins),
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, r, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, r, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	handlers.NewHealthHandler(time.Now(), deps.Directory).Register(r)
	r.Handle("/metrics", metrics.Handler())

	api := func(r chi.Router) {
		handlers.NewAuthHandler(deps.Auth).Register(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(deps.Gate), middleware.RequireActive)
			handlers.NewUsersHandler(deps.Directory).Register(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(deps.Gate), middleware.Require(auth.Chain(auth.RequireActive, auth.RequireAdmin)))
			handlers.NewAdminHandler(deps.Directory).Register(r)
		})
	}

	api(r)
	if cfg.APIPrefix != "" && cfg.APIPrefix != "/" {
		r.Route(cfg.APIPrefix, api)
	}
	return r
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}

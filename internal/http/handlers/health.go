package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hongminglow/lms-be/internal/http/respond"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler returns uptime and readiness.
type HealthHandler struct {
	startedAt time.Time
	db        Pinger
}

// NewHealthHandler creates a health endpoint handler.
func NewHealthHandler(startedAt time.Time, db Pinger) *HealthHandler {
	return &HealthHandler{startedAt: startedAt, db: db}
}

// Register wires the handler into r.
func (h *HealthHandler) Register(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)
}

func (h *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Truncate(time.Second).String(),
	})
}

func (h *HealthHandler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		respond.Error(w, r, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	respond.JSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

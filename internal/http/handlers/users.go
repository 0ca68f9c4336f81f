package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hongminglow/lms-be/internal/apperr"
	"github.com/hongminglow/lms-be/internal/auth"
	"github.com/hongminglow/lms-be/internal/http/respond"
	"github.com/hongminglow/lms-be/internal/middleware"
	"github.com/hongminglow/lms-be/internal/models"
	"github.com/hongminglow/lms-be/internal/models/dto"
	"github.com/hongminglow/lms-be/internal/users"
)

// UsersHandler serves the caller's own profile. Routes expect an active,
// authenticated principal in the request context.
type UsersHandler struct {
	dir *users.Directory
}

func NewUsersHandler(dir *users.Directory) *UsersHandler {
	return &UsersHandler{dir: dir}
}

func (h *UsersHandler) Register(r chi.Router) {
	r.Get("/users/me", h.handleGetMe)
	r.Put("/users/me", h.handleUpdateMe)
}

func (h *UsersHandler) handleGetMe(w http.ResponseWriter, r *http.Request) {
	me, err := principal(r)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respondUser(w, r, http.StatusOK, me)
}

func (h *UsersHandler) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	me, err := principal(r)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	var req dto.UpdateMeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}
	updated, err := h.dir.Update(r.Context(), me.ID, users.Update{
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respondUser(w, r, http.StatusOK, updated)
}

func principal(r *http.Request) (models.User, error) {
	u, ok := middleware.CurrentUser(r.Context())
	if !ok {
		return models.User{}, apperr.Unauthorized(auth.MsgCouldNotValidate)
	}
	return u, nil
}

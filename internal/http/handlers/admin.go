package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hongminglow/lms-be/internal/apperr"
	"github.com/hongminglow/lms-be/internal/auth"
	"github.com/hongminglow/lms-be/internal/http/respond"
	"github.com/hongminglow/lms-be/internal/models"
	"github.com/hongminglow/lms-be/internal/models/dto"
	"github.com/hongminglow/lms-be/internal/users"
)

// AdminHandler manages the user directory. Routes expect an active admin
// principal in the request context.
type AdminHandler struct {
	dir *users.Directory
}

func NewAdminHandler(dir *users.Directory) *AdminHandler {
	return &AdminHandler{dir: dir}
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Route("/admin/users", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
	})
}

func (h *AdminHandler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, err := queryInt(q.Get("skip"), 0)
	if err != nil {
		respond.Err(w, r, apperr.BadRequest("skip must be a non-negative integer"))
		return
	}
	limit, err := queryInt(q.Get("limit"), users.DefaultListLimit)
	if err != nil {
		respond.Err(w, r, apperr.BadRequest("limit must be a non-negative integer"))
		return
	}

	list, err := h.dir.List(r.Context(), models.ListFilter{
		Search: strings.TrimSpace(q.Get("search")),
		Offset: skip,
		Limit:  limit,
	})
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respondUsers(w, r, list)
}

func (h *AdminHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	user, err := h.dir.FindByID(r.Context(), id)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	if user == nil {
		respond.Err(w, r, apperr.NotFound(auth.MsgUserNotFound))
		return
	}
	respondUser(w, r, http.StatusOK, *user)
}

func (h *AdminHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	var req dto.AdminUpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}

	upd := users.Update{
		Email:    req.Email,
		Username: req.Username,
		FullName: req.FullName,
		Password: req.Password,
		IsActive: req.IsActive,
	}
	if req.Role != nil {
		role, ok := models.ParseRole(*req.Role)
		if !ok {
			respond.Err(w, r, apperr.BadRequest("invalid role"))
			return
		}
		upd.Role = &role
	}

	updated, err := h.dir.Update(r.Context(), id, upd)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respondUser(w, r, http.StatusOK, updated)
}

func userID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperr.BadRequest("Invalid user ID format")
	}
	return id, nil
}

func queryInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}

package handlers

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hongminglow/lms-be/internal/apperr"
	"github.com/hongminglow/lms-be/internal/auth"
	"github.com/hongminglow/lms-be/internal/http/respond"
	"github.com/hongminglow/lms-be/internal/models/dto"
)

// AuthHandler owns the account lifecycle endpoints under /auth.
type AuthHandler struct {
	svc *auth.Service
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Register attaches auth routes to r.
func (h *AuthHandler) Register(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
		r.Post("/forgot-password", h.handleForgotPassword)
		r.Post("/reset-password", h.handleResetPassword)
		r.Get("/verify-email", h.handleVerifyEmail)
		r.Post("/verify-email", h.handleVerifyEmail)
		r.Post("/resend-verification", h.handleResendVerification)
	})
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}
	user, err := h.svc.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respondUser(w, r, http.StatusCreated, user)
}

// handleLogin accepts the OAuth2 password form and, for convenience, JSON.
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := bindLogin(w, r)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	token, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, token)
}

func (h *AuthHandler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.EmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}
	respondMessage(w, r, h.svc.RequestPasswordReset(r.Context(), req.Email))
}

func (h *AuthHandler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}
	if err := h.svc.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		respond.Err(w, r, err)
		return
	}
	respondMessage(w, r, auth.MsgPasswordReset)
}

// handleVerifyEmail takes the token from the query string on GET (links in
// emails) and from the JSON body on POST.
func (h *AuthHandler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyEmailRequest
	if r.Method == http.MethodGet {
		req.Token = strings.TrimSpace(r.URL.Query().Get("token"))
		if err := validateRequest(&req); err != nil {
			respond.Err(w, r, err)
			return
		}
	} else if err := decodeJSON(w, r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}

	result, err := h.svc.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		respond.Err(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, dto.VerifyEmailResponse{
		Success: true,
		Message: result.Message(),
		Email:   result.Email,
	})
}

func (h *AuthHandler) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req dto.EmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Err(w, r, err)
		return
	}
	respondMessage(w, r, h.svc.ResendVerification(r.Context(), req.Email))
}

func bindLogin(w http.ResponseWriter, r *http.Request) (dto.LoginRequest, error) {
	var req dto.LoginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return req, apperr.BadRequest("invalid form payload")
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
		return req, validateRequest(&req)
	default:
		err := decodeJSON(w, r, &req)
		return req, err
	}
}

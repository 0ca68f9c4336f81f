// Package respond writes JSON responses and translates application errors
// into HTTP statuses.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hongminglow/lms-be/internal/apperr"
)

// Envelope is the error body shared by every endpoint.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON writes payload as the response body.
func JSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("respond: encode payload failed")
	}
}

// Error writes an error response with the shared envelope structure.
func Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	JSON(w, r, status, Envelope{Code: status, Message: message})
}

// Err maps err to a status. Unauthorized responses carry a Bearer challenge
// and internal causes are logged but never exposed.
func Err(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(apperr.KindOf(err))
	message := "Internal server error"
	var ae *apperr.Error
	if status != http.StatusInternalServerError && errors.As(err, &ae) {
		message = ae.Message
	} else {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	Error(w, r, status, message)
}

// StatusOf returns the HTTP status for an error kind.
func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

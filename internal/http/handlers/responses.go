package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/hongminglow/lms-be/internal/apperr"
	"github.com/hongminglow/lms-be/internal/http/respond"
	"github.com/hongminglow/lms-be/internal/models"
	"github.com/hongminglow/lms-be/internal/models/dto"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.BadRequest("request body is required")
		}
		return apperr.BadRequest("invalid JSON payload")
	}
	return validateRequest(dst)
}

func respondUser(w http.ResponseWriter, r *http.Request, status int, u models.User) {
	respond.JSON(w, r, status, u)
}

func respondUsers(w http.ResponseWriter, r *http.Request, list []models.User) {
	if list == nil {
		list = []models.User{}
	}
	respond.JSON(w, r, http.StatusOK, list)
}

func respondMessage(w http.ResponseWriter, r *http.Request, message string) {
	respond.JSON(w, r, http.StatusOK, dto.MessageResponse{Message: message})
}

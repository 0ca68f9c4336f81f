package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hongminglow/lms-be/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// UserStore captures persistence operations needed by the user directory.
// Emails are compared case-insensitively; implementations store them lower-cased.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, patch models.UserPatch) (models.User, error)
	SetVerified(ctx context.Context, id uuid.UUID) error
	SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ListUsers(ctx context.Context, filter models.ListFilter) ([]models.User, error)
	Ping(ctx context.Context) error
}

// Package users implements the user directory: lookups and lifecycle
// mutations over a storage.UserStore.
package users

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/hongminglow/lms-be/internal/apperr"
	"github.com/hongminglow/lms-be/internal/models"
	"github.com/hongminglow/lms-be/internal/storage"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// PasswordHasher turns a plaintext password into a storable digest. A
// password the hasher cannot accept is reported as an *apperr.Error.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// NewUser carries the fields needed to create a user. Password is plaintext
// and is hashed before it reaches the store.
type NewUser struct {
	Email      string
	Username   string
	Password   string
	FullName   *string
	Role       models.Role
	IsActive   bool
	IsVerified bool
}

// Update is a partial update with exclude-unset semantics.
type Update struct {
	Email    *string
	Username *string
	FullName *string
	Password *string
	Role     *models.Role
	IsActive *bool
}

// Directory owns user records.
type Directory struct {
	store  storage.UserStore
	hasher PasswordHasher
}

// NewDirectory constructs a Directory.
func NewDirectory(store storage.UserStore, hasher PasswordHasher) *Directory {
	return &Directory{store: store, hasher: hasher}
}

// FindByEmail returns nil when no user has the email.
func (d *Directory) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return optional(d.store.FindByEmail(ctx, normEmail(email)))
}

// FindByUsername returns nil when no user has the username.
func (d *Directory) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return optional(d.store.FindByUsername(ctx, strings.TrimSpace(username)))
}

// FindByID returns nil when no user has the id.
func (d *Directory) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return optional(d.store.FindByID(ctx, id))
}

// Create inserts a user after checking email and username availability. A
// uniqueness violation raised by the store at commit time yields the same
// conflict as the pre-check.
func (d *Directory) Create(ctx context.Context, in NewUser) (models.User, error) {
	email := normEmail(in.Email)
	username := strings.TrimSpace(in.Username)
	role := in.Role
	if role == "" {
		role = models.RoleStudent
	}
	if !role.Valid() {
		return models.User{}, apperr.BadRequest("invalid role")
	}

	if err := d.ensureAvailable(ctx, uuid.Nil, &email, &username); err != nil {
		return models.User{}, err
	}

	digest, err := d.hasher.Hash(in.Password)
	if err != nil {
		return models.User{}, hashFailure(err)
	}

	created, err := d.store.CreateUser(ctx, models.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		FullName:     in.FullName,
		PasswordHash: digest,
		Role:         role,
		IsActive:     in.IsActive,
		IsVerified:   in.IsVerified,
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return models.User{}, apperr.Conflict("Email or Username already registered")
		}
		return models.User{}, apperr.Internal("failed to create user", err)
	}
	return created, nil
}

// Update applies only the fields set in u. A password is hashed before storage.
func (d *Directory) Update(ctx context.Context, id uuid.UUID, u Update) (models.User, error) {
	var patch models.UserPatch
	if u.Email != nil {
		email := normEmail(*u.Email)
		patch.Email = &email
	}
	if u.Username != nil {
		username := strings.TrimSpace(*u.Username)
		patch.Username = &username
	}
	patch.FullName = u.FullName
	patch.IsActive = u.IsActive
	if u.Role != nil {
		if !u.Role.Valid() {
			return models.User{}, apperr.BadRequest("invalid role")
		}
		patch.Role = u.Role
	}
	if u.Password != nil && *u.Password != "" {
		digest, err := d.hasher.Hash(*u.Password)
		if err != nil {
			return models.User{}, hashFailure(err)
		}
		patch.PasswordHash = &digest
	}

	if err := d.ensureAvailable(ctx, id, patch.Email, patch.Username); err != nil {
		return models.User{}, err
	}

	updated, err := d.store.UpdateUser(ctx, id, patch)
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, storage.ErrNotFound):
		return models.User{}, apperr.NotFound("User not found")
	case errors.Is(err, storage.ErrAlreadyExists):
		return models.User{}, apperr.Conflict("Email or Username already registered")
	default:
		return models.User{}, apperr.Internal("failed to update user", err)
	}
}

// SetVerified marks the user's email as verified.
func (d *Directory) SetVerified(ctx context.Context, id uuid.UUID) error {
	return mutated(d.store.SetVerified(ctx, id), "failed to verify user")
}

// SetPassword stores an already hashed password.
func (d *Directory) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return mutated(d.store.SetPassword(ctx, id, passwordHash), "failed to update password")
}

// List returns a page of users; limit defaults to DefaultListLimit and is
// capped at MaxListLimit.
func (d *Directory) List(ctx context.Context, filter models.ListFilter) ([]models.User, error) {
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	filter.Limit = min(filter.Limit, MaxListLimit)
	users, err := d.store.ListUsers(ctx, filter)
	if err != nil {
		return nil, apperr.Internal("failed to list users", err)
	}
	return users, nil
}

// Ping reports whether the backing store is reachable.
func (d *Directory) Ping(ctx context.Context) error {
	return d.store.Ping(ctx)
}

// ensureAvailable is the advisory pre-check; the store's unique indexes remain
// the authoritative guard.
func (d *Directory) ensureAvailable(ctx context.Context, self uuid.UUID, email, username *string) error {
	if email != nil {
		existing, err := d.FindByEmail(ctx, *email)
		if err != nil {
			return err
		}
		if existing != nil && existing.ID != self {
			return apperr.Conflict("Email or Username already registered")
		}
	}
	if username != nil {
		existing, err := d.FindByUsername(ctx, *username)
		if err != nil {
			return err
		}
		if existing != nil && existing.ID != self {
			return apperr.Conflict("Email or Username already registered")
		}
	}
	return nil
}

func optional(u models.User, err error) (*models.User, error) {
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, apperr.Internal("failed to fetch user", err)
	}
	return &u, nil
}

// hashFailure keeps client-caused rejections and hides everything else.
func hashFailure(err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	return apperr.Internal("failed to hash password", err)
}

func mutated(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return apperr.NotFound("User not found")
	default:
		return apperr.Internal(msg, err)
	}
}

func normEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

package models

import (
	"time"

	"github.com/google/uuid"
)

// User captures application-facing fields for an authenticated identity.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	FullName     *string   `json:"full_name"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	IsVerified   bool      `json:"is_verified"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserPatch is a partial update. Nil fields are left untouched.
type UserPatch struct {
	Email        *string
	Username     *string
	FullName     *string
	PasswordHash *string
	Role         *Role
	IsActive     *bool
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Email == nil && p.Username == nil && p.FullName == nil &&
		p.PasswordHash == nil && p.Role == nil && p.IsActive == nil
}

// ListFilter narrows an admin directory listing.
type ListFilter struct {
	Search string
	Offset int
	Limit  int
}

package auth

import (
	"context"

	"github.com/hongminglow/lms-be/internal/apperr"
	"github.com/hongminglow/lms-be/internal/models"
	"github.com/hongminglow/lms-be/internal/users"
)

const (
	MsgCouldNotValidate    = "Could not validate credentials"
	MsgInactiveUser        = "Inactive user"
	MsgNotEnoughPrivileges = "The user doesn't have enough privileges"
)

// Gate resolves bearer tokens into users.
type Gate struct {
	tokens *TokenManager
	dir    *users.Directory
}

func NewGate(tokens *TokenManager, dir *users.Directory) *Gate {
	return &Gate{tokens: tokens, dir: dir}
}

// Resolve returns the user an access token was issued for. Bad, expired or
// non-access tokens and tokens for vanished users are all Unauthorized.
func (g *Gate) Resolve(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, apperr.Unauthorized(MsgCouldNotValidate)
	}
	claims, err := g.tokens.Verify(token)
	if err != nil {
		return models.User{}, apperr.Unauthorized(MsgCouldNotValidate)
	}
	if claims.Expect(TokenAccess) != nil || claims.Email() == "" {
		return models.User{}, apperr.Unauthorized(MsgCouldNotValidate)
	}

	user, err := g.dir.FindByEmail(ctx, claims.Email())
	if err != nil {
		return models.User{}, err
	}
	if user == nil {
		return models.User{}, apperr.Unauthorized(MsgCouldNotValidate)
	}
	return *user, nil
}

// Guard refines an authenticated principal or rejects it.
type Guard func(models.User) (models.User, error)

// RequireActive rejects deactivated accounts.
func RequireActive(u models.User) (models.User, error) {
	if !u.IsActive {
		return models.User{}, apperr.BadRequest(MsgInactiveUser)
	}
	return u, nil
}

// RequireAdmin rejects non-admin accounts. It is meant to run after
// RequireActive.
func RequireAdmin(u models.User) (models.User, error) {
	if !u.IsAdmin() {
		return models.User{}, apperr.Forbidden(MsgNotEnoughPrivileges)
	}
	return u, nil
}

// Chain applies guards in order, stopping at the first rejection.
func Chain(guards ...Guard) Guard {
	return func(u models.User) (models.User, error) {
		var err error
		for _, g := range guards {
			if u, err = g(u); err != nil {
				return models.User{}, err
			}
		}
		return u, nil
	}
}

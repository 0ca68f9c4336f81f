package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/lms-be/internal/apperr"
)

// MaxPasswordBytes is bcrypt's input limit. It is a byte count, so multi-byte
// characters use it up faster.
const MaxPasswordBytes = 72

// MsgPasswordTooLong is returned for passwords bcrypt cannot hash.
const MsgPasswordTooLong = "password must be at most 72 bytes"

// BcryptHasher hashes and verifies passwords with bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost, or bcrypt.DefaultCost when cost
// is outside bcrypt's accepted range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns the bcrypt digest of password. Passwords over
// MaxPasswordBytes are a BadRequest.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", apperr.BadRequest(MsgPasswordTooLong)
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperr.BadRequest(MsgPasswordTooLong)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether password matches digest. A wrong password is
// (false, nil); an error means the stored digest itself is unusable.
func (h *BcryptHasher) Verify(password, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("verify password: %w", err)
	}
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" Admin ")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, r)

	_, ok = ParseRole("superuser")
	assert.False(t, ok)
}

func TestUserPatchEmpty(t *testing.T) {
	assert.True(t, UserPatch{}.Empty())

	active := false
	assert.False(t, UserPatch{IsActive: &active}.Empty())
}

func TestUserIsAdmin(t *testing.T) {
	assert.True(t, User{Role: RoleAdmin}.IsAdmin())
	assert.False(t, User{Role: RoleInstructor}.IsAdmin())
}

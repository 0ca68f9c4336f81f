// Package memory provides an in-process storage.UserStore used by tests and
// local tooling. It enforces the same uniqueness rules as the Postgres store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hongminglow/lms-be/internal/models"
	"github.com/hongminglow/lms-be/internal/storage"
)

var _ storage.UserStore = (*Store)(nil)

// Store keeps users in maps guarded by a mutex.
type Store struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]models.User
	byEmail    map[string]uuid.UUID
	byUsername map[string]uuid.UUID
	now        func() time.Time
}

// NewUserStore returns an empty Store.
func NewUserStore() *Store {
	return &Store{
		byID:       make(map[uuid.UUID]models.User),
		byEmail:    make(map[string]uuid.UUID),
		byUsername: make(map[string]uuid.UUID),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func normEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// CreateUser inserts a new user, failing with storage.ErrAlreadyExists on a
// duplicate id, email or username.
func (s *Store) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = normEmail(user.Email)
	if _, ok := s.byID[user.ID]; ok {
		return models.User{}, storage.ErrAlreadyExists
	}
	if _, ok := s.byEmail[user.Email]; ok {
		return models.User{}, storage.ErrAlreadyExists
	}
	if _, ok := s.byUsername[user.Username]; ok {
		return models.User{}, storage.ErrAlreadyExists
	}
	if user.Role == "" {
		user.Role = models.RoleStudent
	}
	now := s.now()
	user.CreatedAt, user.UpdatedAt = now, now

	s.byID[user.ID] = user
	s.byEmail[user.Email] = user.ID
	s.byUsername[user.Username] = user.ID
	return user, nil
}

func (s *Store) FindByID(_ context.Context, id uuid.UUID) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[normEmail(email)]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return s.byID[id], nil
}

func (s *Store) FindByUsername(_ context.Context, username string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[username]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return s.byID[id], nil
}

// UpdateUser applies the non-nil fields of patch.
func (s *Store) UpdateUser(_ context.Context, id uuid.UUID, patch models.UserPatch) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	if patch.Empty() {
		return u, nil
	}

	if patch.Email != nil {
		email := normEmail(*patch.Email)
		if owner, taken := s.byEmail[email]; taken && owner != id {
			return models.User{}, storage.ErrAlreadyExists
		}
		delete(s.byEmail, u.Email)
		u.Email = email
		s.byEmail[email] = id
	}
	if patch.Username != nil {
		if owner, taken := s.byUsername[*patch.Username]; taken && owner != id {
			return models.User{}, storage.ErrAlreadyExists
		}
		delete(s.byUsername, u.Username)
		u.Username = *patch.Username
		s.byUsername[u.Username] = id
	}
	if patch.FullName != nil {
		name := *patch.FullName
		u.FullName = &name
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.IsActive != nil {
		u.IsActive = *patch.IsActive
	}
	u.UpdatedAt = s.now()
	s.byID[id] = u
	return u, nil
}

func (s *Store) SetVerified(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.IsVerified = true
	u.UpdatedAt = s.now()
	s.byID[id] = u
	return nil
}

func (s *Store) SetPassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = s.now()
	s.byID[id] = u
	return nil
}

// ListUsers returns users ordered by creation time, then id.
func (s *Store) ListUsers(_ context.Context, filter models.ListFilter) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]models.User, 0, len(s.byID))
	for _, u := range s.byID {
		if search != "" && !matches(u, search) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Offset >= len(out) {
		return []models.User{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func matches(u models.User, search string) bool {
	if strings.Contains(u.Email, search) || strings.Contains(strings.ToLower(u.Username), search) {
		return true
	}
	return u.FullName != nil && strings.Contains(strings.ToLower(*u.FullName), search)
}

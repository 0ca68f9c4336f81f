package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hongminglow/lms-be/internal/models"
	"github.com/hongminglow/lms-be/internal/storage"
)

// Ensure Store satisfies the storage.UserStore interface at compile time.
var _ storage.UserStore = (*Store)(nil)

const userColumns = `id, email, username, hashed_password, full_name, role, is_active, is_verified, created_at, updated_at`

const uniqueViolation = "23505"

// Store provides Postgres-backed persistence for users.
type Store struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new Store and runs migrations.
func NewUserStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool}, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateUser inserts a new user row. The unique indexes on lower(email) and
// username are the authoritative duplicate guard.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = models.RoleStudent
	}
	query := `
		INSERT INTO users (id, email, username, hashed_password, full_name, role, is_active, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + userColumns
	row := s.pool.QueryRow(ctx, query,
		user.ID, normEmail(user.Email), user.Username, user.PasswordHash, user.FullName,
		string(user.Role), user.IsActive, user.IsVerified)
	created, err := scanUser(row)
	if err != nil {
		return models.User{}, translate(err)
	}
	return created, nil
}

// FindByID fetches a user by primary key.
func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindByEmail fetches a user by email address, ignoring case.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, normEmail(email))
	return scanUser(row)
}

// FindByUsername fetches a user by username.
func (s *Store) FindByUsername(ctx context.Context, username string) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// UpdateUser writes only the fields set in patch and refreshes updated_at.
func (s *Store) UpdateUser(ctx context.Context, id uuid.UUID, patch models.UserPatch) (models.User, error) {
	if patch.Empty() {
		return s.FindByID(ctx, id)
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Email != nil {
		set("email", normEmail(*patch.Email))
	}
	if patch.Username != nil {
		set("username", *patch.Username)
	}
	if patch.FullName != nil {
		set("full_name", *patch.FullName)
	}
	if patch.PasswordHash != nil {
		set("hashed_password", *patch.PasswordHash)
	}
	if patch.Role != nil {
		set("role", string(*patch.Role))
	}
	if patch.IsActive != nil {
		set("is_active", *patch.IsActive)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)
	updated, err := scanUser(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return models.User{}, translate(err)
	}
	return updated, nil
}

// SetVerified marks the user's email as verified.
func (s *Store) SetVerified(ctx context.Context, id uuid.UUID) error {
	return s.execOne(ctx, `UPDATE users SET is_verified = TRUE, updated_at = NOW() WHERE id = $1`, id)
}

// SetPassword replaces the stored password digest.
func (s *Store) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return s.execOne(ctx, `UPDATE users SET hashed_password = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
}

// ListUsers pages through users, optionally filtered by a case-insensitive
// search over email, username and full name.
func (s *Store) ListUsers(ctx context.Context, filter models.ListFilter) ([]models.User, error) {
	const query = `
	SELECT ` + userColumns + `
	FROM users
	WHERE $1 = ''
	   OR email ILIKE '%' || $1 || '%'
	   OR username ILIKE '%' || $1 || '%'
	   OR full_name ILIKE '%' || $1 || '%'
	ORDER BY created_at, id
	OFFSET $2
	LIMIT $3;
	`
	rows, err := s.pool.Query(ctx, query, strings.TrimSpace(filter.Search), max(filter.Offset, 0), filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	var role string
	if err := row.Scan(&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.FullName,
		&role, &user.IsActive, &user.IsVerified, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	user.Role = models.Role(role)
	return user, nil
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", storage.ErrAlreadyExists, pgErr.ConstraintName)
	}
	return err
}

func normEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

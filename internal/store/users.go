package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a dashboard account.
type User struct {
	ID    int64
	Email string
	// PasswordHash is the bcrypt hash. Empty for accounts without a password.
	PasswordHash string
	Name         string
	Image        string
	Role         string
	CreatedAt    time.Time
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ValidRole reports whether role is a known role.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

const userColumns = `id, email, password, name, image, role, created_at`

// CreateUser inserts a user and returns it with its assigned id.
func (s *Store) CreateUser(ctx context.Context, u User) (*User, error) {
	if u.Email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if !ValidRole(u.Role) {
		return nil, fmt.Errorf("invalid role %q", u.Role)
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = s.now().UTC()

	query := s.rebind(`INSERT INTO users (email, password, name, image, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)

	err := s.db.QueryRowContext(ctx, query,
		u.Email, nullString(u.PasswordHash), nullString(u.Name), nullString(u.Image), u.Role, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &u, nil
}

// UserByEmail looks a user up by email, case-insensitively.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	query := s.rebind(`SELECT ` + userColumns + ` FROM users WHERE email = ?`)
	return s.scanUser(s.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

// UserByID looks a user up by id.
func (s *Store) UserByID(ctx context.Context, id int64) (*User, error) {
	query := s.rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// SetPassword replaces a user's password hash.
func (s *Store) SetPassword(ctx context.Context, id int64, hash string) error {
	query := s.rebind(`UPDATE users SET password = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, hash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	var (
		u                     User
		password, name, image sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &password, &name, &image, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	u.PasswordHash = password.String
	u.Name = name.String
	u.Image = image.String
	return &u, nil
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/teemow/recircuit/internal/store"
)

// ErrInvalidCredentials is returned for any failed sign-in. Unknown users,
// users without a password and wrong passwords are indistinguishable.
var ErrInvalidCredentials = errors.New("invalid credentials")

// BcryptCost is the cost used for new password hashes.
const BcryptCost = 12

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	if hash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// UserStore looks up users for sign-in.
type UserStore interface {
	UserByEmail(ctx context.Context, email string) (*store.User, error)
}

// Authenticator verifies email and password credentials.
type Authenticator struct {
	users UserStore
}

// NewAuthenticator creates an Authenticator backed by users.
func NewAuthenticator(users UserStore) *Authenticator {
	return &Authenticator{users: users}
}

// Authenticate returns the user matching the credentials.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (*store.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := a.users.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/teemow/recircuit/internal/store"
)

const (
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "recircuit.session-token"

	// SessionTTL is how long a session stays valid after sign-in.
	SessionTTL = 30 * 24 * time.Hour

	sessionIssuer = "recircuit"
)

// ErrNoSession is returned when a request carries no valid session.
var ErrNoSession = errors.New("no valid session")

// Session is the signed-in user as carried by the session cookie.
type Session struct {
	UserID    int64
	Email     string
	Name      string
	Role      string
	ExpiresAt time.Time
}

// IsAdmin reports whether the session belongs to an admin.
func (s *Session) IsAdmin() bool {
	return s.Role == store.RoleAdmin
}

// DisplayName returns the name, falling back to the email.
func (s *Session) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Email
}

type sessionClaims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// SessionManager issues and verifies session cookies.
type SessionManager struct {
	secret []byte
	secure bool
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager creates a SessionManager. Cookies are marked Secure when
// secure is true, which callers derive from an https base URL.
func NewSessionManager(secret string, secure bool) (*SessionManager, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("session secret must be at least 16 characters")
	}
	return &SessionManager{
		secret: []byte(secret),
		secure: secure,
		ttl:    SessionTTL,
		now:    time.Now,
	}, nil
}

// Issue signs a session for user and sets it as a cookie on w.
func (m *SessionManager) Issue(w http.ResponseWriter, user *store.User) (*Session, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)

	claims := sessionClaims{
		Role:  user.Role,
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	return &Session{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		ExpiresAt: expiresAt.Truncate(time.Second),
	}, nil
}

// Read returns the session carried by r, or ErrNoSession.
func (m *SessionManager) Read(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}
	return m.Verify(cookie.Value)
}

// Verify parses and validates a signed session token.
func (m *SessionManager) Verify(token string) (*Session, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid subject", ErrNoSession)
	}
	if !store.ValidRole(claims.Role) {
		return nil, fmt.Errorf("%w: invalid role", ErrNoSession)
	}

	return &Session{
		UserID:    userID,
		Email:     claims.Email,
		Name:      claims.Name,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Clear removes the session cookie.
func (m *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/recircuit/internal/instrumentation"
	"github.com/teemow/recircuit/internal/logging"
	"github.com/teemow/recircuit/internal/store"
)

// ErrNotConnected is returned when no calendar is connected or its token
// has expired and cannot be refreshed.
var ErrNotConnected = errors.New("no calendar connected or token unavailable")

// SettingsStore persists calendar OAuth tokens.
type SettingsStore interface {
	ActiveCalendarSettings(ctx context.Context, provider string) (*store.CalendarSettings, error)
	UpdateRefreshedToken(ctx context.Context, settingsID int64, accessToken, newRefreshToken string, expiresAt *time.Time) error
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Configured() bool
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}

// Token is a freshly issued access token.
type Token struct {
	AccessToken string
	// RefreshToken is empty when the provider kept the old one.
	RefreshToken string
	ExpiresAt    *time.Time
}

// TokenManager hands out valid access tokens for the connected calendar.
type TokenManager struct {
	store     SettingsStore
	refresher Refresher
	metrics   *instrumentation.Metrics
	logger    *slog.Logger
	now       func() time.Time

	// mu serializes refreshes so concurrent callers do not race on the
	// same refresh token.
	mu sync.Mutex
}

// NewTokenManager creates a TokenManager.
func NewTokenManager(s SettingsStore, refresher Refresher, metrics *instrumentation.Metrics, logger *slog.Logger) *TokenManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenManager{
		store:     s,
		refresher: refresher,
		metrics:   metrics,
		logger:    logging.WithProvider(logger, store.ProviderGoogle),
		now:       time.Now,
	}
}

// ValidAccessToken returns the stored access token, refreshing it first when
// it has expired. It returns ErrNotConnected when no usable token exists.
func (m *TokenManager) ValidAccessToken(ctx context.Context) (string, error) {
	settings, err := m.store.ActiveCalendarSettings(ctx, store.ProviderGoogle)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNotConnected
	}
	if err != nil {
		return "", fmt.Errorf("failed to load calendar settings: %w", err)
	}

	if !settings.Expired(m.now()) {
		return settings.AccessToken, nil
	}

	return m.refresh(ctx)
}

func (m *TokenManager) refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Another caller may have refreshed while we waited.
	settings, err := m.store.ActiveCalendarSettings(ctx, store.ProviderGoogle)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNotConnected
	}
	if err != nil {
		return "", fmt.Errorf("failed to load calendar settings: %w", err)
	}
	if !settings.Expired(m.now()) {
		return settings.AccessToken, nil
	}

	if settings.RefreshToken == "" || m.refresher == nil || !m.refresher.Configured() {
		m.logger.WarnContext(ctx, "calendar token expired and cannot be refreshed",
			logging.Operation(instrumentation.OperationRefresh))
		m.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultExpired)
		return "", ErrNotConnected
	}

	token, err := m.refresher.Refresh(ctx, settings.RefreshToken)
	if err != nil {
		m.logger.WarnContext(ctx, "calendar token refresh failed",
			logging.Operation(instrumentation.OperationRefresh),
			logging.Err(err))
		m.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		return "", ErrNotConnected
	}

	if err := m.store.UpdateRefreshedToken(ctx, settings.ID, token.AccessToken, token.RefreshToken, token.ExpiresAt); err != nil {
		m.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		return "", fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	m.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)
	m.logger.InfoContext(ctx, "calendar token refreshed",
		logging.Operation(instrumentation.OperationRefresh))

	return token.AccessToken, nil
}

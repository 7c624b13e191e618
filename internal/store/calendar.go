package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ProviderGoogle is the only calendar provider currently connected.
const ProviderGoogle = "google"

// CalendarSettings is a persisted OAuth token record for a connected calendar.
type CalendarSettings struct {
	ID           int64
	Provider     string
	AccessToken  string
	RefreshToken string
	// ExpiresAt is nil when the provider did not report an expiry.
	ExpiresAt         *time.Time
	CalendarID        string
	ConnectedByUserID int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
	IsActive          bool
}

// Expired reports whether the access token has expired at now.
// Settings without an expiry never expire.
func (c *CalendarSettings) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// CalendarStatus is the active settings row joined with the connecting user.
type CalendarStatus struct {
	CalendarSettings
	ConnectedByName  string
	ConnectedByEmail string
}

const settingsColumns = `cs.id, cs.provider, cs.access_token, cs.refresh_token, cs.expires_at,
	cs.calendar_id, cs.connected_by_user_id, cs.created_at, cs.updated_at`

// ActiveCalendarSettings returns the newest active settings for provider.
func (s *Store) ActiveCalendarSettings(ctx context.Context, provider string) (*CalendarSettings, error) {
	query := s.rebind(`SELECT ` + settingsColumns + `
		FROM calendar_settings cs
		WHERE cs.provider = ? AND cs.is_active = TRUE
		ORDER BY cs.created_at DESC, cs.id DESC
		LIMIT 1`)

	var cs CalendarSettings
	if err := s.scanSettings(s.db.QueryRowContext(ctx, query, provider), &cs); err != nil {
		return nil, err
	}
	return &cs, nil
}

// CalendarStatus returns the active settings for provider together with the
// name and email of the admin who connected it.
func (s *Store) CalendarStatus(ctx context.Context, provider string) (*CalendarStatus, error) {
	query := s.rebind(`SELECT ` + settingsColumns + `, u.name, u.email
		FROM calendar_settings cs
		JOIN users u ON cs.connected_by_user_id = u.id
		WHERE cs.provider = ? AND cs.is_active = TRUE
		ORDER BY cs.created_at DESC, cs.id DESC
		LIMIT 1`)

	var (
		status      CalendarStatus
		name, email sql.NullString
	)
	if err := s.scanSettings(s.db.QueryRowContext(ctx, query, provider), &status.CalendarSettings, &name, &email); err != nil {
		return nil, err
	}
	status.ConnectedByName = name.String
	status.ConnectedByEmail = email.String
	return &status, nil
}

// StoreCalendarSettings deactivates every active row for the provider and
// inserts cs as the new active row. Both happen in one transaction.
func (s *Store) StoreCalendarSettings(ctx context.Context, cs CalendarSettings) (*CalendarSettings, error) {
	if cs.Provider == "" {
		cs.Provider = ProviderGoogle
	}
	if cs.AccessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	access, err := s.sealer.Seal(cs.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refresh, err := s.sealer.Seal(cs.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	now := s.now().UTC()
	cs.CreatedAt = now
	cs.UpdatedAt = now
	cs.IsActive = true

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deactivate := s.rebind(`UPDATE calendar_settings SET is_active = FALSE, updated_at = ?
		WHERE provider = ? AND is_active = TRUE`)
	if _, err := tx.ExecContext(ctx, deactivate, now, cs.Provider); err != nil {
		return nil, fmt.Errorf("failed to deactivate calendar settings: %w", err)
	}

	insert := s.rebind(`INSERT INTO calendar_settings (
			provider, access_token, refresh_token, expires_at, calendar_id,
			connected_by_user_id, created_at, updated_at, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, TRUE) RETURNING id`)
	err = tx.QueryRowContext(ctx, insert,
		cs.Provider, access, nullString(refresh), nullTime(cs.ExpiresAt), nullString(cs.CalendarID),
		cs.ConnectedByUserID, now, now,
	).Scan(&cs.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert calendar settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit calendar settings: %w", err)
	}
	return &cs, nil
}

// UpdateRefreshedToken stores a refreshed token on the active settings row
// settingsID. An empty newRefreshToken keeps the current one, because Google
// usually omits it from refresh responses.
func (s *Store) UpdateRefreshedToken(ctx context.Context, settingsID int64, accessToken, newRefreshToken string, expiresAt *time.Time) error {
	access, err := s.sealer.Seal(accessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	now := s.now().UTC()
	var res sql.Result
	if newRefreshToken == "" {
		query := s.rebind(`UPDATE calendar_settings
			SET access_token = ?, expires_at = ?, updated_at = ?
			WHERE id = ? AND is_active = TRUE`)
		res, err = s.db.ExecContext(ctx, query, access, nullTime(expiresAt), now, settingsID)
	} else {
		refresh, sealErr := s.sealer.Seal(newRefreshToken)
		if sealErr != nil {
			return fmt.Errorf("failed to encrypt refresh token: %w", sealErr)
		}
		query := s.rebind(`UPDATE calendar_settings
			SET access_token = ?, refresh_token = ?, expires_at = ?, updated_at = ?
			WHERE id = ? AND is_active = TRUE`)
		res, err = s.db.ExecContext(ctx, query, access, refresh, nullTime(expiresAt), now, settingsID)
	}
	if err != nil {
		return fmt.Errorf("failed to update refreshed token: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DisconnectCalendar deactivates the active settings for provider.
// Disconnecting with nothing connected is not an error.
func (s *Store) DisconnectCalendar(ctx context.Context, provider string) error {
	query := s.rebind(`UPDATE calendar_settings SET is_active = FALSE, updated_at = ?
		WHERE provider = ? AND is_active = TRUE`)
	if _, err := s.db.ExecContext(ctx, query, s.now().UTC(), provider); err != nil {
		return fmt.Errorf("failed to disconnect calendar: %w", err)
	}
	return nil
}

func (s *Store) scanSettings(row *sql.Row, cs *CalendarSettings, extra ...any) error {
	var (
		refresh, calendarID sql.NullString
		expiresAt           sql.NullTime
	)
	dest := []any{
		&cs.ID, &cs.Provider, &cs.AccessToken, &refresh, &expiresAt,
		&calendarID, &cs.ConnectedByUserID, &cs.CreatedAt, &cs.UpdatedAt,
	}
	dest = append(dest, extra...)

	err := row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load calendar settings: %w", err)
	}

	cs.IsActive = true
	cs.CalendarID = calendarID.String
	if expiresAt.Valid {
		t := expiresAt.Time
		cs.ExpiresAt = &t
	}

	if cs.AccessToken, err = s.sealer.Open(cs.AccessToken); err != nil {
		return fmt.Errorf("failed to decrypt access token: %w", err)
	}
	if cs.RefreshToken, err = s.sealer.Open(refresh.String); err != nil {
		return fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	return nil
}

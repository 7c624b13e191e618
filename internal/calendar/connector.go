package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	oauth "github.com/giantswarm/mcp-oauth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"

	"github.com/teemow/recircuit/internal/instrumentation"
)

// CallbackPath is the OAuth redirect path served by the dashboard.
const CallbackPath = "/api/calendar/callback"

// AuthPath starts the consent flow.
const AuthPath = "/api/calendar/auth"

// Connector errors.
var (
	// ErrNotConfigured is returned when the Google client credentials are missing.
	ErrNotConfigured = errors.New("google OAuth not configured")

	// ErrAccessDenied is returned when Google reports an error on the callback.
	ErrAccessDenied = errors.New("authorization denied")

	// ErrInvalidCallback is returned when the callback lacks a code or state.
	ErrInvalidCallback = errors.New("missing code or state")
)

// OAuthConfig holds the Google OAuth client settings.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string

	// RedirectURL defaults to <BaseURL>/api/calendar/callback.
	RedirectURL string
	BaseURL     string

	// Endpoint overrides Google's OAuth endpoints.
	Endpoint *oauth2.Endpoint
}

// RedirectURI returns the configured redirect URL or the default callback
// under the base URL.
func (c OAuthConfig) RedirectURI() string {
	if c.RedirectURL != "" {
		return c.RedirectURL
	}
	return strings.TrimSuffix(c.BaseURL, "/") + CallbackPath
}

// Connector runs the Google OAuth consent and token flows.
type Connector struct {
	config     *oauth2.Config
	httpClient *http.Client
	metrics    *instrumentation.Metrics
}

// NewConnector creates a Connector. httpClient may be nil.
func NewConnector(cfg OAuthConfig, httpClient *http.Client, metrics *instrumentation.Metrics) *Connector {
	endpoint := google.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}

	return &Connector{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI(),
			Scopes:       []string{calendar.CalendarEventsScope},
			Endpoint:     endpoint,
		},
		httpClient: httpClient,
		metrics:    metrics,
	}
}

// HasClientID reports whether the consent URL can be built.
func (c *Connector) HasClientID() bool {
	return c != nil && c.config.ClientID != ""
}

// Configured reports whether tokens can be exchanged and refreshed.
func (c *Connector) Configured() bool {
	return c.HasClientID() && c.config.ClientSecret != ""
}

// AuthURL returns the consent URL. Offline access with forced consent makes
// Google return a refresh token on every connect.
func (c *Connector) AuthURL(state string) (string, error) {
	if !c.HasClientID() {
		return "", ErrNotConfigured
	}
	return c.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

// Exchange trades an authorization code for tokens.
func (c *Connector) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var token *oauth2.Token
	err := c.observe(ctx, instrumentation.OperationExchange, func(ctx context.Context) error {
		var err error
		token, err = c.config.Exchange(ctx, code)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}

// Refresh obtains a new access token for refreshToken.
func (c *Connector) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var token *oauth2.Token
	err := c.observe(ctx, instrumentation.OperationRefresh, func(ctx context.Context) error {
		var err error
		token, err = c.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	refreshed := &Token{AccessToken: token.AccessToken, ExpiresAt: TokenExpiry(token)}
	if token.RefreshToken != refreshToken {
		refreshed.RefreshToken = token.RefreshToken
	}
	return refreshed, nil
}

func (c *Connector) observe(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceOAuth, operation)
	defer span.End()

	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}

	start := time.Now()
	err := fn(ctx)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceOAuth, operation, status, time.Since(start))

	return err
}

// Callback is a parsed OAuth redirect.
type Callback struct {
	Code  string
	State string
}

// ParseCallback validates the OAuth redirect query. Provider errors wrap
// ErrAccessDenied; a missing code or state returns ErrInvalidCallback.
func ParseCallback(q url.Values) (*Callback, error) {
	result := oauth.ParseCallbackQuery(
		q.Get("code"),
		q.Get("state"),
		q.Get("error"),
		q.Get("error_description"),
		q.Get("error_uri"),
	)
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAccessDenied, err)
	}
	if result.Code == "" || result.State == "" {
		return nil, ErrInvalidCallback
	}
	return &Callback{Code: result.Code, State: result.State}, nil
}

// IsInteractionRequired reports whether a callback error means the user
// must go through the consent screen again.
func IsInteractionRequired(err error) bool {
	return oauth.IsSilentAuthError(err)
}

// TokenExpiry returns the token expiry, or nil when Google did not report one.
func TokenExpiry(token *oauth2.Token) *time.Time {
	if token == nil || token.Expiry.IsZero() {
		return nil
	}
	expiry := token.Expiry.UTC()
	return &expiry
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/teemow/recircuit/internal/api"
	"github.com/teemow/recircuit/internal/auth"
	"github.com/teemow/recircuit/internal/calendar"
	"github.com/teemow/recircuit/internal/instrumentation"
	"github.com/teemow/recircuit/internal/logging"
	"github.com/teemow/recircuit/internal/store"
)

// Callback error codes reported to the schedule page.
const (
	callbackErrOAuthDenied    = "oauth_denied"
	callbackErrInvalidRequest = "invalid_request"
	callbackErrUnauthorized   = "unauthorized"
	callbackErrConfig         = "config_error"
	callbackErrTokenExchange  = "token_exchange_failed"
	callbackErrStorage        = "storage_failed"
	callbackErrInternal       = "internal_error"
)

const schedulePath = "/dashboard/schedule"

func (s *Server) handleFunctionDefinitions(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]any{"functions": calendar.FunctionDefinitions()})
}

type functionCallRequest struct {
	FunctionName string          `json:"function_name"`
	Arguments    json.RawMessage `json:"arguments"`
}

// handleCalendarFunction serves both /api/calendar/functions and
// /api/ai/calendar.
func (s *Server) handleCalendarFunction(w http.ResponseWriter, r *http.Request) {
	var req functionCallRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, r, err)
		return
	}
	if req.FunctionName == "" {
		api.WriteError(w, r, api.ErrBadRequest("function_name is required"))
		return
	}
	if s.cfg.Functions == nil {
		api.WriteError(w, r, api.ErrInternal("Calendar functions are not configured"))
		return
	}

	session, _ := auth.SessionFromContext(r.Context())
	result, err := s.cfg.Functions.Call(r.Context(), req.FunctionName, req.Arguments, calendar.Caller{
		Source: instrumentation.SourceHTTP,
		Email:  session.Email,
	})
	switch {
	case err == nil:
		api.WriteJSON(w, http.StatusOK, map[string]any{"result": result})
	case errors.Is(err, calendar.ErrNotConnected):
		api.WriteError(w, r, api.ErrNotFound("No calendar connected or token unavailable").Wrap(err))
	case errors.Is(err, calendar.ErrUnknownFunction):
		api.WriteError(w, r, api.ErrBadRequest("Unknown function: "+req.FunctionName))
	case errors.Is(err, calendar.ErrInvalidArguments):
		api.WriteError(w, r, api.ErrBadRequest(err.Error()))
	default:
		api.WriteError(w, r, api.ErrInternal(err.Error()).Wrap(err))
	}
}

// handleCalendarAuth starts the consent flow for the signed-in admin.
func (s *Server) handleCalendarAuth(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFromContext(r.Context())
	consentURL, err := s.cfg.Connector.AuthURL(strconv.FormatInt(session.UserID, 10))
	if err != nil {
		api.WriteError(w, r, api.ErrInternal("Google OAuth not configured").Wrap(err))
		return
	}
	http.Redirect(w, r, consentURL, http.StatusFound)
}

// handleCalendarCallback completes the consent flow. Every outcome is a
// redirect to the schedule page.
func (s *Server) handleCalendarCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.WithOperation(s.logger, "calendar.callback")

	fail := func(code string, err error) {
		s.cfg.Metrics.RecordOAuthConnect(ctx, instrumentation.OAuthResultFailure)
		logger.WarnContext(ctx, "calendar connect failed", logging.Status(code), logging.Err(err))
		s.redirectToSchedule(w, r, "error", code)
	}
	defer func() {
		if rec := recover(); rec != nil {
			fail(callbackErrInternal, fmt.Errorf("panic: %v", rec))
		}
	}()

	cb, err := calendar.ParseCallback(r.URL.Query())
	if err != nil {
		if session, ok := auth.SessionFromContext(ctx); ok && session.IsAdmin() && calendar.IsInteractionRequired(err) {
			logger.InfoContext(ctx, "calendar consent required, restarting authorization", logging.Err(err))
			http.Redirect(w, r, strings.TrimSuffix(s.cfg.BaseURL, "/")+calendar.AuthPath, http.StatusFound)
			return
		}
		if errors.Is(err, calendar.ErrAccessDenied) {
			fail(callbackErrOAuthDenied, err)
			return
		}
		fail(callbackErrInvalidRequest, err)
		return
	}

	session, ok := auth.SessionFromContext(ctx)
	if !ok || !session.IsAdmin() || cb.State != strconv.FormatInt(session.UserID, 10) {
		fail(callbackErrUnauthorized, errors.New("callback state does not match the signed-in admin"))
		return
	}
	if !s.cfg.Connector.Configured() {
		fail(callbackErrConfig, calendar.ErrNotConfigured)
		return
	}

	token, err := s.cfg.Connector.Exchange(ctx, cb.Code)
	if err != nil {
		fail(callbackErrTokenExchange, err)
		return
	}

	_, err = s.cfg.Store.StoreCalendarSettings(ctx, store.CalendarSettings{
		Provider:          store.ProviderGoogle,
		AccessToken:       token.AccessToken,
		RefreshToken:      token.RefreshToken,
		ExpiresAt:         calendar.TokenExpiry(token),
		CalendarID:        calendar.PrimaryCalendarID,
		ConnectedByUserID: session.UserID,
	})
	if err != nil {
		fail(callbackErrStorage, err)
		return
	}

	s.cfg.Metrics.RecordOAuthConnect(ctx, instrumentation.OAuthResultSuccess)
	s.cfg.Audit.LogCalendarChange(ctx, instrumentation.AuditActionConnect, store.ProviderGoogle, session.Email)
	logger.InfoContext(ctx, "calendar connected", logging.Provider(store.ProviderGoogle), logging.UserHash(session.Email))
	s.redirectToSchedule(w, r, "success", "connected")
}

func (s *Server) redirectToSchedule(w http.ResponseWriter, r *http.Request, key, value string) {
	target := strings.TrimSuffix(s.cfg.BaseURL, "/") + schedulePath + "?" + url.Values{key: {value}}.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}

type connectedBy struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type calendarStatusResponse struct {
	Connected   bool         `json:"connected"`
	Message     string       `json:"message,omitempty"`
	ConnectedBy *connectedBy `json:"connectedBy,omitempty"`
	ConnectedAt *time.Time   `json:"connectedAt,omitempty"`
	LastUpdated *time.Time   `json:"lastUpdated,omitempty"`
	ExpiresAt   *time.Time   `json:"expiresAt,omitempty"`
	CalendarID  string       `json:"calendarId,omitempty"`
}

func (s *Server) handleCalendarStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.cfg.Store.CalendarStatus(r.Context(), store.ProviderGoogle)
	if errors.Is(err, store.ErrNotFound) {
		api.WriteJSON(w, http.StatusOK, calendarStatusResponse{Message: "No calendar connected"})
		return
	}
	if err != nil {
		api.WriteError(w, r, api.ErrInternal("Failed to get calendar status").Wrap(err))
		return
	}

	api.WriteJSON(w, http.StatusOK, calendarStatusResponse{
		Connected: true,
		ConnectedBy: &connectedBy{
			Name:  status.ConnectedByName,
			Email: status.ConnectedByEmail,
		},
		ConnectedAt: &status.CreatedAt,
		LastUpdated: &status.UpdatedAt,
		ExpiresAt:   status.ExpiresAt,
		CalendarID:  status.CalendarID,
	})
}

func (s *Server) handleCalendarDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Store.DisconnectCalendar(r.Context(), store.ProviderGoogle); err != nil {
		api.WriteError(w, r, api.ErrInternal("Failed to disconnect calendar").Wrap(err))
		return
	}

	session, _ := auth.SessionFromContext(r.Context())
	s.cfg.Audit.LogCalendarChange(r.Context(), instrumentation.AuditActionDisconnect, store.ProviderGoogle, session.Email)
	s.logger.InfoContext(r.Context(), "calendar disconnected", slog.String("provider", store.ProviderGoogle))
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Calendar disconnected successfully",
	})
}

func (s *Server) handleCalendarToken(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Tokens == nil {
		api.WriteError(w, r, api.ErrNotFound("No calendar connected or token unavailable"))
		return
	}
	token, err := s.cfg.Tokens.ValidAccessToken(r.Context())
	if errors.Is(err, calendar.ErrNotConnected) {
		api.WriteError(w, r, api.ErrNotFound("No calendar connected or token unavailable"))
		return
	}
	if err != nil {
		api.WriteError(w, r, api.ErrInternal("Failed to get calendar token").Wrap(err))
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

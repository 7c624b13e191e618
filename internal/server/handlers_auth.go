package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/teemow/recircuit/internal/auth"
	"github.com/teemow/recircuit/internal/instrumentation"
	"github.com/teemow/recircuit/internal/logging"
)

const invalidCredentialsMessage = "Invalid email or password"

func (s *Server) handleSignInPage(w http.ResponseWriter, r *http.Request) {
	callback := auth.SafeCallbackURL(r.URL.Query().Get("callbackUrl"))
	if _, ok := auth.SessionFromContext(r.Context()); ok {
		http.Redirect(w, r, callback, http.StatusFound)
		return
	}
	s.renderPage(w, r, http.StatusOK, pageData{
		Page:        pageSignIn,
		Title:       pageTitles[pageSignIn],
		CallbackURL: callback,
	})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")
	callback := auth.SafeCallbackURL(r.PostForm.Get("callbackUrl"))

	failed := func(status int, message string) {
		s.renderPage(w, r, status, pageData{
			Page:        pageSignIn,
			Title:       pageTitles[pageSignIn],
			Email:       email,
			Error:       message,
			CallbackURL: callback,
		})
	}

	user, err := s.cfg.Authenticator.Authenticate(r.Context(), email, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.cfg.Metrics.RecordSignIn(r.Context(), instrumentation.SignInResultInvalid)
		s.logger.InfoContext(r.Context(), "sign-in rejected", logging.UserHash(email))
		failed(http.StatusUnauthorized, invalidCredentialsMessage)
		return
	}
	if err != nil {
		s.cfg.Metrics.RecordSignIn(r.Context(), instrumentation.SignInResultError)
		s.logger.ErrorContext(r.Context(), "sign-in failed", logging.Err(err))
		failed(http.StatusInternalServerError, "Sign-in is temporarily unavailable")
		return
	}

	if _, err := s.cfg.Sessions.Issue(w, user); err != nil {
		s.cfg.Metrics.RecordSignIn(r.Context(), instrumentation.SignInResultError)
		s.logger.ErrorContext(r.Context(), "failed to issue session", logging.Err(err))
		failed(http.StatusInternalServerError, "Sign-in is temporarily unavailable")
		return
	}

	s.cfg.Metrics.RecordSignIn(r.Context(), instrumentation.SignInResultSuccess)
	s.logger.InfoContext(r.Context(), "user signed in",
		logging.UserHash(user.Email),
		logging.Role(user.Role),
		slog.Int64("user_id", user.ID))
	http.Redirect(w, r, callback, http.StatusSeeOther)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.cfg.Sessions.Clear(w)
	http.Redirect(w, r, auth.SignInPath, http.StatusSeeOther)
}

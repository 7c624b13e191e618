package server

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/teemow/recircuit/internal/api"
	"github.com/teemow/recircuit/internal/auth"
	"github.com/teemow/recircuit/internal/openai"
)

// diagnosticsUser is the ChatKit user of throwaway test sessions.
const diagnosticsUser = "test-user-123"

func (s *Server) openAIConfigured() bool {
	return s.cfg.OpenAI != nil && s.cfg.OpenAI.Configured()
}

func (s *Server) envCheck() map[string]bool {
	return map[string]bool{
		"OPENAI_API_SECRET_KEY":    s.openAIConfigured(),
		"OPENAI_ADMIN_WORKFLOW_ID": s.cfg.Workflows.Admin != "",
		"OPENAI_USER_WORKFLOW_ID":  s.cfg.Workflows.User != "",
	}
}

type sessionSummary struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
}

func (s *Server) handleTestSession(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFromContext(r.Context())
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"session": sessionSummary{
			ID:   strconv.FormatInt(session.UserID, 10),
			Role: session.Role,
		},
		"workflowId": s.cfg.Workflows.ForSession(session),
		"envCheck":   s.envCheck(),
		"message":    "Session test successful",
	})
}

func (s *Server) handleDebugChatKit(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFromContext(r.Context())

	environment := map[string]any{"BASE_URL": s.cfg.BaseURL}
	for k, v := range s.envCheck() {
		environment[k] = v
	}

	var connectivity *openai.ConnectivityResult
	if s.openAIConfigured() {
		result := s.cfg.OpenAI.CheckConnectivity(r.Context())
		connectivity = &result
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": environment,
		"session": sessionSummary{
			ID:    strconv.FormatInt(session.UserID, 10),
			Role:  session.Role,
			Email: session.Email,
		},
		"openaiTest": connectivity,
		"userAgent":  r.UserAgent(),
	})
}

// handleTestChatKit creates a throwaway ChatKit session for the admin
// workflow and reports which fields came back.
func (s *Server) handleTestChatKit(w http.ResponseWriter, r *http.Request) {
	workflowID := s.cfg.Workflows.Admin
	if workflowID == "" || !s.openAIConfigured() {
		api.WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"error":      "Missing environment variables",
			"workflowId": workflowID != "",
			"apiKey":     s.openAIConfigured(),
		})
		return
	}

	cs, err := s.cfg.OpenAI.CreateChatKitSession(r.Context(), workflowID, diagnosticsUser)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			api.WriteJSON(w, http.StatusInternalServerError, map[string]any{
				"error":  "ChatKit API call failed",
				"status": apiErr.StatusCode,
				"body":   apiErr.Body,
			})
			return
		}
		api.WriteError(w, r, api.ErrInternal("Internal server error: "+err.Error()).Wrap(err))
		return
	}

	keys := make([]string, 0, len(cs.Fields))
	for k := range cs.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  http.StatusOK,
		"data": map[string]any{
			"hasClientSecret": cs.HasClientSecret(),
			"keys":            keys,
		},
	})
}

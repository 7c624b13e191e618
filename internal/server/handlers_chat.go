package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/teemow/recircuit/internal/api"
	"github.com/teemow/recircuit/internal/auth"
	"github.com/teemow/recircuit/internal/chat"
	"github.com/teemow/recircuit/internal/logging"
	"github.com/teemow/recircuit/internal/openai"
)

func (s *Server) handleChatKitSession(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.SessionFromContext(r.Context())

	workflowID := s.cfg.Workflows.ForSession(session)
	if workflowID == "" {
		api.WriteError(w, r, api.ErrInternal("No workflow ID found for user role"))
		return
	}
	if s.cfg.OpenAI == nil || !s.cfg.OpenAI.Configured() {
		api.WriteError(w, r, api.ErrInternal("OpenAI API key is not configured"))
		return
	}

	cs, err := s.cfg.OpenAI.CreateChatKitSession(r.Context(), workflowID, strconv.FormatInt(session.UserID, 10))
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			api.WriteError(w, r, api.ErrInternal("Failed to create chat session: "+apiErr.Error()).Wrap(err))
			return
		}
		api.WriteError(w, r, api.ErrInternal("Internal server error: "+err.Error()).Wrap(err))
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"client_secret": cs.ClientSecret})
}

func (s *Server) handleChatKitThread(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	threadID, err := chat.NewThreadID(now)
	if err != nil {
		api.WriteError(w, r, api.ErrInternal("Failed to create thread").Wrap(err))
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{
		"thread_id":  threadID,
		"created_at": now.Format(time.RFC3339),
	})
}

// handleChatKitMessage streams the reply to a chat message through the
// configured chat mode.
func (s *Server) handleChatKitMessage(w http.ResponseWriter, r *http.Request) {
	var req chat.MessageRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, r, err)
		return
	}
	if req.ThreadID == "" || strings.TrimSpace(req.Message) == "" {
		api.WriteError(w, r, api.ErrBadRequest("Missing thread_id or message"))
		return
	}

	session, _ := auth.SessionFromContext(r.Context())
	if req.UserID == "" {
		req.UserID = strconv.FormatInt(session.UserID, 10)
	}

	ew, err := chat.NewEventWriter(w)
	if err != nil {
		api.WriteError(w, r, api.ErrInternal("Streaming unsupported").Wrap(err))
		return
	}

	ctx := r.Context()
	logger := s.logger.With(logging.Operation("chat.message"), slog.String("mode", s.cfg.ChatMode))

	switch s.cfg.ChatMode {
	case chat.ModeRelay:
		s.cfg.Metrics.IncrementActiveStreams(ctx, chat.ModeRelay)
		defer s.cfg.Metrics.DecrementActiveStreams(ctx, chat.ModeRelay)

		body, err := s.cfg.Relay.Forward(ctx, req)
		if err != nil {
			var upstream *chat.UpstreamError
			if errors.As(err, &upstream) {
				api.WriteError(w, r, api.NewError(upstream.StatusCode, upstream.Error()))
				return
			}
			api.WriteError(w, r, api.ErrInternal("Failed to send message: "+err.Error()).Wrap(err))
			return
		}
		defer body.Close()
		if err := ew.Pipe(body); err != nil {
			logger.DebugContext(ctx, "chat relay aborted", logging.Err(err))
		}

	case chat.ModeDirect:
		s.cfg.Metrics.IncrementActiveStreams(ctx, chat.ModeDirect)
		defer s.cfg.Metrics.DecrementActiveStreams(ctx, chat.ModeDirect)

		workflowID := s.cfg.Workflows.ForSession(session)
		if err := s.cfg.Direct.Stream(ctx, ew, workflowID, req.UserID, req.Message); err != nil {
			if ew.Started() {
				logger.DebugContext(ctx, "chat stream aborted", logging.Err(err))
				return
			}
			api.WriteError(w, r, api.ErrInternal("Failed to send message: "+err.Error()).Wrap(err))
		}

	default:
		if err := s.cfg.Local.Stream(ctx, ew, req.ThreadID, req.Message); err != nil {
			if ew.Started() {
				logger.DebugContext(ctx, "chat stream aborted", logging.Err(err))
				return
			}
			api.WriteError(w, r, api.ErrInternal("Failed to send message: "+err.Error()).Wrap(err))
		}
	}
}

type agentChatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleAgentChat(w http.ResponseWriter, r *http.Request) {
	var req agentChatRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		api.WriteError(w, r, api.ErrBadRequest("Message is required"))
		return
	}
	if s.cfg.Agent == nil {
		api.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Internal server error",
			"details": "agent is not configured",
		})
		return
	}

	session, _ := auth.SessionFromContext(r.Context())
	response, err := s.cfg.Agent.Run(r.Context(), chat.AgentRequest{
		Message: req.Message,
		UserID:  strconv.FormatInt(session.UserID, 10),
		Email:   session.Email,
		Admin:   session.IsAdmin(),
	})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "agent run failed", logging.Err(err))
		api.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Internal server error",
			"details": err.Error(),
		})
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"response": response,
	})
}

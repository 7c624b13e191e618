package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/teemow/recircuit/internal/instrumentation"
)

// ChatKitSession is a created ChatKit session.
type ChatKitSession struct {
	// ClientSecret is handed to the browser widget unchanged.
	ClientSecret json.RawMessage
	// Fields holds every top-level field of the response.
	Fields map[string]json.RawMessage
}

// HasClientSecret reports whether the session carries a client secret.
func (s *ChatKitSession) HasClientSecret() bool {
	return len(s.ClientSecret) > 0 && string(s.ClientSecret) != "null"
}

type chatKitSessionRequest struct {
	Workflow chatKitWorkflow `json:"workflow"`
	User     string          `json:"user"`
}

type chatKitWorkflow struct {
	ID string `json:"id"`
}

// CreateChatKitSession starts a ChatKit session for workflowID on behalf of
// user.
func (s *Service) CreateChatKitSession(ctx context.Context, workflowID, user string) (*ChatKitSession, error) {
	if workflowID == "" {
		return nil, fmt.Errorf("workflow ID is required")
	}
	if user == "" {
		user = "anonymous"
	}

	fields := map[string]json.RawMessage{}
	err := s.observe(ctx, instrumentation.OperationChatKitSession, func(ctx context.Context) error {
		return s.rest.do(ctx, http.MethodPost, "/chatkit/sessions", nil, chatKitSessionRequest{
			Workflow: chatKitWorkflow{ID: workflowID},
			User:     user,
		}, &fields, withChatKitBeta())
	})
	if err != nil {
		return nil, err
	}

	return &ChatKitSession{ClientSecret: fields["client_secret"], Fields: fields}, nil
}

type chatKitThreadRequest struct {
	ClientSecret json.RawMessage `json:"client_secret"`
	Message      chatKitMessage  `json:"message"`
}

type chatKitMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SendChatKitMessage posts a user message to the ChatKit threads API and
// returns the server-sent event stream. The caller closes it.
func (s *Service) SendChatKitMessage(ctx context.Context, session *ChatKitSession, text string) (io.ReadCloser, error) {
	if session == nil || !session.HasClientSecret() {
		return nil, fmt.Errorf("ChatKit session has no client secret")
	}

	var body io.ReadCloser
	err := s.observe(ctx, instrumentation.OperationChatKitMessage, func(ctx context.Context) error {
		resp, err := s.rest.send(ctx, http.MethodPost, "/chatkit/threads", nil, chatKitThreadRequest{
			ClientSecret: session.ClientSecret,
			Message:      chatKitMessage{Role: "user", Content: text},
		}, withChatKitBeta(), withAccept("text/event-stream"))
		if err != nil {
			return err
		}
		body = resp.Body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

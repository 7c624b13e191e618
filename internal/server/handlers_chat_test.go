package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/recircuit/internal/chat"
	"github.com/teemow/recircuit/internal/openai"
)

type fakeRelay struct {
	req    chat.MessageRequest
	stream string
	err    error
}

func (f *fakeRelay) Forward(_ context.Context, req chat.MessageRequest) (io.ReadCloser, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.stream)), nil
}

type fakeDirect struct {
	workflowID string
	userID     string
	text       string
	err        error
}

func (f *fakeDirect) Stream(_ context.Context, w *chat.EventWriter, workflowID, userID, text string) error {
	f.workflowID, f.userID, f.text = workflowID, userID, text
	if f.err != nil {
		return f.err
	}
	return w.Send(chat.TextEvent(chat.EventComplete, ""))
}

// readEvents decodes the data lines of an event stream.
func readEvents(t *testing.T, body string) []chat.Event {
	t.Helper()
	var events []chat.Event
	require.NoError(t, chat.ReadEvents(strings.NewReader(body), func(data []byte) error {
		var ev chat.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		events = append(events, ev)
		return nil
	}))
	return events
}

func TestChatKitSession(t *testing.T) {
	t.Run("workflow by role", func(t *testing.T) {
		env := newTestEnv(t)
		env.openai.session = &openai.ChatKitSession{ClientSecret: json.RawMessage(`"ek_123"`)}

		rec := env.do(t, http.MethodPost, "/api/chatkit/session", nil, env.admin)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]any{"client_secret": "ek_123"}, decodeBody(t, rec))
		assert.Equal(t, "wf_admin", env.openai.workflowID)
		assert.Equal(t, strconv.FormatInt(env.admin.ID, 10), env.openai.sessionUser)

		rec = env.do(t, http.MethodPost, "/api/chatkit/session", nil, env.user)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "wf_user", env.openai.workflowID)
	})

	t.Run("missing workflow", func(t *testing.T) {
		env := newTestEnv(t, func(cfg *Config) { cfg.Workflows.User = "" })
		rec := env.do(t, http.MethodPost, "/api/chatkit/session", nil, env.user)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "No workflow ID found for user role", decodeBody(t, rec)["error"])
	})

	t.Run("upstream rejection", func(t *testing.T) {
		env := newTestEnv(t)
		env.openai.sessionErr = &openai.APIError{StatusCode: http.StatusBadRequest, Body: `{"error":"bad workflow"}`}

		rec := env.do(t, http.MethodPost, "/api/chatkit/session", nil, env.user)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, `Failed to create chat session: 400 {"error":"bad workflow"}`, decodeBody(t, rec)["error"])
	})

	t.Run("transport failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.openai.sessionErr = errors.New("dial tcp: timeout")

		rec := env.do(t, http.MethodPost, "/api/chatkit/session", nil, env.user)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Internal server error: dial tcp: timeout", decodeBody(t, rec)["error"])
	})
}

func TestChatKitThread(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/chatkit/thread", nil, env.user)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Regexp(t, regexp.MustCompile(`^thread_\d+_[0-9a-z]{9}$`), body["thread_id"])
	_, err := time.Parse(time.RFC3339, body["created_at"].(string))
	assert.NoError(t, err)
}

func TestChatKitMessage_Local(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/api/chatkit/message", `{"thread_id":"thread_1"}`, env.user)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing thread_id or message", decodeBody(t, rec)["error"])

	rec = env.doJSON(t, http.MethodPost, "/api/chatkit/message", `{"thread_id":"thread_1","message":"Hi"}`, env.user)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "thread_1", env.local.threadID)
	assert.Equal(t, "Hi", env.local.text)

	events := readEvents(t, rec.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, chat.EventAssistantMessage, events[0].Type)
	assert.Equal(t, chat.EventComplete, events[1].Type)

	env.local.err = errors.New("history unavailable")
	rec = env.doJSON(t, http.MethodPost, "/api/chatkit/message", `{"thread_id":"thread_1","message":"Hi"}`, env.user)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to send message: history unavailable", decodeBody(t, rec)["error"])
}

func TestChatKitMessage_Relay(t *testing.T) {
	relay := &fakeRelay{stream: "data: {\"type\":\"assistant_message\",\"content\":\"Hi\"}\n\n"}
	env := newTestEnv(t, func(cfg *Config) {
		cfg.ChatMode = chat.ModeRelay
		cfg.Relay = relay
	})

	rec := env.doJSON(t, http.MethodPost, "/api/chatkit/message", `{"thread_id":"thread_1","message":"Hi"}`, env.user)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, relay.stream, rec.Body.String())
	assert.Equal(t, strconv.FormatInt(env.user.ID, 10), relay.req.UserID)

	rec = env.doJSON(t, http.MethodPost, "/api/chatkit/message", `{"thread_id":"thread_1","message":"Hi","user_id":"custom"}`, env.user)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "custom", relay.req.UserID)

	relay.err = &chat.UpstreamError{StatusCode: http.StatusBadGateway, Body: "upstream down"}
	rec = env.doJSON(t, http.MethodPost, "/api/chatkit/message", `{"thread_id":"thread_1","message":"Hi"}`, env.user)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "ChatKit server error: 502 upstream down", decodeBody(t, rec)["error"])

	relay.err = errors.New("connection refused")
	rec = env.doJSON(t, http.MethodPost, "/api/chatkit/message", `{"thread_id":"thread_1","message":"Hi"}`, env.user)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to send message: connection refused", decodeBody(t, rec)["error"])
}

func TestChatKitMessage_Direct(t *testing.T) {
	direct := &fakeDirect{}
	env := newTestEnv(t, func(cfg *Config) {
		cfg.ChatMode = chat.ModeDirect
		cfg.Direct = direct
	})

	rec := env.doJSON(t, http.MethodPost, "/api/chatkit/message", `{"thread_id":"thread_1","message":"Hi"}`, env.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "wf_admin", direct.workflowID)
	assert.Equal(t, strconv.FormatInt(env.admin.ID, 10), direct.userID)
	assert.Equal(t, "Hi", direct.text)

	direct.err = errors.New("no workflow ID found for user role")
	rec = env.doJSON(t, http.MethodPost, "/api/chatkit/message", `{"thread_id":"thread_1","message":"Hi"}`, env.user)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to send message: no workflow ID found for user role", decodeBody(t, rec)["error"])
}

func TestLocalChatKitEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/chatkit", `{"thread_id":"thread_1","message":"Hi"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.doJSON(t, http.MethodPost, "/chatkit", `{"thread_id":"thread_1","message":"Hi"}`, env.user)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAgentChat(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/api/agent-chat", `{"message":"  "}`, env.user)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Message is required", decodeBody(t, rec)["error"])

	env.agent.response = "The handbook says 25 days."
	rec = env.doJSON(t, http.MethodPost, "/api/agent-chat", `{"message":"How many vacation days?"}`, env.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"success": true, "response": "The handbook says 25 days."}, decodeBody(t, rec))
	assert.Equal(t, chat.AgentRequest{
		Message: "How many vacation days?",
		UserID:  strconv.FormatInt(env.admin.ID, 10),
		Email:   "admin@example.com",
		Admin:   true,
	}, env.agent.req)

	env.agent.err = chat.ErrEmptyOutput
	rec = env.doJSON(t, http.MethodPost, "/api/agent-chat", `{"message":"Hi"}`, env.user)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"error": "Internal server error", "details": "agent result is undefined"}, decodeBody(t, rec))
	assert.False(t, env.agent.req.Admin)
}

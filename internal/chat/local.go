package chat

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/recircuit/internal/api"
	"github.com/teemow/recircuit/internal/instrumentation"
	"github.com/teemow/recircuit/internal/logging"
	"github.com/teemow/recircuit/internal/openai"
)

// Stream modes, used as the metric mode attribute.
const (
	ModeRelay  = "relay"
	ModeDirect = "direct"
	ModeLocal  = "local"
)

// DefaultChatModel is the model of the self-hosted ChatKit endpoint.
const DefaultChatModel = "gpt-4o"

const (
	localTemperature = 0.7
	localMaxTokens   = 1000
)

// SystemPrompt is sent ahead of every self-hosted conversation.
const SystemPrompt = `You are a helpful AI assistant. You can help users with various tasks including:
- Answering questions
- Providing explanations
- Helping with problem-solving
- Offering suggestions and recommendations

Be helpful, accurate, and friendly in your responses. Keep responses concise but informative.`

// ChatStreamer streams chat completions.
type ChatStreamer interface {
	StreamChat(ctx context.Context, req openai.ChatRequest, onDelta func(string) error) (string, error)
}

// LocalConfig configures a LocalServer.
type LocalConfig struct {
	Chat    ChatStreamer
	History History
	Model   string
	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// LocalServer is an in-process ChatKit server. It keeps per-thread history
// and answers with streamed chat completions.
type LocalServer struct {
	chat    ChatStreamer
	history History
	model   string
	metrics *instrumentation.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewLocalServer creates a LocalServer. History defaults to memory.
func NewLocalServer(cfg LocalConfig) *LocalServer {
	if cfg.History == nil {
		cfg.History = NewMemoryHistory()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &LocalServer{
		chat:    cfg.Chat,
		history: cfg.History,
		model:   cfg.Model,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		now:     time.Now,
	}
}

// ServeHTTP handles POST /chatkit.
func (s *LocalServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, r, err)
		return
	}
	if req.ThreadID == "" || strings.TrimSpace(req.Message) == "" {
		api.WriteError(w, r, api.ErrBadRequest("Missing thread_id or message"))
		return
	}

	ew, err := NewEventWriter(w)
	if err != nil {
		api.WriteError(w, r, api.ErrInternal("Streaming unsupported").Wrap(err))
		return
	}

	if err := s.Stream(r.Context(), ew, req.ThreadID, req.Message); err != nil {
		if ew.Started() {
			s.logger.DebugContext(r.Context(), "chat stream aborted", logging.Err(err))
			return
		}
		api.WriteError(w, r, api.ErrInternal(err.Error()).Wrap(err))
	}
}

// Stream records the user message, streams the assistant reply as
// assistant_message deltas and finishes with a complete event carrying the
// full reply. Only history failures before streaming are returned.
func (s *LocalServer) Stream(ctx context.Context, w *EventWriter, threadID, text string) error {
	s.metrics.IncrementActiveStreams(ctx, ModeLocal)
	defer s.metrics.DecrementActiveStreams(ctx, ModeLocal)

	if err := s.history.Append(ctx, threadID, s.message(openai.RoleUser, text)); err != nil {
		return err
	}

	recent, err := s.history.Recent(ctx, threadID, ContextMessages)
	if err != nil {
		return err
	}

	messages := make([]openai.ChatMessage, 0, len(recent)+1)
	messages = append(messages, openai.ChatMessage{Role: openai.RoleSystem, Content: SystemPrompt})
	for _, m := range recent {
		messages = append(messages, openai.ChatMessage{Role: m.Role, Content: m.Content})
	}

	reply, err := s.chat.StreamChat(ctx, openai.ChatRequest{
		Model:       s.model,
		Messages:    messages,
		Temperature: localTemperature,
		MaxTokens:   localMaxTokens,
	}, func(delta string) error {
		return w.Send(TextEvent(EventAssistantMessage, delta))
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "chat completion failed",
			slog.String("thread_id", threadID),
			logging.Err(err))
		return w.Send(TextEvent(EventError, "Error: "+err.Error()))
	}

	if err := s.history.Append(ctx, threadID, s.message(openai.RoleAssistant, reply)); err != nil {
		s.logger.WarnContext(ctx, "failed to store assistant reply",
			slog.String("thread_id", threadID),
			logging.Err(err))
	}

	return w.Send(TextEvent(EventComplete, reply))
}

func (s *LocalServer) message(role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
}

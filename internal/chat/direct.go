package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/teemow/recircuit/internal/openai"
)

// ChatKitAPI is the subset of the OpenAI client used for direct ChatKit
// messaging.
type ChatKitAPI interface {
	CreateChatKitSession(ctx context.Context, workflowID, user string) (*openai.ChatKitSession, error)
	SendChatKitMessage(ctx context.Context, session *openai.ChatKitSession, text string) (io.ReadCloser, error)
}

// Direct sends messages straight to the OpenAI ChatKit threads API.
type Direct struct {
	api    ChatKitAPI
	logger *slog.Logger
}

// NewDirect creates a Direct sender.
func NewDirect(api ChatKitAPI, logger *slog.Logger) *Direct {
	if logger == nil {
		logger = slog.Default()
	}
	return &Direct{api: api, logger: logger}
}

type upstreamEvent struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// Stream opens a ChatKit session for workflowID, sends text and re-emits the
// upstream assistant_message, tool_call and widget events, then complete.
// Errors after the stream has started are emitted as an error event.
func (d *Direct) Stream(ctx context.Context, w *EventWriter, workflowID, userID, text string) error {
	if workflowID == "" {
		return fmt.Errorf("no workflow ID found for user role")
	}

	session, err := d.api.CreateChatKitSession(ctx, workflowID, userID)
	if err != nil {
		return fmt.Errorf("failed to create ChatKit session: %w", err)
	}

	stream, err := d.api.SendChatKitMessage(ctx, session, text)
	if err != nil {
		return fmt.Errorf("failed to send message to ChatKit: %w", err)
	}
	defer stream.Close()

	err = ReadEvents(stream, func(data []byte) error {
		var ev upstreamEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			d.logger.DebugContext(ctx, "skipping malformed ChatKit event", slog.String("error", err.Error()))
			return nil
		}

		switch ev.Type {
		case EventAssistantMessage:
			content, ok := contentText(ev.Content)
			if !ok {
				return nil
			}
			return w.Send(TextEvent(EventAssistantMessage, content))
		case EventToolCall, EventWidget:
			return w.Send(Event{Type: ev.Type, Data: json.RawMessage(data)})
		}
		return nil
	})
	if err != nil {
		return w.Send(TextEvent(EventError, "Error: "+err.Error()))
	}

	return w.Send(TextEvent(EventComplete, ""))
}

// contentText returns the text of an assistant_message content field. Empty
// content is skipped.
func contentText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}
	return string(raw), true
}

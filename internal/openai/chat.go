package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	sdk "github.com/sashabaranov/go-openai"

	"github.com/teemow/recircuit/internal/instrumentation"
)

// Chat message roles.
const (
	RoleSystem    = sdk.ChatMessageRoleSystem
	RoleUser      = sdk.ChatMessageRoleUser
	RoleAssistant = sdk.ChatMessageRoleAssistant
)

// ChatMessage is one message of a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a streamed chat completion request.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature float32
	MaxTokens   int
}

// StreamChat streams a chat completion, calling onDelta for every content
// delta, and returns the full assistant message.
func (s *Service) StreamChat(ctx context.Context, req ChatRequest, onDelta func(string) error) (string, error) {
	messages := make([]sdk.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, sdk.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	var full strings.Builder
	err := s.observe(ctx, instrumentation.OperationChatCompletion, func(ctx context.Context) error {
		stream, err := s.sdk.CreateChatCompletionStream(ctx, sdk.ChatCompletionRequest{
			Model:       req.Model,
			Messages:    messages,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
			Stream:      true,
		})
		if err != nil {
			return err
		}
		defer stream.Close()

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			full.WriteString(delta)
			if err := onDelta(delta); err != nil {
				return err
			}
		}
	})
	if err != nil {
		return full.String(), fmt.Errorf("chat completion failed: %w", err)
	}
	return full.String(), nil
}

package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/teemow/recircuit/internal/instrumentation"
)

// Responses API item and tool types.
const (
	ItemTypeMessage            = "message"
	ItemTypeFunctionCall       = "function_call"
	ItemTypeFunctionCallOutput = "function_call_output"
	ContentTypeOutputText      = "output_text"
	ToolTypeFileSearch         = "file_search"
)

// ResponseRequest is a Responses API request.
type ResponseRequest struct {
	Model              string     `json:"model"`
	Instructions       string     `json:"instructions,omitempty"`
	Input              []any      `json:"input"`
	Tools              []any      `json:"tools,omitempty"`
	PreviousResponseID string     `json:"previous_response_id,omitempty"`
	Reasoning          *Reasoning `json:"reasoning,omitempty"`
	Store              *bool      `json:"store,omitempty"`
	User               string     `json:"user,omitempty"`
}

// Reasoning configures reasoning models.
type Reasoning struct {
	Effort  string `json:"effort,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// InputMessage is a plain text input item.
type InputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FunctionCallOutput returns a function result to the model.
type FunctionCallOutput struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

// NewFunctionCallOutput creates a function_call_output item.
func NewFunctionCallOutput(callID, output string) FunctionCallOutput {
	return FunctionCallOutput{Type: ItemTypeFunctionCallOutput, CallID: callID, Output: output}
}

// FileSearchTool searches the given vector stores.
type FileSearchTool struct {
	Type           string   `json:"type"`
	VectorStoreIDs []string `json:"vector_store_ids"`
}

// NewFileSearchTool creates a file_search tool over vectorStoreIDs.
func NewFileSearchTool(vectorStoreIDs ...string) FileSearchTool {
	return FileSearchTool{Type: ToolTypeFileSearch, VectorStoreIDs: vectorStoreIDs}
}

// Response is a Responses API result.
type Response struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	Output []OutputItem   `json:"output"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError is the error of a failed response.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OutputItem is one item of a response's output.
type OutputItem struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Role      string          `json:"role,omitempty"`
	Content   []OutputContent `json:"content,omitempty"`
	CallID    string          `json:"call_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Arguments string          `json:"arguments,omitempty"`
}

// OutputContent is a content part of a message item.
type OutputContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// OutputText concatenates the text of all message items.
func (r *Response) OutputText() string {
	var b strings.Builder
	for _, item := range r.Output {
		if item.Type != ItemTypeMessage {
			continue
		}
		for _, c := range item.Content {
			if c.Type == ContentTypeOutputText {
				b.WriteString(c.Text)
			}
		}
	}
	return b.String()
}

// FunctionCalls returns the function_call items of the response.
func (r *Response) FunctionCalls() []OutputItem {
	var calls []OutputItem
	for _, item := range r.Output {
		if item.Type == ItemTypeFunctionCall {
			calls = append(calls, item)
		}
	}
	return calls
}

// CreateResponse runs one Responses API turn.
func (s *Service) CreateResponse(ctx context.Context, req ResponseRequest) (*Response, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	var resp Response
	err := s.observe(ctx, instrumentation.OperationResponse, func(ctx context.Context) error {
		return s.rest.do(ctx, http.MethodPost, "/responses", nil, req, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create response: %w", err)
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return nil, fmt.Errorf("response %s failed: %s", resp.ID, resp.Error.Message)
	}
	return &resp, nil
}

package openai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_CreateResponse(t *testing.T) {
	f, s := newFakeOpenAI(t)

	resp, err := s.CreateResponse(context.Background(), ResponseRequest{
		Model:        "gpt-4.1",
		Instructions: "Answer from the documents.",
		Input:        []any{InputMessage{Role: RoleUser, Content: "hi"}},
		Tools:        []any{NewFileSearchTool("vs_123")},
	})
	require.NoError(t, err)
	assert.Equal(t, "resp_1", resp.ID)
	assert.Equal(t, "Hello world", resp.OutputText())
	assert.Empty(t, resp.FunctionCalls())

	body := f.get("responses").body
	assert.Equal(t, "gpt-4.1", body["model"])
	tools := body["tools"].([]any)
	require.Len(t, tools, 1)
	assert.Equal(t, map[string]any{"type": "file_search", "vector_store_ids": []any{"vs_123"}}, tools[0])
	_, hasPrevious := body["previous_response_id"]
	assert.False(t, hasPrevious)

	_, err = s.CreateResponse(context.Background(), ResponseRequest{})
	assert.Error(t, err)
}

func TestResponse_FunctionCalls(t *testing.T) {
	resp := &Response{Output: []OutputItem{
		{Type: ItemTypeFunctionCall, CallID: "call_1", Name: "search_events", Arguments: `{}`},
		{Type: ItemTypeMessage, Content: []OutputContent{{Type: "refusal", Text: "no"}}},
		{Type: ItemTypeFunctionCall, CallID: "call_2", Name: "delete_event", Arguments: `{"eventId":"e"}`},
	}}

	calls := resp.FunctionCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "call_1", calls[0].CallID)
	assert.Equal(t, "delete_event", calls[1].Name)
	assert.Equal(t, "", resp.OutputText())

	out := NewFunctionCallOutput("call_1", `{"ok":true}`)
	assert.Equal(t, ItemTypeFunctionCallOutput, out.Type)
}

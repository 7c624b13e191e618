package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/recircuit/internal/calendar"
	"github.com/teemow/recircuit/internal/instrumentation"
	"github.com/teemow/recircuit/internal/openai"
)

type fakeResponder struct {
	responses []*openai.Response
	err       error
	requests  []openai.ResponseRequest
}

func (f *fakeResponder) CreateResponse(_ context.Context, req openai.ResponseRequest) (*openai.Response, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	i := len(f.requests) - 1
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}

type recordedCall struct {
	name   string
	args   string
	caller calendar.Caller
}

type fakeFunctions struct {
	calls  []recordedCall
	result any
	err    error
}

func (f *fakeFunctions) Call(_ context.Context, name string, args json.RawMessage, caller calendar.Caller) (any, error) {
	f.calls = append(f.calls, recordedCall{name: name, args: string(args), caller: caller})
	return f.result, f.err
}

func textResponse(id, text string) *openai.Response {
	return &openai.Response{
		ID: id,
		Output: []openai.OutputItem{{
			Type:    openai.ItemTypeMessage,
			Role:    "assistant",
			Content: []openai.OutputContent{{Type: openai.ContentTypeOutputText, Text: text}},
		}},
	}
}

func callResponse(id, callID, name, args string) *openai.Response {
	return &openai.Response{
		ID: id,
		Output: []openai.OutputItem{{
			Type:      openai.ItemTypeFunctionCall,
			CallID:    callID,
			Name:      name,
			Arguments: args,
		}},
	}
}

func toolTypes(tools []any) []string {
	var types []string
	for _, tool := range tools {
		switch v := tool.(type) {
		case openai.FileSearchTool:
			types = append(types, v.Type)
		case calendar.FunctionDefinition:
			types = append(types, v.Name)
		}
	}
	return types
}

func TestAgent_Run_DocumentsOnly(t *testing.T) {
	responder := &fakeResponder{responses: []*openai.Response{textResponse("resp_1", "From the handbook: yes.")}}
	agent := NewAgent(AgentConfig{Responses: responder, Functions: &fakeFunctions{}, VectorStoreID: "vs_1"})

	out, err := agent.Run(context.Background(), AgentRequest{Message: "Is it allowed?", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "From the handbook: yes.", out)

	require.Len(t, responder.requests, 1)
	req := responder.requests[0]
	assert.Equal(t, DefaultAgentModel, req.Model)
	assert.Equal(t, AgentInstructions, req.Instructions)
	assert.Equal(t, "u1", req.User)
	assert.Empty(t, req.PreviousResponseID)
	assert.Equal(t, []string{openai.ToolTypeFileSearch}, toolTypes(req.Tools))
	assert.Equal(t, []any{openai.InputMessage{Role: openai.RoleUser, Content: "Is it allowed?"}}, req.Input)
	require.NotNil(t, req.Store)
	assert.True(t, *req.Store)
}

func TestAgent_Run_AdminCalendarFunctions(t *testing.T) {
	responder := &fakeResponder{responses: []*openai.Response{
		callResponse("resp_1", "call_1", calendar.FunctionSearchEvents, `{"query":"standup"}`),
		textResponse("resp_2", "You have a standup at 9."),
	}}
	functions := &fakeFunctions{result: map[string]any{"items": []string{"standup"}}}
	agent := NewAgent(AgentConfig{Responses: responder, Functions: functions, Model: "gpt-test"})

	out, err := agent.Run(context.Background(), AgentRequest{Message: "What is on today?", Email: "admin@example.com", Admin: true})
	require.NoError(t, err)
	assert.Equal(t, "You have a standup at 9.", out)

	require.Len(t, functions.calls, 1)
	assert.Equal(t, calendar.FunctionSearchEvents, functions.calls[0].name)
	assert.JSONEq(t, `{"query":"standup"}`, functions.calls[0].args)
	assert.Equal(t, calendar.Caller{Source: instrumentation.SourceAgent, Email: "admin@example.com"}, functions.calls[0].caller)

	require.Len(t, responder.requests, 2)
	first := responder.requests[0]
	assert.Contains(t, first.Instructions, "Google Calendar")
	assert.Equal(t, []string{
		calendar.FunctionSearchEvents,
		calendar.FunctionCreateEvent,
		calendar.FunctionUpdateEvent,
		calendar.FunctionDeleteEvent,
	}, toolTypes(first.Tools))

	second := responder.requests[1]
	assert.Equal(t, "resp_1", second.PreviousResponseID)
	require.Len(t, second.Input, 1)
	output, ok := second.Input[0].(openai.FunctionCallOutput)
	require.True(t, ok)
	assert.Equal(t, "call_1", output.CallID)
	assert.JSONEq(t, `{"items":["standup"]}`, output.Output)
}

func TestAgent_Run_FunctionErrorsGoBackToModel(t *testing.T) {
	tests := []struct {
		name      string
		admin     bool
		functions *fakeFunctions
		wantCalls int
		wantOut   string
	}{
		{
			name:      "calendar not connected",
			admin:     true,
			functions: &fakeFunctions{err: calendar.ErrNotConnected},
			wantCalls: 1,
			wantOut:   calendar.ErrNotConnected.Error(),
		},
		{
			name:      "non-admin cannot call calendar",
			functions: &fakeFunctions{},
			wantCalls: 0,
			wantOut:   calendar.ErrUnknownFunction.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			responder := &fakeResponder{responses: []*openai.Response{
				callResponse("resp_1", "call_1", calendar.FunctionDeleteEvent, ""),
				textResponse("resp_2", "Sorry."),
			}}
			agent := NewAgent(AgentConfig{Responses: responder, Functions: tt.functions})

			out, err := agent.Run(context.Background(), AgentRequest{Message: "delete it", Admin: tt.admin})
			require.NoError(t, err)
			assert.Equal(t, "Sorry.", out)
			assert.Len(t, tt.functions.calls, tt.wantCalls)

			require.Len(t, responder.requests, 2)
			output := responder.requests[1].Input[0].(openai.FunctionCallOutput)
			var body map[string]string
			require.NoError(t, json.Unmarshal([]byte(output.Output), &body))
			assert.Contains(t, body["error"], tt.wantOut)
		})
	}
}

func TestAgent_Run_Failures(t *testing.T) {
	t.Run("upstream error", func(t *testing.T) {
		upstream := errors.New("500 server error")
		agent := NewAgent(AgentConfig{Responses: &fakeResponder{err: upstream}})
		_, err := agent.Run(context.Background(), AgentRequest{Message: "hi"})
		assert.ErrorIs(t, err, upstream)
	})

	t.Run("empty output", func(t *testing.T) {
		agent := NewAgent(AgentConfig{Responses: &fakeResponder{responses: []*openai.Response{{ID: "resp_1"}}}})
		_, err := agent.Run(context.Background(), AgentRequest{Message: "hi"})
		assert.ErrorIs(t, err, ErrEmptyOutput)
	})

	t.Run("too many rounds", func(t *testing.T) {
		responder := &fakeResponder{responses: []*openai.Response{
			callResponse("resp_n", "call_n", calendar.FunctionSearchEvents, "{}"),
		}}
		functions := &fakeFunctions{result: map[string]any{}}
		agent := NewAgent(AgentConfig{Responses: responder, Functions: functions})

		_, err := agent.Run(context.Background(), AgentRequest{Message: "loop", Admin: true})
		assert.ErrorIs(t, err, ErrTooManyRounds)
		assert.Len(t, responder.requests, MaxAgentRounds)
		assert.Len(t, functions.calls, MaxAgentRounds)
	})
}

package calendar_tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/recircuit/internal/auth"
	"github.com/teemow/recircuit/internal/calendar"
	"github.com/teemow/recircuit/internal/instrumentation"
)

type fakeFunctions struct {
	name   string
	args   string
	caller calendar.Caller
	result any
	err    error
}

func (f *fakeFunctions) Call(_ context.Context, name string, args json.RawMessage, caller calendar.Caller) (any, error) {
	f.name = name
	f.args = string(args)
	f.caller = caller
	return f.result, f.err
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestRegisterCalendarTools(t *testing.T) {
	s := mcpserver.NewMCPServer("recircuit-test", "0.0.0", mcpserver.WithToolCapabilities(false))
	require.NoError(t, RegisterCalendarTools(s, &fakeFunctions{}, nil))

	for _, fn := range []string{
		calendar.FunctionSearchEvents,
		calendar.FunctionCreateEvent,
		calendar.FunctionUpdateEvent,
		calendar.FunctionDeleteEvent,
	} {
		tool := s.GetTool(ToolName(fn))
		require.NotNil(t, tool, fn)
		assert.NotEmpty(t, tool.Tool.Description)
		assert.Contains(t, string(tool.Tool.RawInputSchema), `"type":"object"`)
	}
}

func TestHandleFunction(t *testing.T) {
	functions := &fakeFunctions{result: map[string]any{"success": true}}
	handler := handleFunction(calendar.FunctionDeleteEvent, functions)

	ctx := auth.WithSession(context.Background(), &auth.Session{Email: "admin@example.com", Role: "admin"})
	result, err := handler(ctx, callRequest("calendar_delete_event", map[string]any{"eventId": "evt-1"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"success":true}`, resultText(t, result))

	assert.Equal(t, calendar.FunctionDeleteEvent, functions.name)
	assert.JSONEq(t, `{"eventId":"evt-1"}`, functions.args)
	assert.Equal(t, calendar.Caller{Source: instrumentation.SourceMCP, Email: "admin@example.com"}, functions.caller)
}

func TestHandleFunction_Errors(t *testing.T) {
	t.Run("function error becomes error result", func(t *testing.T) {
		handler := handleFunction(calendar.FunctionSearchEvents, &fakeFunctions{err: calendar.ErrNotConnected})
		result, err := handler(context.Background(), callRequest("calendar_search_events", nil))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Equal(t, calendar.ErrNotConnected.Error(), resultText(t, result))
	})

	t.Run("missing arguments are sent as empty object", func(t *testing.T) {
		functions := &fakeFunctions{result: []string{}}
		handler := handleFunction(calendar.FunctionSearchEvents, functions)
		_, err := handler(context.Background(), callRequest("calendar_search_events", nil))
		require.NoError(t, err)
		assert.Equal(t, "{}", functions.args)
	})
}

package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendarapi "google.golang.org/api/calendar/v3"

	"github.com/teemow/recircuit/internal/instrumentation"
	"github.com/teemow/recircuit/internal/logging"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) ValidAccessToken(context.Context) (string, error) {
	return s.token, s.err
}

func TestFunctions_Call(t *testing.T) {
	eventData, err := json.Marshal(map[string]any{"eventData": validEventData()})
	require.NoError(t, err)

	tests := []struct {
		name      string
		tokens    staticTokens
		function  string
		args      string
		wantErr   error
		wantCalls int
		check     func(t *testing.T, result any)
	}{
		{
			name:     "not connected wins over unknown function",
			tokens:   staticTokens{err: ErrNotConnected},
			function: "launch_rocket",
			wantErr:  ErrNotConnected,
		},
		{
			name:     "unknown function",
			tokens:   staticTokens{token: "tok"},
			function: "launch_rocket",
			wantErr:  ErrUnknownFunction,
		},
		{
			name:      "search events",
			tokens:    staticTokens{token: "tok"},
			function:  FunctionSearchEvents,
			args:      `{"timeMin":"2025-03-01T00:00:00Z"}`,
			wantCalls: 1,
			check: func(t *testing.T, result any) {
				events, ok := result.(*calendarapi.Events)
				require.True(t, ok)
				assert.Len(t, events.Items, 2)
			},
		},
		{
			name:      "search events without arguments",
			tokens:    staticTokens{token: "tok"},
			function:  FunctionSearchEvents,
			args:      `null`,
			wantCalls: 1,
		},
		{
			name:      "create event",
			tokens:    staticTokens{token: "tok"},
			function:  FunctionCreateEvent,
			args:      string(eventData),
			wantCalls: 1,
			check: func(t *testing.T, result any) {
				event, ok := result.(*calendarapi.Event)
				require.True(t, ok)
				assert.Equal(t, "created1", event.Id)
			},
		},
		{
			name:     "create event without event data",
			tokens:   staticTokens{token: "tok"},
			function: FunctionCreateEvent,
			args:     `{}`,
			wantErr:  ErrInvalidArguments,
		},
		{
			name:     "update event without id",
			tokens:   staticTokens{token: "tok"},
			function: FunctionUpdateEvent,
			args:     string(eventData),
			wantErr:  ErrInvalidArguments,
		},
		{
			name:      "delete event",
			tokens:    staticTokens{token: "tok"},
			function:  FunctionDeleteEvent,
			args:      `{"eventId":"evt1"}`,
			wantCalls: 1,
			check: func(t *testing.T, result any) {
				assert.Equal(t, &DeleteResult{Success: true}, result)
			},
		},
		{
			name:     "malformed arguments",
			tokens:   staticTokens{token: "tok"},
			function: FunctionDeleteEvent,
			args:     `{"eventId":`,
			wantErr:  ErrInvalidArguments,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, factory := newFakeCalendarAPI(t)
			f := NewFunctions(tt.tokens, factory, nil, instrumentation.NewAuditLogger(nil), nil)

			result, err := f.Call(context.Background(), tt.function, json.RawMessage(tt.args), Caller{
				Source: instrumentation.SourceHTTP,
				Email:  "alice@example.com",
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			if tt.check != nil {
				tt.check(t, result)
			}
			assert.Equal(t, tt.wantCalls, api.count())
		})
	}
}

func TestFunctions_Call_UpstreamError(t *testing.T) {
	api, factory := newFakeCalendarAPI(t)
	api.failWith(http.StatusForbidden)

	var buf bytes.Buffer
	f := NewFunctions(staticTokens{token: "tok"}, factory, nil, nil, logging.New(&buf, logging.FormatJSON, true))
	_, err := f.Call(context.Background(), FunctionDeleteEvent, json.RawMessage(`{"eventId":"evt1"}`), Caller{Source: instrumentation.SourceAgent})
	require.Error(t, err)
	assert.Equal(t, "Google Calendar API error: 403 Forbidden", err.Error())

	out := buf.String()
	assert.Contains(t, out, `"msg":"calendar function failed"`)
	assert.Contains(t, out, `"level":"DEBUG"`)
	assert.Contains(t, out, `"function":"delete_event"`)
	assert.Contains(t, out, `"error":"Google Calendar API error: 403 Forbidden"`)
}

func TestFunctionDefinitions(t *testing.T) {
	defs := FunctionDefinitions()
	require.Len(t, defs, 4)

	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
		assert.Equal(t, "function", d.Type)
		assert.NotEmpty(t, d.Description)
		assert.True(t, IsFunction(d.Name))
	}
	assert.Equal(t, []string{FunctionSearchEvents, FunctionCreateEvent, FunctionUpdateEvent, FunctionDeleteEvent}, names)

	assert.Equal(t, []string{"eventId", "eventData"}, defs[2].Parameters.Required)
	assert.Equal(t, []string{"eventId"}, defs[3].Parameters.Required)

	data, err := json.Marshal(defs[1])
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	params := decoded["parameters"].(map[string]any)
	eventData := params["properties"].(map[string]any)["eventData"].(map[string]any)
	assert.Equal(t, []any{"summary", "start", "end"}, eventData["required"])
	assert.Equal(t, false, eventData["additionalProperties"])
}

package calendar

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientFactory_EmptyToken(t *testing.T) {
	f := &ClientFactory{}
	_, err := f.New(context.Background(), "")
	assert.Error(t, err)
}

func TestClient_SearchEvents(t *testing.T) {
	api, factory := newFakeCalendarAPI(t)
	client, err := factory.New(context.Background(), "access-123")
	require.NoError(t, err)

	events, err := client.SearchEvents(context.Background(), SearchArgs{
		TimeMin: "2025-03-01T00:00:00Z",
		TimeMax: "2025-03-31T00:00:00Z",
		Query:   "standup",
	})
	require.NoError(t, err)
	require.Len(t, events.Items, 2)
	assert.Equal(t, "evt1", events.Items[0].Id)

	req, _ := api.last()
	require.NotNil(t, req)
	assert.Equal(t, "Bearer access-123", req.Header.Get("Authorization"))
	q := req.URL.Query()
	assert.Equal(t, "true", q.Get("singleEvents"))
	assert.Equal(t, "startTime", q.Get("orderBy"))
	assert.Equal(t, "2025-03-01T00:00:00Z", q.Get("timeMin"))
	assert.Equal(t, "2025-03-31T00:00:00Z", q.Get("timeMax"))
	assert.Equal(t, "standup", q.Get("q"))
}

func TestClient_SearchEvents_OptionalBounds(t *testing.T) {
	api, factory := newFakeCalendarAPI(t)
	client, err := factory.New(context.Background(), "access-123")
	require.NoError(t, err)

	_, err = client.SearchEvents(context.Background(), SearchArgs{})
	require.NoError(t, err)

	req, _ := api.last()
	q := req.URL.Query()
	assert.False(t, q.Has("timeMin"))
	assert.False(t, q.Has("timeMax"))
	assert.False(t, q.Has("q"))
}

func TestClient_CreateEvent(t *testing.T) {
	api, factory := newFakeCalendarAPI(t)
	client, err := factory.New(context.Background(), "access-123")
	require.NoError(t, err)

	created, err := client.CreateEvent(context.Background(), validEventData())
	require.NoError(t, err)
	assert.Equal(t, "created1", created.Id)

	_, body := api.last()
	assert.Equal(t, "Design review", body["summary"])
	assert.Equal(t, "Room 1", body["location"])
	start := body["start"].(map[string]any)
	assert.Equal(t, "2025-03-10T10:00:00+01:00", start["dateTime"])
	end := body["end"].(map[string]any)
	assert.Equal(t, "Europe/Berlin", end["timeZone"])
	attendees := body["attendees"].([]any)
	require.Len(t, attendees, 1)
	assert.Equal(t, "bob@example.com", attendees[0].(map[string]any)["email"])
}

func TestClient_CreateEvent_Validation(t *testing.T) {
	api, factory := newFakeCalendarAPI(t)
	client, err := factory.New(context.Background(), "access-123")
	require.NoError(t, err)

	tests := []struct {
		name string
		data *EventData
	}{
		{name: "nil", data: nil},
		{name: "missing summary", data: &EventData{Start: &EventTime{DateTime: "x"}, End: &EventTime{DateTime: "y"}}},
		{name: "missing start", data: &EventData{Summary: "s", End: &EventTime{DateTime: "y"}}},
		{name: "missing end datetime", data: &EventData{Summary: "s", Start: &EventTime{DateTime: "x"}, End: &EventTime{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.CreateEvent(context.Background(), tt.data)
			assert.Error(t, err)
		})
	}
	assert.Equal(t, 0, api.count())
}

func TestClient_UpdateEvent(t *testing.T) {
	api, factory := newFakeCalendarAPI(t)
	client, err := factory.New(context.Background(), "access-123")
	require.NoError(t, err)

	updated, err := client.UpdateEvent(context.Background(), "evt42", validEventData())
	require.NoError(t, err)
	assert.Equal(t, "evt42", updated.Id)

	req, _ := api.last()
	assert.Equal(t, http.MethodPut, req.Method)

	_, err = client.UpdateEvent(context.Background(), "", validEventData())
	assert.Error(t, err)
}

func TestClient_DeleteEvent(t *testing.T) {
	api, factory := newFakeCalendarAPI(t)
	client, err := factory.New(context.Background(), "access-123")
	require.NoError(t, err)

	result, err := client.DeleteEvent(context.Background(), "evt42")
	require.NoError(t, err)
	assert.True(t, result.Success)

	req, _ := api.last()
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/calendar/v3/calendars/primary/events/evt42", req.URL.Path)
}

func TestClient_APIError(t *testing.T) {
	api, factory := newFakeCalendarAPI(t)
	api.failWith(http.StatusNotFound)

	client, err := factory.New(context.Background(), "access-123")
	require.NoError(t, err)

	_, err = client.DeleteEvent(context.Background(), "missing")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Code)
	assert.Equal(t, "Google Calendar API error: 404 Not Found", err.Error())
}

package calendar

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeCalendarAPI emulates the Calendar v3 events endpoints of the primary
// calendar and records the requests it receives.
type fakeCalendarAPI struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []map[string]any
	status   int
}

func newFakeCalendarAPI(t *testing.T) (*fakeCalendarAPI, *ClientFactory) {
	t.Helper()

	api := &fakeCalendarAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /calendar/v3/calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		api.respond(w, r, map[string]any{
			"kind": "calendar#events",
			"items": []map[string]any{
				{"id": "evt1", "summary": "Standup"},
				{"id": "evt2", "summary": "Planning"},
			},
		})
	})
	mux.HandleFunc("POST /calendar/v3/calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		api.respond(w, r, map[string]any{"id": "created1", "summary": "New event", "status": "confirmed"})
	})
	mux.HandleFunc("PUT /calendar/v3/calendars/primary/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		api.respond(w, r, map[string]any{"id": r.PathValue("id"), "summary": "Updated event"})
	})
	mux.HandleFunc("DELETE /calendar/v3/calendars/primary/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		api.record(r)
		if api.status != 0 {
			api.writeError(w)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return api, &ClientFactory{
		HTTPClient: srv.Client(),
		Endpoint:   srv.URL + "/calendar/v3/",
	}
}

func (a *fakeCalendarAPI) failWith(status int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = status
}

func (a *fakeCalendarAPI) record(r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var body map[string]any
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &body)
	}
	a.requests = append(a.requests, r)
	a.bodies = append(a.bodies, body)
}

func (a *fakeCalendarAPI) respond(w http.ResponseWriter, r *http.Request, v any) {
	a.record(r)
	if a.status != 0 {
		a.writeError(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (a *fakeCalendarAPI) writeError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(a.status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": a.status, "message": http.StatusText(a.status)},
	})
}

func (a *fakeCalendarAPI) last() (*http.Request, map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.requests) == 0 {
		return nil, nil
	}
	return a.requests[len(a.requests)-1], a.bodies[len(a.bodies)-1]
}

func (a *fakeCalendarAPI) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

func validEventData() *EventData {
	return &EventData{
		Summary:   "Design review",
		Start:     &EventTime{DateTime: "2025-03-10T10:00:00+01:00"},
		End:       &EventTime{DateTime: "2025-03-10T11:00:00+01:00", TimeZone: "Europe/Berlin"},
		Attendees: []Attendee{{Email: "bob@example.com", DisplayName: "Bob"}},
		Location:  "Room 1",
	}
}

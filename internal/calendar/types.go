package calendar

import (
	"fmt"

	calendar "google.golang.org/api/calendar/v3"
)

// EventTime is the start or end of an event.
type EventTime struct {
	// DateTime is an RFC3339 timestamp. The offset may be omitted when
	// TimeZone is set.
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Attendee is an event guest.
type Attendee struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// EventData is the event payload accepted by create_event and update_event.
type EventData struct {
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Start       *EventTime `json:"start"`
	End         *EventTime `json:"end"`
	Attendees   []Attendee `json:"attendees,omitempty"`
	Location    string     `json:"location,omitempty"`
}

// Validate checks the required fields.
func (d *EventData) Validate() error {
	if d == nil {
		return fmt.Errorf("eventData is required")
	}
	if d.Summary == "" {
		return fmt.Errorf("eventData.summary is required")
	}
	if d.Start == nil || d.Start.DateTime == "" {
		return fmt.Errorf("eventData.start.dateTime is required")
	}
	if d.End == nil || d.End.DateTime == "" {
		return fmt.Errorf("eventData.end.dateTime is required")
	}
	return nil
}

func (d *EventData) toEvent() *calendar.Event {
	event := &calendar.Event{
		Summary:     d.Summary,
		Description: d.Description,
		Location:    d.Location,
		Start:       &calendar.EventDateTime{DateTime: d.Start.DateTime, TimeZone: d.Start.TimeZone},
		End:         &calendar.EventDateTime{DateTime: d.End.DateTime, TimeZone: d.End.TimeZone},
	}

	for _, a := range d.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{
			Email:       a.Email,
			DisplayName: a.DisplayName,
		})
	}

	return event
}

// SearchArgs are the arguments of search_events. All fields are optional.
type SearchArgs struct {
	TimeMin string `json:"timeMin,omitempty"`
	TimeMax string `json:"timeMax,omitempty"`
	Query   string `json:"query,omitempty"`
}

// EventArgs are the arguments of create_event, update_event and delete_event.
type EventArgs struct {
	EventID   string     `json:"eventId,omitempty"`
	EventData *EventData `json:"eventData,omitempty"`
}

// DeleteResult is returned by delete_event.
type DeleteResult struct {
	Success bool `json:"success"`
}

package calendar

import (
	"github.com/sashabaranov/go-openai/jsonschema"
)

// FunctionDefinition describes a calendar function as an OpenAI function
// tool.
type FunctionDefinition struct {
	Type        string                `json:"type"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Parameters  jsonschema.Definition `json:"parameters"`
	// Strict stays false: strict mode requires every property to be
	// required, and most of these parameters are optional.
	Strict bool `json:"strict"`
}

const dateTimeDescription = "The time, as a combined date-time value (formatted according to RFC3339). " +
	"A time zone offset is required unless a time zone is explicitly specified in timeZone."

func eventTimeSchema(description string) jsonschema.Definition {
	return jsonschema.Definition{
		Type:        jsonschema.Object,
		Description: description,
		Properties: map[string]jsonschema.Definition{
			"dateTime": {Type: jsonschema.String, Description: dateTimeDescription},
			"timeZone": {
				Type:        jsonschema.String,
				Description: "The time zone in which the time is specified. Optional, defaults to the calendar's timezone.",
			},
		},
		Required:             []string{"dateTime"},
		AdditionalProperties: false,
	}
}

func eventDataSchema(description string) jsonschema.Definition {
	return jsonschema.Definition{
		Type:        jsonschema.Object,
		Description: description,
		Properties: map[string]jsonschema.Definition{
			"summary":     {Type: jsonschema.String, Description: "The event title/summary"},
			"description": {Type: jsonschema.String, Description: "Description of the event. Optional."},
			"start":       eventTimeSchema("The start time of the event"),
			"end":         eventTimeSchema("The end time of the event"),
			"attendees": {
				Type:        jsonschema.Array,
				Description: "List of attendees for the event. Optional.",
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"email":       {Type: jsonschema.String, Description: "The attendee's email address"},
						"displayName": {Type: jsonschema.String, Description: "The attendee's display name. Optional."},
					},
					Required:             []string{"email"},
					AdditionalProperties: false,
				},
			},
			"location": {
				Type:        jsonschema.String,
				Description: "Geographic location of the event as free-form text. Optional.",
			},
		},
		Required:             []string{"summary", "start", "end"},
		AdditionalProperties: false,
	}
}

func eventIDSchema(description string) jsonschema.Definition {
	return jsonschema.Definition{Type: jsonschema.String, Description: description}
}

// FunctionDefinitions returns the tool definitions of the four calendar
// functions.
func FunctionDefinitions() []FunctionDefinition {
	return []FunctionDefinition{
		{
			Type:        "function",
			Name:        FunctionSearchEvents,
			Description: "Search for calendar events within a time range. Use this to check availability or find existing events.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"timeMin": {
						Type: jsonschema.String,
						Description: "Lower bound (exclusive) for an event's end time to filter by. " +
							"Must be an RFC3339 timestamp with mandatory time zone offset, e.g., 2011-06-03T10:00:00-07:00",
					},
					"timeMax": {
						Type: jsonschema.String,
						Description: "Upper bound (exclusive) for an event's start time to filter by. " +
							"Must be an RFC3339 timestamp with mandatory time zone offset, e.g., 2011-06-03T10:00:00-07:00",
					},
					"query": {
						Type:        jsonschema.String,
						Description: "Free text search terms to find events that match these terms in any field, except for extended properties. Optional.",
					},
				},
				Required:             []string{},
				AdditionalProperties: false,
			},
		},
		{
			Type:        "function",
			Name:        FunctionCreateEvent,
			Description: "Create a new calendar event. Use this to schedule meetings, appointments, or any calendar event.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"eventData": eventDataSchema("The event data object"),
				},
				Required:             []string{"eventData"},
				AdditionalProperties: false,
			},
		},
		{
			Type:        "function",
			Name:        FunctionUpdateEvent,
			Description: "Update an existing calendar event. Use this to modify event details like time, title, or attendees.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"eventId":   eventIDSchema("The ID of the event to update"),
					"eventData": eventDataSchema("The updated event data object (same structure as create_event)"),
				},
				Required:             []string{"eventId", "eventData"},
				AdditionalProperties: false,
			},
		},
		{
			Type:        "function",
			Name:        FunctionDeleteEvent,
			Description: "Delete a calendar event. Use this to cancel or remove events.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"eventId": eventIDSchema("The ID of the event to delete"),
				},
				Required:             []string{"eventId"},
				AdditionalProperties: false,
			},
		},
	}
}

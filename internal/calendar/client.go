package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/recircuit/internal/instrumentation"
)

// PrimaryCalendarID is the calendar all event operations act on.
const PrimaryCalendarID = "primary"

// ClientFactory builds Calendar clients for an access token.
type ClientFactory struct {
	// HTTPClient is the base client used beneath the OAuth transport.
	HTTPClient *http.Client

	// Endpoint overrides the Calendar API base URL.
	Endpoint string

	Metrics *instrumentation.Metrics
}

// New creates a Client authorized with accessToken.
func (f *ClientFactory) New(ctx context.Context, accessToken string) (*Client, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token cannot be empty")
	}

	base := http.DefaultClient
	if f.HTTPClient != nil {
		base = f.HTTPClient
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if f.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(f.Endpoint))
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{svc: svc, metrics: f.Metrics}, nil
}

// Client wraps the Google Calendar service for the primary calendar.
type Client struct {
	svc     *calendar.Service
	metrics *instrumentation.Metrics
}

// SearchEvents lists single events ordered by start time.
func (c *Client) SearchEvents(ctx context.Context, args SearchArgs) (*calendar.Events, error) {
	var events *calendar.Events
	err := c.observe(ctx, instrumentation.OperationSearch, func(ctx context.Context) error {
		call := c.svc.Events.List(PrimaryCalendarID).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx)

		if args.TimeMin != "" {
			call = call.TimeMin(args.TimeMin)
		}
		if args.TimeMax != "" {
			call = call.TimeMax(args.TimeMax)
		}
		if args.Query != "" {
			call = call.Q(args.Query)
		}

		var err error
		events, err = call.Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// CreateEvent creates a new event.
func (c *Client) CreateEvent(ctx context.Context, data *EventData) (*calendar.Event, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	var created *calendar.Event
	err := c.observe(ctx, instrumentation.OperationCreate, func(ctx context.Context) error {
		var err error
		created, err = c.svc.Events.Insert(PrimaryCalendarID, data.toEvent()).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateEvent replaces an existing event with data.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, data *EventData) (*calendar.Event, error) {
	if eventID == "" {
		return nil, fmt.Errorf("eventId is required")
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}

	var updated *calendar.Event
	err := c.observe(ctx, instrumentation.OperationUpdate, func(ctx context.Context) error {
		var err error
		updated, err = c.svc.Events.Update(PrimaryCalendarID, eventID, data.toEvent()).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteEvent deletes an event.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) (*DeleteResult, error) {
	if eventID == "" {
		return nil, fmt.Errorf("eventId is required")
	}

	err := c.observe(ctx, instrumentation.OperationDelete, func(ctx context.Context) error {
		return c.svc.Events.Delete(PrimaryCalendarID, eventID).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}
	return &DeleteResult{Success: true}, nil
}

// observe runs fn inside a Google API span and records its metrics.
func (c *Client) observe(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, operation)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		err = apiError(err)
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, operation, status, time.Since(start))

	return err
}

// APIError is a failed Calendar API call.
type APIError struct {
	Code    int
	Message string
	Err     error
}

// Error returns "Google Calendar API error: <code> <message>".
func (e *APIError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("Google Calendar API error: %s", e.Message)
	}
	return fmt.Sprintf("Google Calendar API error: %d %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.Err
}

func apiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = http.StatusText(gerr.Code)
		}
		return &APIError{Code: gerr.Code, Message: msg, Err: err}
	}
	return &APIError{Message: err.Error(), Err: err}
}

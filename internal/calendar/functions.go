package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teemow/recircuit/internal/instrumentation"
	"github.com/teemow/recircuit/internal/logging"
)

// Calendar function names.
const (
	FunctionSearchEvents = "search_events"
	FunctionCreateEvent  = "create_event"
	FunctionUpdateEvent  = "update_event"
	FunctionDeleteEvent  = "delete_event"
)

var (
	// ErrUnknownFunction is returned by Call for names outside the four
	// calendar functions.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrInvalidArguments is returned when function arguments do not decode
	// or miss required fields.
	ErrInvalidArguments = errors.New("invalid function arguments")
)

// AccessTokenSource returns a valid calendar access token.
type AccessTokenSource interface {
	ValidAccessToken(ctx context.Context) (string, error)
}

// Caller identifies who invoked a function.
type Caller struct {
	// Source is one of instrumentation.SourceHTTP, SourceAgent or SourceMCP.
	Source string
	Email  string
}

// Functions dispatches calendar function calls.
type Functions struct {
	tokens  AccessTokenSource
	clients *ClientFactory
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
	logger  *slog.Logger
}

// NewFunctions creates a Functions dispatcher.
func NewFunctions(tokens AccessTokenSource, clients *ClientFactory, metrics *instrumentation.Metrics, audit *instrumentation.AuditLogger, logger *slog.Logger) *Functions {
	if clients == nil {
		clients = &ClientFactory{Metrics: metrics}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Functions{
		tokens:  tokens,
		clients: clients,
		metrics: metrics,
		audit:   audit,
		logger:  logger,
	}
}

// IsFunction reports whether name is a calendar function.
func IsFunction(name string) bool {
	switch name {
	case FunctionSearchEvents, FunctionCreateEvent, FunctionUpdateEvent, FunctionDeleteEvent:
		return true
	}
	return false
}

// Call runs the named function with JSON arguments. A missing calendar
// connection is reported before the function name is checked.
func (f *Functions) Call(ctx context.Context, name string, args json.RawMessage, caller Caller) (any, error) {
	ctx, span := instrumentation.StartFunctionSpan(ctx, name, caller.Source)
	defer span.End()

	invocation := instrumentation.NewFunctionInvocation(name, caller.Source).
		WithUser(caller.Email).
		WithSpanContext(ctx)

	result, err := f.call(ctx, name, args, invocation)

	invocation.Complete(err)
	if err != nil {
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}

	if !errors.Is(err, ErrUnknownFunction) {
		f.metrics.RecordFunctionCall(ctx, name, caller.Source, invocation.Status(), caller.Email, invocation.Duration)
		f.audit.LogFunctionCall(ctx, invocation)
	}
	if err != nil {
		f.logger.LogAttrs(ctx, slog.LevelDebug, "calendar function failed", append(invocation.LogAttrs(), logging.Err(err))...)
	}

	return result, err
}

func (f *Functions) call(ctx context.Context, name string, raw json.RawMessage, invocation *instrumentation.FunctionInvocation) (any, error) {
	token, err := f.tokens.ValidAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	if !IsFunction(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}

	client, err := f.clients.New(ctx, token)
	if err != nil {
		return nil, err
	}

	switch name {
	case FunctionSearchEvents:
		var args SearchArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return client.SearchEvents(ctx, args)

	case FunctionCreateEvent:
		var args EventArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		if err := args.EventData.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
		}
		created, err := client.CreateEvent(ctx, args.EventData)
		if created != nil {
			invocation.WithEvent(created.Id)
		}
		return created, err

	case FunctionUpdateEvent:
		var args EventArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		if args.EventID == "" {
			return nil, fmt.Errorf("%w: eventId is required", ErrInvalidArguments)
		}
		if err := args.EventData.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
		}
		invocation.WithEvent(args.EventID)
		return client.UpdateEvent(ctx, args.EventID, args.EventData)

	default: // FunctionDeleteEvent
		var args EventArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		if args.EventID == "" {
			return nil, fmt.Errorf("%w: eventId is required", ErrInvalidArguments)
		}
		invocation.WithEvent(args.EventID)
		return client.DeleteEvent(ctx, args.EventID)
	}
}

// decodeArgs decodes raw into v. Empty and null arguments leave v unchanged.
func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	return nil
}

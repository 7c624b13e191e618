package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/teemow/recircuit/internal/logging"
)

// FunctionInvocation captures one calendar function call for audit logging.
//
// UserEmail contains PII. LogAttrs only emits the hashed identifier and the
// email domain. LogAuditAttrs emits the full address.
type FunctionInvocation struct {
	Function  string
	Source    string
	UserEmail string
	EventID   string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewFunctionInvocation creates a new FunctionInvocation with timing started.
// Call Complete() when the call finishes.
func NewFunctionInvocation(function, source string) *FunctionInvocation {
	return &FunctionInvocation{
		Function:  function,
		Source:    source,
		StartTime: time.Now(),
	}
}

// WithUser sets the caller identity.
func (fi *FunctionInvocation) WithUser(email string) *FunctionInvocation {
	fi.UserEmail = email
	return fi
}

// WithEvent sets the target calendar event.
func (fi *FunctionInvocation) WithEvent(eventID string) *FunctionInvocation {
	fi.EventID = eventID
	return fi
}

// WithSpanContext extracts trace context from the current span.
func (fi *FunctionInvocation) WithSpanContext(ctx context.Context) *FunctionInvocation {
	fi.TraceID = GetTraceID(ctx)
	fi.SpanID = GetSpanID(ctx)
	return fi
}

// Complete marks the invocation as completed and calculates duration.
func (fi *FunctionInvocation) Complete(err error) *FunctionInvocation {
	fi.Duration = time.Since(fi.StartTime)
	fi.Success = err == nil
	if err != nil {
		fi.Error = err.Error()
	}
	return fi
}

// Status returns "success" or "error" based on the Success field.
func (fi *FunctionInvocation) Status() string {
	if fi.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns anonymized slog attributes.
func (fi *FunctionInvocation) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		logging.Function(fi.Function),
		slog.String("source", fi.Source),
		logging.UserHash(fi.UserEmail),
		slog.String("user_domain", ExtractUserDomain(fi.UserEmail)),
		slog.Duration(logging.KeyDuration, fi.Duration),
		slog.Bool("success", fi.Success),
	}
	return fi.appendOptional(attrs)
}

// LogAuditAttrs returns slog attributes including the full user email.
func (fi *FunctionInvocation) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		logging.Function(fi.Function),
		slog.String("source", fi.Source),
		slog.String("user", fi.UserEmail),
		slog.Duration(logging.KeyDuration, fi.Duration),
		slog.Bool("success", fi.Success),
	}
	return fi.appendOptional(attrs)
}

func (fi *FunctionInvocation) appendOptional(attrs []slog.Attr) []slog.Attr {
	if fi.EventID != "" {
		attrs = append(attrs, slog.String("event_id", fi.EventID))
	}
	if fi.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", fi.TraceID))
	}
	if fi.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", fi.SpanID))
	}
	if fi.Error != "" {
		attrs = append(attrs, slog.String(logging.KeyError, fi.Error))
	}
	return attrs
}

// Calendar connection audit actions.
const (
	AuditActionConnect    = "calendar_connected"
	AuditActionDisconnect = "calendar_disconnected"
)

// AuditLogger provides structured audit logging for calendar changes and
// calendar function calls.
type AuditLogger struct {
	logger     *slog.Logger
	level      slog.Level
	includePII bool
	enabled    bool
}

// NewAuditLogger creates a new AuditLogger with the given slog.Logger.
// By default, PII is not included in logs.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With(slog.String("log_type", "audit")),
		level:      config.AuditLevel(),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogFunctionCall logs a calendar function call.
func (al *AuditLogger) LogFunctionCall(ctx context.Context, fi *FunctionInvocation) {
	if al == nil || !al.enabled {
		return
	}

	var attrs []slog.Attr
	if al.includePII {
		attrs = fi.LogAuditAttrs()
	} else {
		attrs = fi.LogAttrs()
	}

	level := al.level
	msg := "calendar_function_executed"
	if !fi.Success {
		level = slog.LevelWarn
		msg = "calendar_function_failed"
	}
	al.logger.LogAttrs(ctx, level, msg, attrs...)
}

// LogCalendarChange logs a calendar connect or disconnect by an admin.
func (al *AuditLogger) LogCalendarChange(ctx context.Context, action, provider, adminEmail string) {
	if al == nil || !al.enabled {
		return
	}

	attrs := []slog.Attr{
		slog.String("action", action),
		logging.Provider(provider),
		logging.UserHash(adminEmail),
	}
	if al.includePII {
		attrs = append(attrs, slog.String("user", adminEmail))
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		attrs = append(attrs, slog.String("trace_id", traceID))
	}

	al.logger.LogAttrs(ctx, al.level, "calendar_audit", attrs...)
}

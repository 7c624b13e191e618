package logging

import (
	"fmt"
	"log/slog"
)

// PrintfLogger is the printf-style logger expected by the MCP transport.
type PrintfLogger interface {
	Infof(format string, v ...any)
	Errorf(format string, v ...any)
}

// PrintfAdapter writes printf-style messages to an slog.Logger. Messages
// carry the component attribute so transport noise can be filtered.
type PrintfAdapter struct {
	logger *slog.Logger
}

// NewPrintfAdapter wraps logger. If logger is nil, slog.Default() is used.
func NewPrintfAdapter(logger *slog.Logger, component string) *PrintfAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	if component != "" {
		logger = logger.With(slog.String(KeyComponent, component))
	}
	return &PrintfAdapter{logger: logger}
}

// Infof logs at debug level. Transport chatter is not worth an info line
// per request.
func (a *PrintfAdapter) Infof(format string, v ...any) {
	a.logger.Debug(fmt.Sprintf(format, v...))
}

// Errorf logs at error level.
func (a *PrintfAdapter) Errorf(format string, v ...any) {
	a.logger.Error(fmt.Sprintf(format, v...))
}

// Logger returns the underlying slog.Logger.
func (a *PrintfAdapter) Logger() *slog.Logger {
	return a.logger
}

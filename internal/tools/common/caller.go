package common

import (
	"context"

	"github.com/teemow/recircuit/internal/auth"
	"github.com/teemow/recircuit/internal/calendar"
	"github.com/teemow/recircuit/internal/instrumentation"
)

// CallerFromContext returns the MCP caller for the session stored in ctx.
// Calls without a session have no email.
func CallerFromContext(ctx context.Context) calendar.Caller {
	caller := calendar.Caller{Source: instrumentation.SourceMCP}
	if s, ok := auth.SessionFromContext(ctx); ok {
		caller.Email = s.Email
	}
	return caller
}

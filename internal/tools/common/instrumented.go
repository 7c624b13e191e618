package common

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/recircuit/internal/instrumentation"
	"github.com/teemow/recircuit/internal/logging"
)

// ToolHandler is an MCP tool handler.
type ToolHandler = mcpserver.ToolHandlerFunc

// errToolResult marks spans of tool calls that returned an error result.
var errToolResult = errors.New("tool returned an error result")

// InstrumentedToolHandler wraps a tool handler with a span and a debug log
// line per invocation.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", logger, handler))
func InstrumentedToolHandler(toolName string, logger *slog.Logger, handler ToolHandler) ToolHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := instrumentation.StartSpan(ctx, "mcp.tool",
			attribute.String("mcp.tool", toolName))
		defer span.End()

		result, err := handler(ctx, request)

		switch {
		case err != nil:
			instrumentation.SetSpanError(span, err)
			logger.DebugContext(ctx, "tool call failed", slog.String("tool", toolName), logging.Err(err))
		case result != nil && result.IsError:
			instrumentation.SetSpanError(span, errToolResult)
			logger.DebugContext(ctx, "tool returned error result", slog.String("tool", toolName))
		default:
			instrumentation.SetSpanSuccess(span)
		}

		return result, err
	}
}

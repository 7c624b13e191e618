package calendar_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/recircuit/internal/calendar"
	"github.com/teemow/recircuit/internal/tools/common"
)

// ToolPrefix is prepended to function names to form tool names.
const ToolPrefix = "calendar_"

// FunctionCaller runs calendar functions.
type FunctionCaller interface {
	Call(ctx context.Context, name string, args json.RawMessage, caller calendar.Caller) (any, error)
}

// ToolName returns the MCP tool name of a calendar function.
func ToolName(function string) string {
	return ToolPrefix + function
}

// RegisterCalendarTools registers one tool per calendar function.
func RegisterCalendarTools(s *mcpserver.MCPServer, functions FunctionCaller, logger *slog.Logger) error {
	for _, def := range calendar.FunctionDefinitions() {
		schema, err := json.Marshal(def.Parameters)
		if err != nil {
			return fmt.Errorf("failed to encode schema of %s: %w", def.Name, err)
		}

		name := ToolName(def.Name)
		tool := mcp.NewToolWithRawSchema(name, def.Description, schema)
		s.AddTool(tool, common.InstrumentedToolHandler(name, logger, handleFunction(def.Name, functions)))
	}
	return nil
}

func handleFunction(function string, functions FunctionCaller) common.ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		arguments := request.GetArguments()
		if arguments == nil {
			arguments = map[string]any{}
		}
		args, err := json.Marshal(arguments)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		result, err := functions.Call(ctx, function, args, common.CallerFromContext(ctx))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

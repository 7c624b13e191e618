package server

import (
	"fmt"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/recircuit/internal/logging"
	"github.com/teemow/recircuit/internal/tools/calendar_tools"
)

// MCPPath serves the streamable HTTP MCP endpoint.
const MCPPath = "/mcp"

// mcpHandler exposes the calendar functions as MCP tools. The dashboard
// session stays on the request context, so tool calls are attributed to
// the signed-in admin.
func (s *Server) mcpHandler() (http.Handler, error) {
	if s.cfg.Functions == nil {
		return nil, fmt.Errorf("MCP endpoint requires calendar functions")
	}

	mcpSrv := mcpserver.NewMCPServer("recircuit", s.cfg.Version,
		mcpserver.WithToolCapabilities(true),
	)
	if err := calendar_tools.RegisterCalendarTools(mcpSrv, s.cfg.Functions, s.logger); err != nil {
		return nil, err
	}

	return mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath(MCPPath),
		mcpserver.WithLogger(logging.NewPrintfAdapter(s.logger, "mcp")),
	), nil
}

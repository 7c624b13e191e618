// Package calendar_tools exposes the calendar functions as MCP tools.
//
// Each tool takes the same JSON arguments as the matching OpenAI function
// definition and runs through the shared calendar function dispatcher, so
// MCP calls get the same token handling, metrics and audit logging as agent
// calls.
package calendar_tools

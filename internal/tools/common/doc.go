// Package common provides shared helpers for the MCP tool packages: tool
// handler tracing and resolving the signed-in caller of a tool call.
package common

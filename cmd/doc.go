// Package cmd implements the command-line interface for recircuit.
//
// This package provides the following commands:
//   - serve: Start the dashboard HTTP server
//   - migrate: Apply the database schema
//   - user create: Create a sign-in account
//   - tools-docs: Generate markdown documentation for the MCP calendar tools
//   - version: Display version information
//
// Settings are read from flags first and fall back to environment variables
// when a flag was not set explicitly.
package cmd

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/recircuit/internal/calendar"
	"github.com/teemow/recircuit/internal/tools/calendar_tools"
)

func newToolsDocsCmd() *cobra.Command {
	var (
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "tools-docs",
		Short: "Generate MCP tool documentation",
		Long: `Generate markdown documentation for the calendar tools served at /mcp.
The tools are registered exactly as the server registers them, so the output
always matches the function definitions the agent uses.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToolsDocs(cmd.OutOrStdout(), outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runToolsDocs(out io.Writer, outputFile string) error {
	tools, err := listCalendarTools()
	if err != nil {
		return err
	}

	markdown := generateToolsMarkdown(tools)

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(markdown), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Documentation written to: %s\n", outputFile)
		return nil
	}
	_, err = io.WriteString(out, markdown)
	return err
}

// listCalendarTools registers the calendar tools on a throwaway MCP server.
// No handler is invoked, so the functions need no token source.
func listCalendarTools() ([]mcp.Tool, error) {
	mcpSrv := mcpserver.NewMCPServer("recircuit", version,
		mcpserver.WithToolCapabilities(true),
	)

	functions := calendar.NewFunctions(nil, nil, nil, nil, nil)
	if err := calendar_tools.RegisterCalendarTools(mcpSrv, functions, nil); err != nil {
		return nil, fmt.Errorf("failed to register calendar tools: %w", err)
	}

	serverTools := mcpSrv.ListTools()
	tools := make([]mcp.Tool, 0, len(serverTools))
	for _, serverTool := range serverTools {
		tools = append(tools, serverTool.Tool)
	}
	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})
	return tools, nil
}

func generateToolsMarkdown(tools []mcp.Tool) string {
	var sb strings.Builder

	sb.WriteString("# MCP Tools Reference\n\n")
	sb.WriteString("Tools served at `/mcp` to signed-in admins. Each tool runs the calendar function of the same name against the connected Google Calendar.\n\n")
	sb.WriteString("**Note:** This documentation is automatically generated from the tool definitions.\n\n")

	sb.WriteString("## Table of Contents\n\n")
	for _, tool := range tools {
		sb.WriteString(fmt.Sprintf("- [%s](#%s)\n", tool.Name, tool.Name))
	}
	sb.WriteString("\n")

	sb.WriteString("## Google Calendar Tools\n\n")
	for _, tool := range tools {
		sb.WriteString(generateToolMarkdown(tool))
		sb.WriteString("\n")
	}

	return sb.String()
}

// toolSchema is the subset of a JSON schema the reference lists.
type toolSchema struct {
	Properties map[string]map[string]any `json:"properties"`
	Required   []string                  `json:"required"`
}

func schemaOf(tool mcp.Tool) toolSchema {
	var schema toolSchema
	if len(tool.RawInputSchema) > 0 {
		if err := json.Unmarshal(tool.RawInputSchema, &schema); err == nil {
			return schema
		}
	}

	schema.Required = tool.InputSchema.Required
	schema.Properties = make(map[string]map[string]any, len(tool.InputSchema.Properties))
	for name, prop := range tool.InputSchema.Properties {
		if propMap, ok := prop.(map[string]any); ok {
			schema.Properties[name] = propMap
		}
	}
	return schema
}

func generateToolMarkdown(tool mcp.Tool) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("### %s\n\n", tool.Name))

	if tool.Description != "" {
		sb.WriteString(fmt.Sprintf("%s\n\n", tool.Description))
	}

	schema := schemaOf(tool)
	if len(schema.Properties) > 0 {
		sb.WriteString("**Arguments:**\n")

		propNames := make([]string, 0, len(schema.Properties))
		for name := range schema.Properties {
			propNames = append(propNames, name)
		}
		sort.Strings(propNames)

		for _, name := range propNames {
			prop := schema.Properties[name]

			requiredStr := "optional"
			if slices.Contains(schema.Required, name) {
				requiredStr = "required"
			}

			sb.WriteString(fmt.Sprintf("- `%s` (%s): ", name, requiredStr))
			if desc, ok := prop["description"].(string); ok && desc != "" {
				sb.WriteString(desc)
			} else {
				sb.WriteString(fmt.Sprintf("%s parameter", getPropertyType(prop)))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func getPropertyType(prop map[string]any) string {
	if t, ok := prop["type"].(string); ok {
		return t
	}
	return "any"
}

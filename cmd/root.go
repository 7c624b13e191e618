package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the recircuit application
var rootCmd = &cobra.Command{
	Use:   "recircuit",
	Short: "Dashboard with AI chat, document search and a shared Google Calendar",
	Long: `recircuit serves a server-rendered dashboard with credential sign-in,
an AI chat backed by OpenAI ChatKit and an agent workflow, document upload
into an OpenAI vector store, and an admin-connected Google Calendar that the
agent can read and write.

Typical setup:
  recircuit migrate
  recircuit user create --email admin@example.com --name Admin --role admin
  recircuit serve`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "recircuit version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newUserCmd())
	rootCmd.AddCommand(newToolsDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}

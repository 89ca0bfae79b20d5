package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rote-dev/rote-go/cmd/rote-cli/internal/commands"
)

var rootCmd = &cobra.Command{
	Use:   "rote-cli",
	Short: "Adaptive browser automation for dealership CRM work",
	Long: `A command-line interface for the rote engine that runs dealership CRM
tasks in a real browser and learns from every execution.

The CLI provides:
- One-off and batch task execution with strategy fallback
- Inspection and maintenance of the learned pattern store
- Pattern export/import for sharing across installations
- Configuration scaffolding and validation`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a config file (default: search standard locations)")
	rootCmd.PersistentFlags().StringArray("set", nil, "Override a config value as key.path=value (repeatable)")

	rootCmd.AddCommand(
		commands.NewRunCommand(),
		commands.NewPatternsCommand(),
		commands.NewExportCommand(),
		commands.NewImportCommand(),
		commands.NewStatsCommand(),
		commands.NewConfigCommand(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

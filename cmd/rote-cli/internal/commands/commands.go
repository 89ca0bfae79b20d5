// Package commands holds the rote-cli subcommands. Each command resolves
// configuration through the shared root flags, so --config and --set work
// uniformly everywhere.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rote-dev/rote-go/cmd/rote-cli/internal/display"
	"github.com/rote-dev/rote-go/cmd/rote-cli/internal/runner"
	"github.com/rote-dev/rote-go/pkg/config"
	"github.com/rote-dev/rote-go/pkg/patterns"
)

// globalOptions reads the root-level persistent flags off any command.
func globalOptions(cmd *cobra.Command) runner.Options {
	configPath, _ := cmd.Flags().GetString("config")
	overrides, _ := cmd.Flags().GetStringArray("set")
	return runner.Options{ConfigPath: configPath, Overrides: overrides}
}

// setup loads configuration, points logging at it, and opens the store.
// Callers own the returned store.
func setup(cmd *cobra.Command) (*config.Config, *patterns.Store, error) {
	cfg, err := runner.LoadConfig(globalOptions(cmd))
	if err != nil {
		return nil, nil, err
	}
	if err := runner.SetupLogging(cfg); err != nil {
		return nil, nil, err
	}
	store, err := runner.OpenStore(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

// exitErr reports a command failure and sets the exit status.
func exitErr(err error) {
	fmt.Printf("%sError:%s %v\n", display.ColorRed, display.ColorReset, err)
	os.Exit(1)
}

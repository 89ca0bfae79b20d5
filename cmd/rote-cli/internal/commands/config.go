package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rote-dev/rote-go/cmd/rote-cli/internal/runner"
	"github.com/rote-dev/rote-go/pkg/config"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect, scaffold, and validate configuration",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigValidateCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after all sources merge",
		Long: `Print the configuration the commands would actually run with: defaults,
then config files, then ROTE_ environment variables, then --set overrides.
Secrets are redacted.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := showConfig(cmd); err != nil {
				exitErr(err)
			}
		},
	}
}

func showConfig(cmd *cobra.Command) error {
	manager, err := runner.LoadManager(globalOptions(cmd))
	if err != nil {
		return err
	}

	data, err := manager.Export()
	if err != nil {
		return err
	}
	redactSecrets(data)

	out, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

// redactSecrets masks credential values in an exported configuration map.
func redactSecrets(data map[string]interface{}) {
	perception, ok := data["perception"].(map[string]interface{})
	if !ok {
		return
	}
	if key, ok := perception["api_key"].(string); ok && key != "" {
		perception["api_key"] = "[redacted]"
	}
}

func newConfigInitCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented default config file",
		Example: `  # Create rote.yaml in the current directory
  rote-cli config init

  # Create it somewhere specific
  rote-cli config init --dir /etc/rote`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := initConfig(dir); err != nil {
				exitErr(err)
			}
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory to create the config file in (default: current directory)")

	return cmd
}

func initConfig(dir string) error {
	var path string
	var err error
	if dir != "" {
		path, err = config.NewDiscovery().CreateDefaultConfigFileInPath(dir)
	} else {
		path, err = config.CreateDefaultConfigFileInCurrentDir()
	}
	if err != nil {
		return err
	}

	color.New(color.FgGreen, color.Bold).Printf("✓ ")
	fmt.Printf("Created %s\n", path)
	fmt.Println("Edit it, then check the result with 'rote-cli config validate'")
	return nil
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the effective configuration loads cleanly",
		Run: func(cmd *cobra.Command, args []string) {
			if err := validateConfig(cmd); err != nil {
				color.New(color.FgRed, color.Bold).Printf("✗ ")
				fmt.Printf("%v\n", err)
				os.Exit(1)
			}
		},
	}
}

func validateConfig(cmd *cobra.Command) error {
	cfg, err := runner.LoadConfig(globalOptions(cmd))
	if err != nil {
		return err
	}

	color.New(color.FgGreen, color.Bold).Printf("✓ ")
	fmt.Println("Configuration is valid")
	fmt.Printf("  store:  %s backend at %s\n", cfg.Store.Backend, cfg.Store.Path)
	fmt.Printf("  model:  %s\n", cfg.Perception.Model)
	fmt.Printf("  budget: %d interaction(s) per task\n", cfg.Controller.MaxInteractions)

	if cfg.Perception.APIKey == "" && os.Getenv("ANTHROPIC_API_KEY") == "" {
		color.New(color.FgYellow).Println("! no API key in config or ANTHROPIC_API_KEY; vision strategies will be unavailable")
	}
	return nil
}

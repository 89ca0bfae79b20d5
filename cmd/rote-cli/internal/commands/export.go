package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func NewExportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the pattern store as JSON",
		Long: `Write every stored pattern to stdout (or a file) as a JSON document that
"rote-cli import" understands. Use it to back the store up or to seed a
fresh installation with patterns another dealership already learned.`,
		Example: `  # Back the store up
  rote-cli export -o patterns-backup.json

  # Move patterns between stores
  rote-cli export | rote-cli import --set store.path=other.json /dev/stdin`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := exportPatterns(cmd, output); err != nil {
				exitErr(err)
			}
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")

	return cmd
}

func exportPatterns(cmd *cobra.Command, output string) error {
	_, store, err := setup(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	var w io.Writer = cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	if err := store.Export(cmd.Context(), w); err != nil {
		return err
	}
	if output != "" {
		fmt.Printf("Exported %d pattern(s) to %s\n", store.Stats().PatternCount, output)
	}
	return nil
}

func NewImportCommand() *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import patterns exported from another installation",
		Long: `Read a JSON export and add its patterns to the store. On an id collision
the local pattern wins, so imports never clobber what this installation
already learned. With --replace the imported copy wins instead.`,
		Example: `  # Merge a colleague's patterns into the local store
  rote-cli import patterns-backup.json

  # Restore from a known-good export, overwriting local duplicates
  rote-cli import --replace patterns-backup.json`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := importPatterns(cmd, args[0], replace); err != nil {
				exitErr(err)
			}
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "Let imported patterns overwrite local duplicates")

	return cmd
}

func importPatterns(cmd *cobra.Command, path string, replace bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	_, store, err := setup(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Import(cmd.Context(), f, replace)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d pattern(s)\n", n)
	return nil
}

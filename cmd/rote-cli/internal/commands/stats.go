package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rote-dev/rote-go/cmd/rote-cli/internal/display"
)

func NewStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate pattern store health",
		Long: `Summarize the pattern store: how many patterns it holds, how many task
types they cover, total executions, and the average success rate across
everything learned so far.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := showStats(cmd); err != nil {
				exitErr(err)
			}
		},
	}
}

func showStats(cmd *cobra.Command) error {
	_, store, err := setup(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Print(display.FormatStoreStats(store.Stats()))
	return nil
}

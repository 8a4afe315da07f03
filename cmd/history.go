package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"zippyst/internal/history"
	"zippyst/internal/ui"
)

var (
	flagClearHistory bool
	flagRemoveLink   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List or edit resolved-link history",
	Args:  cobra.NoArgs,
	RunE:  historyRun,
}

func init() {
	historyCmd.Flags().BoolVar(&flagClearHistory, "clear", false, "Delete all history entries")
	historyCmd.Flags().StringVar(&flagRemoveLink, "remove", "", "Delete the entry for a source link")
}

func historyRun(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	switch {
	case flagClearHistory:
		if err := history.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(out, "History cleared.")
		return nil

	case flagRemoveLink != "":
		removed, err := history.Remove(flagRemoveLink)
		if err != nil {
			return fmt.Errorf("removing history entry: %w", err)
		}
		if !removed {
			return fmt.Errorf("no history entry for %s", flagRemoveLink)
		}
		debugf("removed history entry: %s", flagRemoveLink)
		return nil
	}

	entries, err := history.Load()
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No history entries found.")
		return nil
	}

	ui.New(out, cmd.ErrOrStderr()).History(entries)
	return nil
}

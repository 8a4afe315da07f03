package cmd

import (
	"github.com/spf13/cobra"

	"zippyst/internal/ui"
)

var schemesCmd = &cobra.Command{
	Use:   "schemes",
	Short: "List the active obfuscation schemes in priority order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver, err := cfg.Resolver()
		if err != nil {
			return err
		}
		ui.New(cmd.OutOrStdout(), cmd.ErrOrStderr()).Schemes(resolver.Schemes())
		return nil
	},
}

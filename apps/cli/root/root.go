package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the DealerDesk admin CLI. Subcommands (auth, bootstrap, etc.) are attached here.
var rootCmd = &cobra.Command{
	Use:           "dealerdesk",
	Short:         "DealerDesk admin CLI",
	Long:          "Administrative utilities for DealerDesk (dev tokens, bootstrap helpers, company/user management).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}

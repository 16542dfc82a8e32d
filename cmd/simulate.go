package cmd

import (
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the bot in dry-run mode",
	Long: `Scans for opportunities and runs every profitable one through the
full validation pipeline without sending any transaction.`,
	Run: func(cmd *cobra.Command, args []string) {
		runBot(true)
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
}

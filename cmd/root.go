package cmd

import (
	"context"
	"github.com/flashforge/flasharb/utils"

	"github.com/spf13/cobra"
)

var (
	envFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "flasharb",
	Short: "A flash-loan funded cross-DEX arbitrage bot",
	Long: `A bot that scans Uniswap, SushiSwap, Curve and Balancer for price
spreads on configured token pairs and executes profitable round trips
funded by flash loans.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file to load (default .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func initConfig() {
	utils.InitLogger(debug)
}

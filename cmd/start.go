package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/flashforge/flasharb/cmd/bot"
	"github.com/flashforge/flasharb/config"
	"github.com/flashforge/flasharb/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the arbitrage bot",
	Run: func(cmd *cobra.Command, args []string) {
		runBot(false)
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runBot(dryRun bool) {
	log := utils.GetLogger()

	if err := config.LoadEnv(envFile); err != nil {
		log.Fatal("Failed to load env file", zap.Error(err))
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	b, err := bot.New(cfg, dryRun, log)
	if err != nil {
		log.Fatal("Failed to create bot", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Shutting down gracefully...")
		cancel()
	}()

	if err := b.Start(ctx); err != nil {
		log.Fatal("Bot stopped with error", zap.Error(err))
	}
	b.Stop()
}

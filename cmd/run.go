package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/psds-microservice/support-bot/internal/application"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot: Telegram polling, cleanup reaper and HTTP ops endpoints",
	RunE:  runBot,
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot, err := application.NewBot(ctx, cfg, log)
	if err != nil {
		return err
	}
	return bot.Run(ctx)
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/psds-microservice/support-bot/internal/application"
	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/notify"
	"github.com/psds-microservice/support-bot/internal/reaper"
	"github.com/psds-microservice/support-bot/internal/service"
	"github.com/psds-microservice/support-bot/internal/telegram"
	"github.com/spf13/cobra"
)

var reapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Delete answered reports older than REPORT_RETENTION once and exit. Notices are retracted when BOT_TOKEN is set.",
	RunE:  runReap,
}

func init() {
	rootCmd.AddCommand(reapCmd)
}

// keepNotices оставляет уведомления в чатах, если BOT_TOKEN не задан.
type keepNotices struct{}

func (keepNotices) Retract(context.Context, model.DeliveryReceipts) int { return 0 }

func runReap(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := application.OpenDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	reports := service.NewReportService(db)
	pub, closeEvents := application.Publishers(cfg, log, nil)
	defer closeEvents()

	var notices reaper.Retractor = keepNotices{}
	if cfg.BotToken != "" {
		client, err := telegram.New(cfg.BotToken, cfg.TelegramEndpoint)
		if err != nil {
			return err
		}
		notices = notify.NewDispatcher(client, nil, nil, nil,
			notify.WithTimeout(cfg.DeliveryTimeout),
			notify.WithLogger(log),
		)
	} else {
		log.Warn("reap: BOT_TOKEN not set, staff notices are left in chats")
	}

	n, err := reaper.New(reports, notices,
		reaper.WithRetention(cfg.ReportRetention),
		reaper.WithLogger(log),
		reaper.WithEvents(pub),
	).RunOnce(ctx)
	if err != nil {
		return err
	}
	log.Info("reap: done", "purged", n)
	return nil
}

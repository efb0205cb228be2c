package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/psds-microservice/support-bot/internal/application"
	"github.com/psds-microservice/support-bot/internal/events"
	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/service"
	"github.com/spf13/cobra"
)

var republishCmd = &cobra.Command{
	Use:   "republish",
	Short: "Replay every stored report as an event to Kafka, RabbitMQ and the webhook (whichever are configured).",
	RunE:  runRepublish,
}

func init() {
	rootCmd.AddCommand(republishCmd)
}

func runRepublish(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if len(cfg.KafkaBrokers) == 0 && cfg.AMQPURL == "" && cfg.EventsWebhookURL == "" {
		log.Warn("republish: neither KAFKA_BROKERS, AMQP_URL nor EVENTS_WEBHOOK_URL set, nothing to do")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	db, err := application.OpenDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	reports := service.NewReportService(db)

	var all []model.Report
	for _, st := range []model.ReportStatus{model.ReportStatusOpen, model.ReportStatusAnswered} {
		items, err := reports.List(ctx, st)
		if err != nil {
			return err
		}
		all = append(all, items...)
	}
	log.Info("republish: found reports", "count", len(all))

	pub, closeEvents := application.Publishers(cfg, log, nil)
	for i := range all {
		r := &all[i]
		kind := events.ReportCreated
		if r.Status == model.ReportStatusAnswered {
			kind = events.ReportAnswered
		}
		pub.Publish(ctx, events.ForReport(kind, r))
		if (i+1)%50 == 0 || i == len(all)-1 {
			log.Info("republish: progress", "sent", i+1, "total", len(all))
		}
	}
	closeEvents()
	log.Info("republish: done", "events", len(all))
	return nil
}

package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/psds-microservice/support-bot/internal/addrcache"
	"github.com/psds-microservice/support-bot/internal/config"
	"github.com/psds-microservice/support-bot/internal/conversation"
	"github.com/psds-microservice/support-bot/internal/database"
	"github.com/psds-microservice/support-bot/internal/events"
	"github.com/psds-microservice/support-bot/internal/handler"
	"github.com/psds-microservice/support-bot/internal/metrics"
	"github.com/psds-microservice/support-bot/internal/notify"
	"github.com/psds-microservice/support-bot/internal/reaper"
	"github.com/psds-microservice/support-bot/internal/router"
	"github.com/psds-microservice/support-bot/internal/service"
	"github.com/psds-microservice/support-bot/internal/telegram"
)

// OpenDatabase при необходимости создаёт БД postgres, подключается и применяет
// миграции.
func OpenDatabase(ctx context.Context, cfg *config.Config, log *slog.Logger) (*gorm.DB, error) {
	if cfg.DB.Driver == database.DriverPostgres {
		created, err := database.EnsureDatabase(cfg.DatabaseURL())
		if err != nil {
			return nil, fmt.Errorf("ensure database: %w", err)
		}
		if created {
			log.Info("database created", "name", cfg.DB.Database)
		}
	}
	db, err := database.Open(cfg.DB.Driver, cfg.DSN())
	if err != nil {
		return nil, err
	}
	applied, err := database.Migrate(ctx, db, cfg.DB.Driver)
	if err != nil {
		return nil, err
	}
	log.Info("migrations applied", "driver", cfg.DB.Driver, "count", applied)
	return db, nil
}

// Publishers собирает публикатор событий из конфига. Возвращаемая функция
// дожидается отправки событий и закрывает соединения с брокерами.
func Publishers(cfg *config.Config, log *slog.Logger, m *metrics.Metrics) (events.Publisher, func()) {
	var (
		multi   events.Multi
		closers []func() error
	)
	if len(cfg.KafkaBrokers) > 0 {
		k := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicReport, log, m)
		multi = append(multi, k)
		closers = append(closers, k.Close)
	}
	if cfg.AMQPURL != "" {
		a, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue, log, m)
		if err != nil {
			log.Warn("events: rabbitmq disabled", "error", err)
		} else {
			multi = append(multi, a)
			closers = append(closers, a.Close)
		}
	}
	if cfg.EventsWebhookURL != "" {
		multi = append(multi, events.NewWebhook(cfg.EventsWebhookURL, log, m))
	}
	if len(multi) == 0 {
		return events.Nop{}, func() {}
	}
	async := events.NewAsync(multi, 5*time.Second)
	return async, func() {
		async.Close()
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn("events: close publisher", "error", err)
			}
		}
	}
}

// Bot приложение: Telegram-поллер, reaper и HTTP (health, metrics, read-only API).
type Bot struct {
	cfg         *config.Config
	log         *slog.Logger
	client      *telegram.Client
	poller      *telegram.Poller
	reaper      *reaper.Reaper
	httpSrv     *http.Server
	closeEvents func()
}

// NewBot собирает все компоненты бота.
func NewBot(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	if err := cfg.ValidateBot(); err != nil {
		return nil, err
	}
	db, err := OpenDatabase(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	m := metrics.New()
	reports := service.NewReportService(db)
	staff := service.NewStaffService(db, cfg.Admins)
	cache := addrcache.New()
	m.KnownAddresses(cache.Len)
	pub, closeEvents := Publishers(cfg, log, m)

	client, err := telegram.New(cfg.BotToken, cfg.TelegramEndpoint)
	if err != nil {
		closeEvents()
		return nil, err
	}

	dispatcher := notify.NewDispatcher(client, staff, cache, reports,
		notify.WithConcurrency(cfg.FanoutConcurrency),
		notify.WithTimeout(cfg.DeliveryTimeout),
		notify.WithLogger(log),
		notify.WithMetrics(m),
	)
	engine := conversation.NewEngine(conversation.Deps{
		Reports:  reports,
		Staff:    staff,
		Book:     cache,
		Notifier: dispatcher,
		Events:   pub,
		Log:      log,
		Metrics:  m,
	})
	rp := reaper.New(reports, dispatcher,
		reaper.WithRetention(cfg.ReportRetention),
		reaper.WithInterval(cfg.ReaperInterval),
		reaper.WithLogger(log),
		reaper.WithMetrics(m),
		reaper.WithEvents(pub),
	)

	httpSrv := &http.Server{
		Addr: cfg.Addr(),
		Handler: router.New(router.Deps{
			Reports:  handler.NewReportHandler(reports),
			Staff:    handler.NewStaffHandler(staff),
			DB:       sqlDB,
			Registry: m.Registry,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Bot{
		cfg:         cfg,
		log:         log,
		client:      client,
		poller:      telegram.NewPoller(client, engine, log),
		reaper:      rp,
		httpSrv:     httpSrv,
		closeEvents: closeEvents,
	}, nil
}

// Run запускает поллер, reaper и HTTP-сервер, блокируется до отмены ctx.
func (b *Bot) Run(ctx context.Context) error {
	defer b.closeEvents()

	if err := b.client.RegisterCommands(ctx); err != nil {
		b.log.Warn("telegram: command registration failed", "error", err)
	}
	if err := b.reaper.Start(ctx); err != nil {
		return err
	}
	defer func() { <-b.reaper.Stop().Done() }()

	go func() {
		b.log.Info("http server listening", "addr", b.httpSrv.Addr)
		if err := b.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.log.Error("http server", "error", err)
		}
	}()

	err := b.poller.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := b.httpSrv.Shutdown(shutdownCtx); serr != nil {
		return fmt.Errorf("http shutdown: %w", serr)
	}
	return err
}

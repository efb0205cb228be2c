// Package reaper enforces report retention: answered reports older than the
// retention window are deleted together with their staff notices.
package reaper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/psds-microservice/support-bot/internal/events"
	"github.com/psds-microservice/support-bot/internal/metrics"
	"github.com/psds-microservice/support-bot/internal/model"
)

type Purger interface {
	DeleteAnsweredOlderThan(ctx context.Context, threshold time.Time) ([]model.Report, error)
}

// Retractor removes previously delivered notices, best-effort.
type Retractor interface {
	Retract(ctx context.Context, receipts model.DeliveryReceipts) int
}

type options struct {
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	cron      *cron.Cron
	log       *slog.Logger
	metrics   *metrics.Metrics
	events    events.Publisher
}

type Option func(*options)

// WithRetention sets how long answered reports are kept. Default 24h.
func WithRetention(d time.Duration) Option {
	return func(o *options) { o.retention = d }
}

// WithInterval sets the pause between runs. Default 1h.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithCron supplies a preconfigured cron scheduler instance.
func WithCron(c *cron.Cron) Option {
	return func(o *options) { o.cron = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithEvents(p events.Publisher) Option {
	return func(o *options) { o.events = p }
}

type Reaper struct {
	reports Purger
	notices Retractor
	opts    options
}

func New(reports Purger, notices Retractor, opts ...Option) *Reaper {
	o := options{
		retention: 24 * time.Hour,
		interval:  time.Hour,
		now:       time.Now,
		log:       slog.Default(),
		events:    events.Nop{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cron == nil {
		o.cron = cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		)
	}
	return &Reaper{reports: reports, notices: notices, opts: o}
}

// RunOnce deletes every answered report with replied_at <= now - retention,
// then tries to delete the notices recorded for them. Notice failures are
// ignored; only a storage failure is returned.
func (r *Reaper) RunOnce(ctx context.Context) (int, error) {
	done := r.opts.metrics.ReaperRun()
	threshold := r.opts.now().UTC().Add(-r.opts.retention)
	deleted, err := r.reports.DeleteAnsweredOlderThan(ctx, threshold)
	if err != nil {
		done(0, err)
		return 0, err
	}
	notices := 0
	for i := range deleted {
		rep := &deleted[i]
		notices += r.notices.Retract(ctx, rep.NotifyMsgIDs)
		r.opts.events.Publish(ctx, events.ForReport(events.ReportPurged, rep))
		r.opts.log.Info("reaper: removed answered report", "report_id", rep.ID)
	}
	done(len(deleted), nil)
	if len(deleted) > 0 {
		r.opts.log.Info("reaper: run finished",
			"purged", len(deleted), "notices_deleted", notices, "threshold", threshold)
	}
	return len(deleted), nil
}

// Start schedules RunOnce every interval until Stop.
func (r *Reaper) Start(ctx context.Context) error {
	if r.opts.interval <= 0 {
		return fmt.Errorf("reaper: interval must be positive, got %s", r.opts.interval)
	}
	schedule := "@every " + r.opts.interval.String()
	if _, err := r.opts.cron.AddFunc(schedule, func() {
		if _, err := r.RunOnce(ctx); err != nil {
			r.opts.log.Error("reaper: run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("reaper: schedule %q: %w", schedule, err)
	}
	r.opts.cron.Start()
	r.opts.log.Info("reaper: scheduled", "interval", r.opts.interval, "retention", r.opts.retention)
	return nil
}

// Stop stops scheduling; the returned context is done once a running pass ends.
func (r *Reaper) Stop() context.Context {
	return r.opts.cron.Stop()
}

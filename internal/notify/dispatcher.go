package notify

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/psds-microservice/support-bot/internal/metrics"
	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/service"
)

// StaffLister yields everyone who should hear about new reports.
type StaffLister interface {
	ListStaff(ctx context.Context) ([]service.StaffMember, error)
}

// AddressResolver maps a staff username to a chat address, if one is known.
type AddressResolver interface {
	Resolve(username string) (model.Address, bool)
}

// ReceiptRecorder persists where creation notices landed.
type ReceiptRecorder interface {
	RecordDeliveryReceipts(ctx context.Context, id uint64, receipts model.DeliveryReceipts) error
}

// Dispatcher fans notices out to independent recipients. A failed delivery
// never fails the report operation that triggered it.
type Dispatcher struct {
	transport   Transport
	staff       StaffLister
	addresses   AddressResolver
	receipts    ReceiptRecorder
	log         *slog.Logger
	metrics     *metrics.Metrics
	concurrency int
	timeout     time.Duration
}

type Option func(*Dispatcher)

// WithConcurrency bounds the number of deliveries in flight per fan-out.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithTimeout bounds each single delivery attempt.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func NewDispatcher(t Transport, staff StaffLister, addresses AddressResolver, receipts ReceiptRecorder, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport:   t,
		staff:       staff,
		addresses:   addresses,
		receipts:    receipts,
		log:         slog.Default(),
		concurrency: 8,
		timeout:     10 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type outcome struct {
	receipt model.Receipt
	err     error
}

// fanOut runs one attempt per address and returns the outcomes in input
// order. Attempts never cancel each other.
func (d *Dispatcher) fanOut(ctx context.Context, n int, attempt func(ctx context.Context, i int) outcome) []outcome {
	results := make([]outcome, n)
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			actx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()
			results[i] = attempt(actx, i)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// NotifyCreated sends the creation notice to every resolvable staff member
// and records a receipt for each successful send. Staff without a known
// address are skipped. The returned error is a persistence failure from
// listing staff or recording receipts; delivery failures are only logged.
func (d *Dispatcher) NotifyCreated(ctx context.Context, r *model.Report) (model.DeliveryReceipts, error) {
	staff, err := d.staff.ListStaff(ctx)
	if err != nil {
		return nil, err
	}
	targets := make([]model.Address, 0, len(staff))
	seen := make(map[model.Address]struct{}, len(staff))
	for _, m := range staff {
		addr, ok := d.addresses.Resolve(m.Username)
		if !ok {
			d.log.Debug("notify: staff address unknown", "username", m.Username, "report_id", r.ID)
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		targets = append(targets, addr)
	}

	notice := CreatedNotice(r)
	results := d.fanOut(ctx, len(targets), func(ctx context.Context, i int) outcome {
		h, err := d.transport.Send(ctx, targets[i], notice)
		return outcome{receipt: model.Receipt{Address: targets[i], Handle: h}, err: err}
	})

	receipts := make(model.DeliveryReceipts, 0, len(results))
	for _, res := range results {
		d.metrics.Delivery("send", res.err == nil)
		if res.err != nil {
			d.log.Warn("notify: send creation notice failed",
				"report_id", r.ID, "address", res.receipt.Address, "error", res.err)
			continue
		}
		receipts = append(receipts, res.receipt)
	}
	d.log.Info("notify: report fanned out",
		"report_id", r.ID, "resolvable", len(targets), "delivered", len(receipts))

	if err := d.receipts.RecordDeliveryReceipts(ctx, r.ID, receipts); err != nil {
		return receipts, err
	}
	r.NotifyMsgIDs = receipts
	return receipts, nil
}

// AnswerResult summarizes the reply fan-out.
type AnswerResult struct {
	RequesterNotified bool
	Edited            int
	Failed            int
}

// NotifyAnswered tells the requester about the reply and rewrites every
// creation notice recorded for the report. Staff are not re-resolved: only
// the recipients of the original notice see the edit.
func (d *Dispatcher) NotifyAnswered(ctx context.Context, r *model.Report) AnswerResult {
	var res AnswerResult

	sctx, cancel := context.WithTimeout(ctx, d.timeout)
	_, err := d.transport.Send(sctx, model.Address(r.UserID), ResolutionNotice(r))
	cancel()
	d.metrics.Delivery("send", err == nil)
	if err != nil {
		d.log.Warn("notify: resolution notice failed", "report_id", r.ID, "user_id", r.UserID, "error", err)
	} else {
		res.RequesterNotified = true
	}

	notice := AnsweredNotice(r)
	receipts := r.NotifyMsgIDs
	results := d.fanOut(ctx, len(receipts), func(ctx context.Context, i int) outcome {
		rc := receipts[i]
		return outcome{receipt: rc, err: d.transport.Edit(ctx, rc.Address, rc.Handle, notice)}
	})
	for _, o := range results {
		d.metrics.Delivery("edit", o.err == nil)
		if o.err != nil {
			res.Failed++
			d.log.Warn("notify: edit notice failed", "report_id", r.ID,
				"address", o.receipt.Address, "handle", o.receipt.Handle, "error", o.err)
			continue
		}
		res.Edited++
	}
	return res
}

// Retract deletes previously sent notices and returns how many went away.
// Failures are expected (messages already gone or too old) and logged at debug.
func (d *Dispatcher) Retract(ctx context.Context, receipts model.DeliveryReceipts) int {
	results := d.fanOut(ctx, len(receipts), func(ctx context.Context, i int) outcome {
		rc := receipts[i]
		return outcome{receipt: rc, err: d.transport.Delete(ctx, rc.Address, rc.Handle)}
	})
	deleted := 0
	for _, o := range results {
		d.metrics.Delivery("delete", o.err == nil)
		if o.err != nil {
			d.log.Debug("notify: delete notice failed",
				"address", o.receipt.Address, "handle", o.receipt.Handle, "error", o.err)
			continue
		}
		deleted++
	}
	return deleted
}

// Package metrics holds the prometheus collectors of the bot. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "support_bot"

type Metrics struct {
	Registry *prometheus.Registry

	deliveries   *prometheus.CounterVec
	updates      *prometheus.CounterVec
	reports      *prometheus.CounterVec
	reaperRuns   *prometheus.CounterVec
	reaperPurged prometheus.Counter
	reaperTime   prometheus.Observer
	events       *prometheus.CounterVec
}

// New registers every collector on a private registry, together with the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Notice deliveries to chat addresses, labeled by operation and result",
		}, []string{"op", "status"}),
		updates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "updates_total",
			Help:      "Inbound events handled by the conversation engine, labeled by kind",
		}, []string{"kind"}),
		reports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reports",
			Name:      "transitions_total",
			Help:      "Report lifecycle transitions",
		}, []string{"transition"}),
		reaperRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reaper",
			Name:      "runs_total",
			Help:      "Cleanup runs, labeled by result",
		}, []string{"status"}),
		reaperPurged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reaper",
			Name:      "purged_reports_total",
			Help:      "Answered reports removed by the reaper",
		}),
		reaperTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reaper",
			Name:      "run_duration_seconds",
			Help:      "Duration of cleanup runs",
			Buckets:   prometheus.DefBuckets,
		}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Ticket events handed to publishers, labeled by backend and result",
		}, []string{"backend", "status"}),
	}
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// Delivery counts one send, edit or delete attempt.
func (m *Metrics) Delivery(op string, ok bool) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(op, status(ok)).Inc()
}

func (m *Metrics) Update(kind string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(kind).Inc()
}

// Transition counts created and answered reports.
func (m *Metrics) Transition(name string) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(name).Inc()
}

// ReaperRun starts timing a cleanup run; call the returned func with the
// outcome when it finishes.
func (m *Metrics) ReaperRun() func(purged int, err error) {
	if m == nil {
		return func(int, error) {}
	}
	timer := prometheus.NewTimer(m.reaperTime)
	return func(purged int, err error) {
		timer.ObserveDuration()
		m.reaperRuns.WithLabelValues(status(err == nil)).Inc()
		m.reaperPurged.Add(float64(purged))
	}
}

func (m *Metrics) Event(backend string, ok bool) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(backend, status(ok)).Inc()
}

// KnownAddresses exports the size of the chat address cache as a gauge read
// on every scrape.
func (m *Metrics) KnownAddresses(size func() int) {
	if m == nil {
		return
	}
	promauto.With(m.Registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "addrcache",
		Name:      "known_addresses",
		Help:      "Usernames with a known chat address",
	}, func() float64 { return float64(size()) })
}

package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/psds-microservice/support-bot/internal/metrics"
)

// Webhook POSTs events as JSON to an HTTP endpoint (best-effort).
type Webhook struct {
	url        string
	httpClient *http.Client
	log        *slog.Logger
	metrics    *metrics.Metrics
}

// NewWebhook returns a publisher. If url is empty, Publish is a no-op.
func NewWebhook(url string, log *slog.Logger, m *metrics.Metrics) *Webhook {
	return &Webhook{
		url:        url,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		log:        log,
		metrics:    m,
	}
}

func (w *Webhook) Publish(ctx context.Context, ev Event) {
	if w.url == "" {
		return
	}
	ok := w.post(ctx, ev)
	w.metrics.Event("webhook", ok)
}

func (w *Webhook) post(ctx context.Context, ev Event) bool {
	body, err := json.Marshal(ev)
	if err != nil {
		w.log.Error("webhook: marshal", "event", ev.Type, "error", err)
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		w.log.Warn("webhook: new request", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", ev.Type)
	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.log.Warn("webhook: request", "event", ev.Type, "error", err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		w.log.Warn("webhook: unexpected status", "status", resp.StatusCode, "event", ev.Type, "report_id", ev.ReportID)
		return false
	}
	return true
}

// Package events publishes ticket lifecycle events to external consumers.
// Publishing is best-effort: failures are logged and never reach callers.
package events

import (
	"context"
	"time"

	"github.com/psds-microservice/support-bot/internal/model"
)

const (
	ReportCreated  = "report.created"
	ReportAnswered = "report.answered"
	ReportPurged   = "report.purged"
	HelperAdded    = "helper.added"
	HelperRemoved  = "helper.removed"
)

// Event is the JSON document written to every backend.
type Event struct {
	Type       string    `json:"event"`
	ReportID   uint64    `json:"report_id,omitempty"`
	UserID     int64     `json:"user_id,omitempty"`
	Username   string    `json:"username,omitempty"`
	Status     string    `json:"status,omitempty"`
	Message    string    `json:"message,omitempty"`
	Reply      string    `json:"reply,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher accepts events. Implementations must not block callers on a
// failing backend for longer than their own timeouts.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// ForReport builds a report event from the stored row.
func ForReport(kind string, r *model.Report) Event {
	ev := Event{
		Type:       kind,
		ReportID:   r.ID,
		UserID:     r.UserID,
		Status:     string(r.Status),
		Message:    r.Message,
		OccurredAt: time.Now().UTC(),
	}
	if r.Username != nil {
		ev.Username = *r.Username
	}
	if a := r.Answer(); a != nil {
		ev.Reply = a.Text
		ev.Actor = a.AnsweredBy
	}
	return ev
}

// ForHelper builds a helper.added or helper.removed event.
func ForHelper(kind, username, actor string) Event {
	return Event{Type: kind, Username: username, Actor: actor, OccurredAt: time.Now().UTC()}
}

// Multi forwards every event to each publisher in order.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) {
	for _, p := range m {
		p.Publish(ctx, ev)
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

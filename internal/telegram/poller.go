package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/psds-microservice/support-bot/internal/action"
	"github.com/psds-microservice/support-bot/internal/conversation"
	"github.com/psds-microservice/support-bot/internal/model"
)

// Handler consumes inbound events.
type Handler interface {
	Handle(ctx context.Context, ev conversation.Event) (conversation.Response, error)
}

// Inbound is one decoded update. Origin and CallbackID are set for button
// presses.
type Inbound struct {
	Event      conversation.Event
	Origin     model.MessageHandle
	CallbackID string
}

// Poller long-polls getUpdates and feeds updates to the handler one at a time.
type Poller struct {
	client  *Client
	handler Handler
	log     *slog.Logger
	timeout int
	backoff time.Duration
}

func NewPoller(c *Client, h Handler, log *slog.Logger) *Poller {
	return &Poller{client: c, handler: h, log: log, timeout: 30, backoff: 3 * time.Second}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("telegram: polling started", "bot", p.client.Username())
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = p.timeout
	cfg.AllowedUpdates = []string{"message", "callback_query"}
	for {
		if ctx.Err() != nil {
			p.log.Info("telegram: polling stopped")
			return nil
		}
		updates, err := call(ctx, func() ([]tgbotapi.Update, error) { return p.client.bot.GetUpdates(cfg) })
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			p.log.Warn("telegram: get updates", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(p.backoff):
			}
			continue
		}
		for _, upd := range updates {
			if upd.UpdateID >= cfg.Offset {
				cfg.Offset = upd.UpdateID + 1
			}
			p.dispatch(ctx, upd)
		}
	}
}

func (p *Poller) dispatch(ctx context.Context, upd tgbotapi.Update) {
	in, ok := Decode(upd)
	if !ok {
		if in.CallbackID != "" {
			_ = p.client.AnswerCallback(ctx, in.CallbackID, "", false)
		}
		return
	}
	resp, err := p.handler.Handle(ctx, in.Event)
	if err != nil {
		p.log.Error("telegram: handle update", "update_id", upd.UpdateID, "error", err)
	}
	if in.CallbackID != "" {
		if err := p.client.AnswerCallback(ctx, in.CallbackID, resp.Notice, resp.Alert); err != nil {
			p.log.Debug("telegram: answer callback", "error", err)
		}
	}
	addr := in.Event.Address
	for i, c := range resp.Messages {
		if i == 0 && in.Origin != 0 {
			if err := p.client.Edit(ctx, addr, in.Origin, c); err == nil {
				continue
			}
		}
		if _, err := p.client.Send(ctx, addr, c); err != nil {
			p.log.Warn("telegram: reply failed", "address", addr, "error", err)
		}
	}
}

// Decode turns an update into an engine event. Updates without a sender or
// a chat, and unknown callback data, are dropped.
func Decode(upd tgbotapi.Update) (Inbound, bool) {
	switch {
	case upd.CallbackQuery != nil:
		q := upd.CallbackQuery
		if q.From == nil || q.Message == nil || q.Message.Chat == nil {
			return Inbound{}, false
		}
		a, err := action.Parse(q.Data)
		if err != nil {
			return Inbound{CallbackID: q.ID}, false
		}
		return Inbound{
			Event: conversation.Event{
				From:    identity(q.From),
				Address: model.Address(q.Message.Chat.ID),
				Action:  &a,
			},
			Origin:     model.MessageHandle(q.Message.MessageID),
			CallbackID: q.ID,
		}, true
	case upd.Message != nil:
		m := upd.Message
		if m.From == nil || m.Chat == nil {
			return Inbound{}, false
		}
		ev := conversation.Event{
			From:    identity(m.From),
			Address: model.Address(m.Chat.ID),
			Text:    m.Text,
			HasText: m.Text != "",
		}
		if m.IsCommand() {
			if a, ok := action.FromCommand(m.Command()); ok {
				ev.Action = &a
				ev.Text, ev.HasText = "", false
			}
		}
		return Inbound{Event: ev}, true
	}
	return Inbound{}, false
}

func identity(u *tgbotapi.User) conversation.Identity {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	return conversation.Identity{UserID: u.ID, Username: u.UserName, DisplayName: name}
}

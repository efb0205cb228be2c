// Package telegram connects the bot to the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/notify"
)

// Client implements notify.Transport on top of the Bot API.
type Client struct {
	bot *tgbotapi.BotAPI
}

// New authenticates with getMe. endpoint is a format string with two %s
// verbs (token, method); empty means the public Bot API.
func New(token, endpoint string) (*Client, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: 90 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	return &Client{bot: bot}, nil
}

// Username is the bot's own username.
func (c *Client) Username() string { return c.bot.Self.UserName }

// call runs fn but stops waiting when ctx ends; the request itself is left
// to finish under the HTTP client timeout.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}

func keyboard(rows [][]notify.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Action.Encode()))
		}
		out = append(out, btns)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(out...)
	return &kb
}

func (c *Client) Send(ctx context.Context, addr model.Address, content notify.Content) (model.MessageHandle, error) {
	msg := tgbotapi.NewMessage(int64(addr), content.Text)
	msg.ParseMode = tgbotapi.ModeHTML
	if kb := keyboard(content.Buttons); kb != nil {
		msg.ReplyMarkup = *kb
	}
	sent, err := call(ctx, func() (tgbotapi.Message, error) { return c.bot.Send(msg) })
	if err != nil {
		return 0, errs.Delivery("send message", err)
	}
	return model.MessageHandle(sent.MessageID), nil
}

func (c *Client) Edit(ctx context.Context, addr model.Address, h model.MessageHandle, content notify.Content) error {
	edit := tgbotapi.NewEditMessageText(int64(addr), int(h), content.Text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.ReplyMarkup = keyboard(content.Buttons)
	_, err := call(ctx, func() (*tgbotapi.APIResponse, error) { return c.bot.Request(edit) })
	if err != nil && !notModified(err) {
		return errs.Delivery("edit message", err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, addr model.Address, h model.MessageHandle) error {
	del := tgbotapi.NewDeleteMessage(int64(addr), int(h))
	if _, err := call(ctx, func() (*tgbotapi.APIResponse, error) { return c.bot.Request(del) }); err != nil {
		return errs.Delivery("delete message", err)
	}
	return nil
}

// AnswerCallback acknowledges a button press, optionally with a popup.
func (c *Client) AnswerCallback(ctx context.Context, id, text string, alert bool) error {
	cb := tgbotapi.NewCallback(id, text)
	cb.ShowAlert = alert
	if _, err := call(ctx, func() (*tgbotapi.APIResponse, error) { return c.bot.Request(cb) }); err != nil {
		return errs.Delivery("answer callback", err)
	}
	return nil
}

// RegisterCommands publishes the command menu shown by Telegram clients.
func (c *Client) RegisterCommands(ctx context.Context) error {
	cfg := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Main menu"},
		tgbotapi.BotCommand{Command: "panel", Description: "Staff panel"},
	)
	if _, err := call(ctx, func() (*tgbotapi.APIResponse, error) { return c.bot.Request(cfg) }); err != nil {
		return fmt.Errorf("telegram: set commands: %w", err)
	}
	return nil
}

// notModified reports Telegram's refusal to apply an identical edit.
func notModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}

var _ notify.Transport = (*Client)(nil)

// Package notify delivers report notices to staff and requesters.
package notify

import (
	"context"

	"github.com/psds-microservice/support-bot/internal/action"
	"github.com/psds-microservice/support-bot/internal/model"
)

// Transport is the outbound side of the chat platform. Every method may fail
// with an error wrapping errs.ErrDelivery.
type Transport interface {
	Send(ctx context.Context, addr model.Address, c Content) (model.MessageHandle, error)
	Edit(ctx context.Context, addr model.Address, h model.MessageHandle, c Content) error
	Delete(ctx context.Context, addr model.Address, h model.MessageHandle) error
}

// Content is a rendered message: HTML text plus rows of inline buttons.
type Content struct {
	Text    string
	Buttons [][]Button
}

type Button struct {
	Text   string
	Action action.Action
}

// Row is a shorthand for a keyboard row.
func Row(buttons ...Button) []Button { return buttons }

// Package notifytest provides an in-memory notify.Transport for tests.
package notifytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/notify"
)

type Sent struct {
	Address model.Address
	Handle  model.MessageHandle
	Content notify.Content
}

type Edited struct {
	Address model.Address
	Handle  model.MessageHandle
	Content notify.Content
}

type Deleted struct {
	Address model.Address
	Handle  model.MessageHandle
}

// Transport records every call. Addresses listed in Fail reject all
// operations with a delivery error.
type Transport struct {
	mu      sync.Mutex
	next    model.MessageHandle
	fail    map[model.Address]bool
	sent    []Sent
	edited  []Edited
	deleted []Deleted
}

func New() *Transport {
	return &Transport{fail: make(map[model.Address]bool)}
}

// Fail makes every operation towards addr fail.
func (t *Transport) Fail(addr model.Address) {
	t.mu.Lock()
	t.fail[addr] = true
	t.mu.Unlock()
}

func (t *Transport) Send(_ context.Context, addr model.Address, c notify.Content) (model.MessageHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail[addr] {
		return 0, errs.Delivery("send", fmt.Errorf("chat %d unreachable", addr))
	}
	t.next++
	t.sent = append(t.sent, Sent{Address: addr, Handle: t.next, Content: c})
	return t.next, nil
}

func (t *Transport) Edit(_ context.Context, addr model.Address, h model.MessageHandle, c notify.Content) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail[addr] {
		return errs.Delivery("edit", fmt.Errorf("chat %d unreachable", addr))
	}
	t.edited = append(t.edited, Edited{Address: addr, Handle: h, Content: c})
	return nil
}

func (t *Transport) Delete(_ context.Context, addr model.Address, h model.MessageHandle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail[addr] {
		return errs.Delivery("delete", fmt.Errorf("chat %d unreachable", addr))
	}
	t.deleted = append(t.deleted, Deleted{Address: addr, Handle: h})
	return nil
}

func (t *Transport) Sent() []Sent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Sent(nil), t.sent...)
}

// SentTo returns the messages delivered to addr, oldest first.
func (t *Transport) SentTo(addr model.Address) []Sent {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Sent
	for _, s := range t.sent {
		if s.Address == addr {
			out = append(out, s)
		}
	}
	return out
}

func (t *Transport) Edited() []Edited {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Edited(nil), t.edited...)
}

func (t *Transport) Deleted() []Deleted {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Deleted(nil), t.deleted...)
}

var _ notify.Transport = (*Transport)(nil)

package model

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// Address is a deliverable chat address (a Telegram chat id).
type Address int64

// MessageHandle identifies a sent message inside its chat.
type MessageHandle int

// Receipt records that a creation notice reached Address as message Handle.
type Receipt struct {
	Address Address       `json:"address"`
	Handle  MessageHandle `json:"handle"`
}

func (r Receipt) String() string {
	return fmt.Sprintf("%d:%d", r.Address, r.Handle)
}

// DeliveryReceipts is stored as a comma separated list of address:handle pairs.
type DeliveryReceipts []Receipt

func (d DeliveryReceipts) Value() (driver.Value, error) {
	return d.String(), nil
}

func (d DeliveryReceipts) String() string {
	parts := make([]string, 0, len(d))
	for _, r := range d {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, ",")
}

func (d *DeliveryReceipts) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = nil
		return nil
	case string:
		*d = ParseReceipts(v)
		return nil
	case []byte:
		*d = ParseReceipts(string(v))
		return nil
	default:
		return fmt.Errorf("model: cannot scan %T into DeliveryReceipts", src)
	}
}

// ParseReceipts decodes the stored form. Malformed items are skipped.
func ParseReceipts(s string) DeliveryReceipts {
	var out DeliveryReceipts
	for _, item := range strings.Split(s, ",") {
		addr, handle, ok := strings.Cut(strings.TrimSpace(item), ":")
		if !ok {
			continue
		}
		a, err := strconv.ParseInt(addr, 10, 64)
		if err != nil {
			continue
		}
		h, err := strconv.Atoi(handle)
		if err != nil {
			continue
		}
		out = append(out, Receipt{Address: Address(a), Handle: MessageHandle(h)})
	}
	return out
}

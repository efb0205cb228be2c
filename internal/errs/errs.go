package errs

import (
	"errors"
	"fmt"
)

var (
	ErrReportNotFound   = errors.New("report not found")
	ErrHelperExists     = errors.New("helper already exists")
	ErrForbidden        = errors.New("admins cannot be removed from staff")
	ErrPermissionDenied = errors.New("permission denied")
	ErrValidation       = errors.New("validation failed")
	ErrDelivery         = errors.New("delivery failed")
	ErrPersistence      = errors.New("persistence failure")
)

// Persistence wraps a storage failure so that errors.Is(err, ErrPersistence)
// holds while the driver error stays reachable.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// Delivery wraps a transport failure.
func Delivery(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrDelivery, op, err)
}

// Validation returns an ErrValidation carrying a reason for the actor.
func Validation(reason string) error {
	return fmt.Errorf("%w: %s", ErrValidation, reason)
}

package service

import (
	"errors"
	"fmt"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrMissingContactInfo = errors.New("contact email is required")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrInvalidQuantity    = errors.New("quantity must be between 1 and 999")
	ErrInvalidCart        = errors.New("cart contains an invalid line")
	ErrInvalidProduct     = errors.New("invalid product")

	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrConcurrentModification = errors.New("order modified concurrently")

	// ErrPersistence marks store failures the caller may retry.
	ErrPersistence = errors.New("store unavailable")

	ErrOrderNotFound   = port.ErrOrderNotFound
	ErrProductNotFound = port.ErrProductNotFound
)

// TransitionError reports a rejected status change. It matches
// ErrInvalidTransition, and ErrConcurrentModification too when the change
// lost a race against another writer.
type TransitionError struct {
	Current   domain.OrderStatus
	Requested domain.OrderStatus
	Conflict  bool
}

func (e *TransitionError) Error() string {
	if e.Conflict {
		return fmt.Sprintf("order modified concurrently: cannot transition from %s to %s", e.Current, e.Requested)
	}
	return fmt.Sprintf("invalid status transition from %s to %s", e.Current, e.Requested)
}

func (e *TransitionError) Is(target error) bool {
	switch target {
	case ErrInvalidTransition:
		return true
	case ErrConcurrentModification:
		return e.Conflict
	}
	return false
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

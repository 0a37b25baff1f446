package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrCouponExpired     = errors.New("coupon expired")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrUnknownOutcome    = errors.New("outcome unknown")
)

// StockShortfallError lists every product whose conditional decrement failed
// during a single checkout attempt.
type StockShortfallError struct {
	ProductIDs []string
}

func (e *StockShortfallError) Error() string {
	return fmt.Sprintf("insufficient stock for: %s", strings.Join(e.ProductIDs, ", "))
}

func (e *StockShortfallError) Unwrap() error { return ErrInsufficientStock }

package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound occurs when a referenced owner or movement does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState occurs when the owner's status forbids the requested
	// mutation, or the request contradicts the movement's shape.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidInput occurs when the request itself is malformed (missing
	// sens, non-positive amount, unknown kind).
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientFunds is the sentinel matched by errors.Is for fund
	// sufficiency failures; the concrete error is InsufficientFundsError.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrConcurrencyConflict occurs when the atomic transaction detected a
	// conflicting concurrent write; the caller should retry from the balance
	// read.
	ErrConcurrencyConflict = errors.New("concurrent write conflict")
)

// InsufficientFundsError reports the two compared figures and the shortfall.
// The requested amount is never silently clamped.
type InsufficientFundsError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

// Shortfall is how much the request exceeds the available figure.
func (e *InsufficientFundsError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: requested %s, available %s, shortfall %s",
		e.Requested, e.Available, e.Shortfall())
}

// Is makes errors.Is(err, ErrInsufficientFunds) match.
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

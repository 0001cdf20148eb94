package market

import (
	"errors"
	"fmt"
)

var (
	ErrItemNotFound        = errors.New("item not found")
	ErrSectionNotFound     = errors.New("section not found")
	ErrDuplicateItem       = errors.New("item already exists")
	ErrDuplicateSection    = errors.New("section already exists")
	ErrInvalidItem         = errors.New("invalid item")
	ErrInvalidQuantity     = errors.New("quantity must be >= 1")
	ErrNotSellable         = errors.New("item cannot be sold")
	ErrSectionLocked       = errors.New("section locked")
	ErrNoItem              = errors.New("not enough goods")
	ErrProviderUnavailable = errors.New("economy provider unavailable")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrWithdrawFailed      = errors.New("withdraw failed")
	ErrDepositFailed       = errors.New("deposit failed")
	ErrRestorerRunning     = errors.New("restorer already running")
)

// RequirementError names the first requirement the actor does not meet.
type RequirementError struct {
	Reason string
}

func (e *RequirementError) Error() string {
	return "requirement not met: " + e.Reason
}

// LimitError reports a daily purchase quota that would be exceeded.
type LimitError struct {
	Current int
	Max     int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("daily limit reached (%d/%d)", e.Current, e.Max)
}

// CancelledError is returned when a pre-transaction hook vetoes.
type CancelledError struct {
	Reason string
}

func (e *CancelledError) Error() string {
	if e.Reason == "" {
		return "transaction cancelled"
	}
	return "transaction cancelled: " + e.Reason
}

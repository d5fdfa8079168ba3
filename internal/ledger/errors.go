package ledger

import "errors"

// Every precondition failure aborts the whole call with no state mutation.
// Callers branch on these kinds with errors.Is.
var (
	ErrNotOwner             = errors.New("not owner")
	ErrNotOperator          = errors.New("not authorized operator")
	ErrPaused               = errors.New("ledger is paused")
	ErrNotPaused            = errors.New("ledger is not paused")
	ErrAmountBelowMinimum   = errors.New("amount below minimum")
	ErrInvalidPhone         = errors.New("invalid phone number")
	ErrCountryNotSupported  = errors.New("country not supported")
	ErrProviderNotSupported = errors.New("provider not supported")
	ErrValueMismatch        = errors.New("attached value mismatch")
	ErrFeeRateTooHigh       = errors.New("fee rate too high")
	ErrInvalidAddress       = errors.New("invalid address")
	ErrRecordNotFound       = errors.New("transfer not found")
	ErrRecordNotPending     = errors.New("transfer not pending")
	ErrInsufficientEscrow   = errors.New("insufficient escrow balance")
)

package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies errors surfaced by the payment core.
type ErrorKind string

// Common error kinds
const (
	ErrInvalidAddress      ErrorKind = "INVALID_ADDRESS"
	ErrInvalidAmount       ErrorKind = "INVALID_AMOUNT"
	ErrParseFailure        ErrorKind = "PARSE_FAILURE"
	ErrBalanceRead         ErrorKind = "BALANCE_READ_ERROR"
	ErrTransferRejected    ErrorKind = "TRANSFER_REJECTED"
	ErrHistoryPersistence  ErrorKind = "HISTORY_PERSISTENCE_ERROR"
	ErrInsufficientBalance ErrorKind = "INSUFFICIENT_BALANCE"
	ErrInvalidState        ErrorKind = "INVALID_STATE"
	ErrPaymentInFlight     ErrorKind = "PAYMENT_IN_FLIGHT"
	ErrPendingConfirmation ErrorKind = "PENDING_CONFIRMATION"
	ErrUnknownToken        ErrorKind = "UNKNOWN_TOKEN"
	ErrConfigError         ErrorKind = "CONFIG_ERROR"
)

// Error is the typed error returned across package boundaries.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`

	// Raw echoes the offending input (scanned payload, address, amount).
	Raw string `json:"raw,omitempty"`

	// ProviderKind carries the chain provider's classification, if any.
	ProviderKind string `json:"providerKind,omitempty"`

	Err error `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error of the given kind.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an Error of the given kind around err.
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

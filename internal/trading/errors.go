package trading

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures so the transport layer can map them to
// status codes without string matching. Kinds are never coerced into one
// another: a storage failure stays a storage failure even when it surfaces
// during validation.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindInvalidInput        Kind = "invalid_input"
	KindLimitExceeded       Kind = "limit_exceeded"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindMarketClosed        Kind = "market_closed"
	KindAlreadyResolved     Kind = "already_resolved"
	KindUnauthorized        Kind = "unauthorized"
	KindStorageFailure      Kind = "storage_failure"
)

// Error is the engine's caller-visible failure. Message carries enough
// context to reconstruct the violated limit (cap value, amount already spent).
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func errf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func storageErr(op string, err error) *Error {
	return &Error{Kind: KindStorageFailure, Message: "storage failure: " + op, Err: err}
}

// KindOf extracts the Kind from an engine error, or KindStorageFailure for
// anything unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorageFailure
}

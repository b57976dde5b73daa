package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable, client-visible classification of a failed operation.
type ErrorKind string

const (
	KindValidation        ErrorKind = "VALIDATION_ERROR"
	KindInvalidTransition ErrorKind = "INVALID_TRANSITION"
	KindGatingFailure     ErrorKind = "GATING_FAILURE"
	KindExternalProvider  ErrorKind = "EXTERNAL_PROVIDER_FAILURE"
	KindConcurrency       ErrorKind = "CONCURRENCY_CONFLICT"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindForbidden         ErrorKind = "FORBIDDEN"
)

// Precondition names the gate that rejected an operation so the caller can
// route the user to the matching remediation flow.
type Precondition string

const (
	PreconditionPaymentMethod      Precondition = "PAYMENT_METHOD_REQUIRED"
	PreconditionPayoutVerification Precondition = "PAYOUT_VERIFICATION_REQUIRED"
	PreconditionIdentity           Precondition = "IDENTITY_VERIFICATION_REQUIRED"
	PreconditionAccountActive      Precondition = "ACCOUNT_DEACTIVATED"
)

type Error struct {
	Kind         ErrorKind
	Op           string
	Message      string
	Precondition Precondition
	Err          error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Precondition != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Precondition)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may retry the same request unchanged.
func (e *Error) Retryable() bool {
	return e.Kind == KindConcurrency || e.Kind == KindExternalProvider
}

func NewValidationError(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

func NewInvalidTransition(op string, from BookingState, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if from != "" {
		msg = fmt.Sprintf("%s (current state %s)", msg, from)
	}
	return &Error{Kind: KindInvalidTransition, Op: op, Message: msg}
}

func NewGatingFailure(op string, pre Precondition, format string, args ...any) *Error {
	return &Error{Kind: KindGatingFailure, Op: op, Message: fmt.Sprintf(format, args...), Precondition: pre}
}

func NewProviderFailure(op string, err error, format string, args ...any) *Error {
	return &Error{Kind: KindExternalProvider, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

func NewConcurrencyConflict(op string, err error) *Error {
	return &Error{Kind: KindConcurrency, Op: op, Message: "record was modified concurrently, re-fetch and retry", Err: err}
}

func NewNotFound(op, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

func NewForbidden(op, format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Op: op, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// PreconditionOf returns the failed gate of a GATING_FAILURE error.
func PreconditionOf(err error) Precondition {
	var de *Error
	if errors.As(err, &de) {
		return de.Precondition
	}
	return ""
}

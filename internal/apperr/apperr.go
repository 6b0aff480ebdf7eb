// Package apperr carries the error taxonomy shared by the gateway client,
// the record stores and the reconciliation engine. Boundaries classify
// with KindOf and decide the transport mapping themselves.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindValidation covers missing or malformed caller input. Never retried.
	KindValidation Kind = "validation"
	// KindInvalidPhone is the phone-normalizer subtype of validation.
	KindInvalidPhone Kind = "invalid_phone_format"
	// KindGatewayRejected means the gateway processed the request and declined it.
	KindGatewayRejected Kind = "gateway_rejected"
	// KindGatewayUnavailable means network failure, timeout or a 5xx from the
	// gateway. Retryable by the caller, never retried automatically.
	KindGatewayUnavailable Kind = "gateway_unavailable"
	// KindGatewayAuth means the gateway refused our credentials. Fatal
	// misconfiguration: alert an operator, do not retry.
	KindGatewayAuth Kind = "gateway_auth"
	// KindNotFound means a referenced transaction or booking is absent.
	KindNotFound Kind = "record_not_found"
	// KindSignatureInvalid marks a webhook that failed HMAC verification.
	KindSignatureInvalid Kind = "signature_invalid"
	// KindPrecondition marks an operation whose state preconditions do not
	// hold (escrow not held, parties not done, already released).
	KindPrecondition Kind = "precondition_failed"
	// KindConflict marks an illegal status transition (retry of a non-failed
	// transaction, cancel of a terminal one).
	KindConflict Kind = "conflict"
	// KindInternal is everything else: store failures, encoding bugs.
	KindInternal Kind = "internal"
)

// Error pairs a taxonomy kind with a client-safe message. The wrapped
// cause is for logs and debug responses only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap keeps the cause available to errors.Is/errors.As while presenting
// the client-safe message.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the taxonomy kind, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message returns the client-safe message of a taxonomy error, or the
// given fallback for untyped errors whose text must stay internal.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return fallback
}

// Retryable reports whether the caller may usefully retry the operation.
func Retryable(err error) bool {
	return KindOf(err) == KindGatewayUnavailable
}

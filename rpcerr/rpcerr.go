// Package rpcerr classifies call-pipeline failures into the behavioral
// kinds the retry policy and circuit breaker reason about, replacing
// string-matching (`strings.Contains(err, "timeout")`) with typed errors
// that survive wrapping.
package rpcerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a behavioral failure category, not a concrete error type.
type Kind int

const (
	KindNoProvider Kind = iota
	KindCircuitOpen
	KindTimeout
	KindConnectionRefused
	KindIoError
	KindBusiness
	KindProtocolViolation
	KindRetryExhausted
)

func (k Kind) String() string {
	switch k {
	case KindNoProvider:
		return "NoProvider"
	case KindCircuitOpen:
		return "CircuitOpen"
	case KindTimeout:
		return "Timeout"
	case KindConnectionRefused:
		return "ConnectionRefused"
	case KindIoError:
		return "IoError"
	case KindBusiness:
		return "Business"
	case KindProtocolViolation:
		return "ProtocolViolation"
	case KindRetryExhausted:
		return "RetryExhausted"
	default:
		return "Unknown"
	}
}

// Error wraps a cause with its behavioral Kind.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New wraps cause with the given kind.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// NoProvider reports that discovery returned no endpoints.
func NoProvider(service string) *Error {
	return New(KindNoProvider, fmt.Errorf("no provider available for %s", service))
}

// CircuitOpen reports that the breaker refused admission for key.
func CircuitOpen(key string) *Error {
	return New(KindCircuitOpen, fmt.Errorf("circuit open for %s", key))
}

// RetryExhausted wraps the final cause after every attempt failed.
func RetryExhausted(last error) *Error {
	return New(KindRetryExhausted, last)
}

// ClassifyOf extracts the Kind of err, walking the cause chain. Errors not
// produced by this package are treated as KindIoError, matching spec's
// "General I/O error -> yes [retryable]" default.
func ClassifyOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindIoError
}

// ClassifyText maps a plain error message to a Kind using keyword
// heuristics. It exists for boundaries where errors have already crossed
// the wire as text (a response's Error field) and the typed Error value
// behind them is gone — the server ingress middleware is one such case.
// Call sites that still hold the original error should use ClassifyOf
// instead; this is strictly a fallback for stringified errors.
func ClassifyText(msg string) Kind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "circuit"):
		return KindCircuitOpen
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out") || strings.Contains(lower, "deadline"):
		return KindTimeout
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "econnrefused"):
		return KindConnectionRefused
	case strings.Contains(lower, "no provider"):
		return KindNoProvider
	default:
		return KindIoError
	}
}

// IsRetryableKind applies the §4.8 classification table to an already
// classified Kind, without needing a typed error value.
func IsRetryableKind(kind Kind, retryOnTimeout bool) bool {
	switch kind {
	case KindCircuitOpen, KindBusiness, KindProtocolViolation, KindNoProvider, KindRetryExhausted:
		return false
	case KindConnectionRefused, KindIoError:
		return true
	case KindTimeout:
		return retryOnTimeout
	default:
		return true
	}
}

// IsRetryable implements the classification table of spec.md §4.8:
//   - CircuitOpen       -> never
//   - ConnectionRefused -> always
//   - IoError           -> yes
//   - Timeout           -> iff retryOnTimeout
//   - Business/ProtocolViolation/NoProvider -> no
//
// It walks the cause chain recursively via errors.Unwrap, so a Kind buried
// under several layers of wrapping is still found.
func IsRetryable(err error, retryOnTimeout bool) bool {
	var e *Error
	if !errors.As(err, &e) {
		// Unclassified errors are treated as general I/O errors: retryable.
		return true
	}
	switch e.Kind {
	case KindCircuitOpen, KindBusiness, KindProtocolViolation, KindNoProvider, KindRetryExhausted:
		return false
	case KindConnectionRefused, KindIoError:
		return true
	case KindTimeout:
		return retryOnTimeout
	default:
		return true
	}
}

// Package errs defines the error kinds every component localizes around,
// per the propagation policy: only StorageUnavailable and Fatal are
// meant to escape a task boundary; everything else is handled (retried,
// logged, or turned into a typed response) where it occurs.
package errs

import "errors"

// Kind classifies an error for logging and handling policy. It is not a
// replacement for Go's error values — callers still wrap with fmt.Errorf
// and unwrap with errors.Is/As; Kind is attached for dispatch.
type Kind int

const (
	KindUnknown Kind = iota
	KindUpstreamTransient
	KindUpstreamProtocol
	KindInsufficientData
	KindStorageUnavailable
	KindDuplicateKey
	KindClientProtocol
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindUpstreamTransient:
		return "upstream_transient"
	case KindUpstreamProtocol:
		return "upstream_protocol"
	case KindInsufficientData:
		return "insufficient_data"
	case KindStorageUnavailable:
		return "storage_unavailable"
	case KindDuplicateKey:
		return "duplicate_key"
	case KindClientProtocol:
		return "client_protocol"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind for policy dispatch.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with kind. A nil err returns nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Is reports whether err carries kind, following the wrap chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ErrInsufficientData is a ready-made KindInsufficientData error for
// fewer than W(h) minutes of real data. The predictor's scheduler does
// not return this value; it builds its own KindInsufficientData errors
// carrying per-horizon detail.
var ErrInsufficientData = New(KindInsufficientData, errors.New("fewer than required minutes available"))

// NotRetryableError marks an upstream error the retry loop should not
// retry (e.g. an unknown symbol, a 4xx response).
type NotRetryableError struct {
	Err error
}

func (e *NotRetryableError) Error() string { return e.Err.Error() }
func (e *NotRetryableError) Unwrap() error { return e.Err }

// RetryAfterError optionally carries a server-provided backoff hint
// (e.g. from a 429 response's Retry-After header).
type RetryAfterError struct {
	Err        error
	RetryAfter int // seconds
}

func (e *RetryAfterError) Error() string { return e.Err.Error() }
func (e *RetryAfterError) Unwrap() error { return e.Err }

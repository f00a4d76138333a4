package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// ErrorKind is the provider-agnostic classification of a backend failure.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindUnauthorized
	KindRateLimited
	KindServerError
	KindDecodeFailure
	KindNetworkFailure
	KindInvalidResponse
	KindNoBackendConfigured
	KindUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate limited"
	case KindServerError:
		return "server error"
	case KindDecodeFailure:
		return "decode failure"
	case KindNetworkFailure:
		return "network failure"
	case KindInvalidResponse:
		return "invalid response"
	case KindNoBackendConfigured:
		return "no backend configured"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is returned by every Backend method on failure.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error of the given kind.
func NewError(kind ErrorKind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// KindOf returns the kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// KindFromStatus maps an HTTP status code onto the taxonomy.
func KindFromStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindUnauthorized
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code >= 500 && code <= 599:
		return KindServerError
	default:
		return KindUnknown
	}
}

// ErrorFromStatus builds an *Error for a non-2xx response.
func ErrorFromStatus(code int, body string) *Error {
	return &Error{Kind: KindFromStatus(code), Detail: fmt.Sprintf("http %d: %s", code, body)}
}

// classify wraps a raw transport or SDK error. Values that already carry a
// kind pass through unchanged. Context cancellation is returned as is so
// callers can distinguish it from failures.
func classify(err error, statusOf func(error) (int, bool)) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if statusOf != nil {
		if code, ok := statusOf(err); ok {
			return &Error{Kind: KindFromStatus(code), Detail: fmt.Sprintf("http %d", code), Err: err}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindNetworkFailure, Detail: "request timed out", Err: err}
	}
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return &Error{Kind: KindNetworkFailure, Err: err}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &Error{Kind: KindDecodeFailure, Err: err}
	}
	return &Error{Kind: KindUnknown, Err: err}
}

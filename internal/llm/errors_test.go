package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestKindFromStatus(t *testing.T) {
	cases := map[int]ErrorKind{
		401: KindUnauthorized,
		403: KindUnauthorized,
		429: KindRateLimited,
		500: KindServerError,
		503: KindServerError,
		400: KindUnknown,
		404: KindUnknown,
	}
	for code, want := range cases {
		if got := KindFromStatus(code); got != want {
			t.Errorf("KindFromStatus(%d) = %v, want %v", code, got, want)
		}
	}
}

func TestClassifyPassesThroughTypedErrors(t *testing.T) {
	orig := NewError(KindRateLimited, "slow down", nil)
	wrapped := fmt.Errorf("send: %w", orig)
	if got := classify(wrapped, nil); got != wrapped {
		t.Fatalf("classify rewrapped a typed error: %v", got)
	}
}

func TestClassifyNetworkAndTimeout(t *testing.T) {
	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	if !IsKind(classify(opErr, nil), KindNetworkFailure) {
		t.Fatal("dial error should be a network failure")
	}
	if !IsKind(classify(context.DeadlineExceeded, nil), KindNetworkFailure) {
		t.Fatal("deadline should be a network failure")
	}
	if err := classify(context.Canceled, nil); !errors.Is(err, context.Canceled) || KindOf(err) != KindUnknown {
		t.Fatalf("cancellation must not be classified, got %v", err)
	}
}

func TestClassifyUsesStatusExtractor(t *testing.T) {
	raw := errors.New("boom")
	err := classify(raw, func(error) (int, bool) { return 429, true })
	if !IsKind(err, KindRateLimited) {
		t.Fatalf("got %v, want rate limited", err)
	}
	if !errors.Is(err, raw) {
		t.Fatal("classified error should unwrap to the original")
	}
}

func TestErrorMessage(t *testing.T) {
	err := NewError(KindServerError, "http 502", errors.New("bad gateway"))
	if got := err.Error(); got != "server error: http 502: bad gateway" {
		t.Fatalf("Error() = %q", got)
	}
}

package resilience

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient_Nil(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error must not be transient")
	}
}

func TestIsTransient_ExplicitWrap(t *testing.T) {
	err := NewTransientError(errors.New("overloaded"), 529)
	if !IsTransient(err) {
		t.Error("TransientError should be transient")
	}

	wrapped := fmt.Errorf("calling provider: %w", err)
	if !IsTransient(wrapped) {
		t.Error("wrapped TransientError should be transient")
	}
}

func TestIsTransient_NetworkSignatures(t *testing.T) {
	cases := []string{
		"dial tcp 10.0.0.1:443: connect: connection refused",
		"read tcp: connection reset by peer",
		"lookup api.example.com: no such host",
		"Get \"https://x\": context deadline exceeded",
		"net/http: TLS handshake timeout",
	}
	for _, msg := range cases {
		if !IsTransient(errors.New(msg)) {
			t.Errorf("expected transient: %q", msg)
		}
	}
}

func TestIsTransient_ValidationErrors(t *testing.T) {
	cases := []string{
		"invalid_request_error: max_tokens must be positive",
		"account not found",
		"permission denied",
	}
	for _, msg := range cases {
		if IsTransient(errors.New(msg)) {
			t.Errorf("expected non-transient: %q", msg)
		}
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504, 529} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected %d transient", code)
		}
	}
	for _, code := range []int{200, 201, 400, 401, 403, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected %d non-transient", code)
		}
	}
}

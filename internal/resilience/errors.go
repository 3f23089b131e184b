// Package resilience provides retry with exponential backoff and the
// transient-error taxonomy used around external service calls.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError marks an error as safe to retry (429, 5xx, network
// timeout). StatusCode is zero for non-HTTP failures.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as transient with an optional HTTP status.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// transientPatterns are string signatures of wrapper errors that hide
// the underlying net error from errors.As.
var transientPatterns = []string{
	"connection reset by peer",
	"connection refused",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"context deadline exceeded",
	"server closed idle connection",
}

// IsTransient reports whether err is worth retrying: an explicit
// TransientError in the chain, a network timeout, a connection-level
// syscall error, or a known transient signature.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus reports whether an HTTP status is safe to retry:
// any 5xx, request timeout, or 429. 429 counts because it means the
// provider rate-limited us, not that the request was invalid.
func IsTransientHTTPStatus(status int) bool {
	return status >= 500 || status == 408 || status == 429
}

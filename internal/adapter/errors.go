package adapter

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/sells-group/metrics-cli/internal/model"
)

// FetchError is a classified adapter failure. Transient failures (timeout,
// 429/5xx, connection reset) are retried by the scheduler; permanent ones
// (404, malformed payload, blocked) are reported once and not retried.
type FetchError struct {
	Kind       model.FailureKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	return e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable failure.
func Transient(err error, statusCode int) *FetchError {
	return &FetchError{Kind: model.FailureTransient, StatusCode: statusCode, Err: err}
}

// Permanent wraps err as a non-retryable failure.
func Permanent(err error, statusCode int) *FetchError {
	return &FetchError{Kind: model.FailurePermanent, StatusCode: statusCode, Err: err}
}

// Classify maps an error to a FailureKind. Explicit FetchError tags win;
// otherwise network timeouts, connection resets and DNS hiccups count as
// transient and everything else as permanent.
func Classify(err error) model.FailureKind {
	if err == nil {
		return ""
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return model.FailureTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.FailureTransient
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return model.FailureTransient
	}

	// Wrapped errors from HTTP clients lose their type; fall back to
	// message patterns.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return model.FailureTransient
		}
	}

	return model.FailurePermanent
}

// IsTransientHTTPStatus reports whether the status code is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

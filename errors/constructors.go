package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// Network creates an error for a request that could not be sent or did not
// complete in time.
func Network(method, path string, err error) *Error {
	msg := fmt.Sprintf("request %s %s failed", method, path)
	if stderrors.Is(err, context.DeadlineExceeded) {
		msg = fmt.Sprintf("request %s %s timed out", method, path)
	}
	return Wrap(err, KindNetwork, msg).
		WithDetail("method", method).
		WithDetail("path", path)
}

// FromStatus classifies a non-2xx HTTP response. serverMsg is the message the
// server put in the response body, if any.
func FromStatus(status int, serverMsg string) *Error {
	msg := strings.TrimSpace(serverMsg)
	if msg == "" {
		msg = strings.ToLower(http.StatusText(status))
	}
	if msg == "" {
		msg = fmt.Sprintf("unexpected status %d", status)
	}

	var kind Kind
	switch {
	case status == http.StatusUnauthorized:
		kind = KindUnauthorized
	case status == http.StatusForbidden:
		kind = KindForbidden
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status >= 400 && status < 500:
		kind = KindValidation
	default:
		kind = KindServerFault
	}
	return New(kind, msg).WithStatus(status)
}

// MalformedResponse creates an error for a response body that could not be decoded.
func MalformedResponse(method, path string, err error) *Error {
	return Wrap(err, KindServerFault, fmt.Sprintf("malformed response from %s %s", method, path)).
		WithDetail("method", method).
		WithDetail("path", path)
}

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *Error {
	return New(KindConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *Error {
	return New(KindConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// Storage wraps a durable storage failure.
func Storage(op, key string, err error) *Error {
	return Wrap(err, KindStorage, fmt.Sprintf("storage %s failed", op)).
		WithDetail("key", key)
}

// InvalidInput creates an error for arguments rejected before any request is made.
func InvalidInput(reason string) *Error {
	return New(KindInvalidInput, reason)
}

package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// Kind classifies an error condition. Remote-call failures always carry one of
// the first six kinds; the rest are used by configuration and local storage.
type Kind string

const (
	// Remote call errors
	KindNetwork      Kind = "NETWORK"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindForbidden    Kind = "FORBIDDEN"
	KindNotFound     Kind = "NOT_FOUND"
	KindValidation   Kind = "VALIDATION"
	KindServerFault  Kind = "SERVER_FAULT"

	// Configuration errors
	KindConfigNotFound   Kind = "CONFIG_NOT_FOUND"
	KindConfigInvalid    Kind = "CONFIG_INVALID"
	KindConfigValidation Kind = "CONFIG_VALIDATION"

	// General errors
	KindStorage      Kind = "STORAGE"
	KindInvalidInput Kind = "INVALID_INPUT"
	KindInternal     Kind = "INTERNAL_ERROR"
)

// Remote reports whether k is one of the remote call kinds.
func (k Kind) Remote() bool {
	switch k {
	case KindNetwork, KindUnauthorized, KindForbidden, KindNotFound, KindValidation, KindServerFault:
		return true
	}
	return false
}

// Error is a classified error with optional context.
type Error struct {
	Kind    Kind                   `json:"kind"`
	Message string                 `json:"message"`
	Status  int                    `json:"status,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithStatus records the HTTP status that produced the error.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// ToJSON converts the error to JSON
func (e *Error) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new Error
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// Wrap wraps an existing error with an Error
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   err,
	}
}

// As returns the outermost *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is checks if an error carries a specific kind
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf extracts the kind from an error. It returns "" for nil and for
// errors that were never classified.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// internal/colppy/errors.go
package colppy

import (
	"errors"
	"fmt"
)

// Validation causes, matched with errors.Is.
var (
	ErrMissingParameter      = errors.New("missing parameter")
	ErrInvalidCompanyID      = errors.New("company id must be a string holding an integer")
	ErrInvalidDateRange      = errors.New("date range must be two YYYY-MM-DD dates")
	ErrInvalidCostCenterType = errors.New("cost center type must be 1 or 2")
	ErrInvalidItemID         = errors.New("item id must contain digits only")
	ErrUnknownCompany        = errors.New("company not available for this user")
)

// ConfigurationError: credentials, templates or state are missing or malformed.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Reason
}

// ValidationError is raised while building a payload, before any network call.
type ValidationError struct {
	Field string
	Value any
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s %v: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func missing(field string) *ValidationError {
	return &ValidationError{Field: field, Err: ErrMissingParameter}
}

// AuthenticationError: login failed. Never retried automatically.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("colppy login failed: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// TransportError: the HTTP request failed or returned an error status.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport: http %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError: the envelope has no usable "response" object.
type MalformedResponseError struct {
	Reason string
	Body   []byte
}

func (e *MalformedResponseError) Error() string {
	return "malformed response: " + e.Reason
}

// RemoteOperationError: the API answered with success == false.
type RemoteOperationError struct {
	Operation Operation
	Message   string
	Envelope  []byte
}

func (e *RemoteOperationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: remote operation not successful", e.Operation)
	}
	return fmt.Sprintf("%s: remote operation not successful: %s", e.Operation, e.Message)
}

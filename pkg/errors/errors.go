package errors

import (
	"fmt"
)

// ErrorType defines the error categories the engine distinguishes
type ErrorType string

const (
	// ErrorTypeStructural marks a malformed shape graph (missing refs,
	// unknown kinds). Structural problems are always recoverable and are
	// downgraded to incomplete/invalid classifications, never surfaced as
	// hard failures across module boundaries.
	ErrorTypeStructural ErrorType = "STRUCTURAL"

	// ErrorTypeNotFound marks a backend record that no longer resolves.
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeBackendUnavailable marks a failed backend fetch/create/update.
	// Recovered per record and aggregated, never aborts a whole pass.
	ErrorTypeBackendUnavailable ErrorType = "BACKEND_UNAVAILABLE"

	// ErrorTypeAuthorizationDenied marks a denied collaboration metadata
	// check. Fatal to the session, not to the application.
	ErrorTypeAuthorizationDenied ErrorType = "AUTHORIZATION_DENIED"

	// ErrorTypeTransport marks a collaboration transport failure.
	ErrorTypeTransport ErrorType = "TRANSPORT"

	// ErrorTypeInternal marks everything else.
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// AppError is the custom error type for the application
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work
func (e *AppError) Unwrap() error {
	return e.Err
}

// Constructor functions for different error types

// NewStructural creates a structural error
func NewStructural(message string) error {
	return &AppError{
		Type:    ErrorTypeStructural,
		Message: message,
	}
}

// NewNotFound creates a not found error
func NewNotFound(message string) error {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewBackendUnavailable creates a backend unavailable error
func NewBackendUnavailable(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeBackendUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewAuthorizationDenied creates an authorization denied error
func NewAuthorizationDenied(message string) error {
	return &AppError{
		Type:    ErrorTypeAuthorizationDenied,
		Message: message,
	}
}

// NewTransport creates a transport error
func NewTransport(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeTransport,
		Message: message,
		Err:     err,
	}
}

// NewInternal creates an internal error
func NewInternal(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, preserve the type
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Type:    appErr.Type,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     appErr.Err,
		}
	}

	// Otherwise, create an internal error
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// Type checking functions

// IsStructural checks if an error is a structural error
func IsStructural(err error) bool {
	return hasType(err, ErrorTypeStructural)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// IsBackendUnavailable checks if an error is a backend unavailable error
func IsBackendUnavailable(err error) bool {
	return hasType(err, ErrorTypeBackendUnavailable)
}

// IsAuthorizationDenied checks if an error is an authorization denied error
func IsAuthorizationDenied(err error) bool {
	return hasType(err, ErrorTypeAuthorizationDenied)
}

// IsTransport checks if an error is a transport error
func IsTransport(err error) bool {
	return hasType(err, ErrorTypeTransport)
}

func hasType(err error, t ErrorType) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == t
}

package errors

import (
	"fmt"
)

// Common error creators for frequent use cases

// NewNotFoundError creates an error for a missing channel or resource
func NewNotFoundError(kind, id string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found for id: %s", kind, id)).
		WithContext("kind", kind).
		WithContext("id", id)
}

// NewConfigError creates an error for a missing or malformed config key
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeMissingConfig, message).
		WithContext("config_key", key)
}

// NewDatabaseError creates a database error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation)
}

// NewGatewayError creates an error for a failed gateway API call. Server
// side failures are marked retryable so a host-level retry policy can
// distinguish them; nothing in this service retries inline.
func NewGatewayError(endpoint string, statusCode int, err error) *AppError {
	appErr := Wrap(err, ErrCodeGatewayAPI, "gateway API call failed").
		WithContext("endpoint", endpoint).
		WithContext("status_code", statusCode)

	if statusCode >= 500 || statusCode == 429 || statusCode == 408 {
		appErr.Retryable = true
	}

	return appErr
}

// NewProtocolError creates an error for a gateway response missing an
// expected field. Never defaulted, never retried.
func NewProtocolError(field, message string) *AppError {
	return New(ErrCodeProtocolViolation, message).
		WithContext("field", field)
}

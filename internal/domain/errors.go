package domain

import (
	"fmt"
	"net/http"
)

// ErrorType categorizes an API error.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a malformed or invalid request.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeInvalidDestination indicates a destination number that failed
	// E.164 validation.
	ErrorTypeInvalidDestination ErrorType = "invalid_destination"

	// ErrorTypeUpstream indicates a failure from an external capability
	// (completion API or telephony provider).
	ErrorTypeUpstream ErrorType = "upstream"

	// ErrorTypeParse indicates the completion capability returned no
	// well-formed structured data.
	ErrorTypeParse ErrorType = "parse"

	// ErrorTypeServer indicates an internal error.
	ErrorTypeServer ErrorType = "server"
)

// APIError is the canonical error carried across component boundaries. It
// maps onto an HTTP status when it surfaces at the API layer.
type APIError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	// StatusCode overrides the default HTTP status for the type.
	StatusCode int `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatusCode returns the HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeInvalidRequest, ErrorTypeInvalidDestination:
		return http.StatusBadRequest
	case ErrorTypeUpstream:
		return http.StatusBadGateway
	case ErrorTypeParse, ErrorTypeServer:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{Type: errType, Message: message}
}

// ErrInvalidRequest creates an invalid request error.
func ErrInvalidRequest(message string) *APIError {
	return NewAPIError(ErrorTypeInvalidRequest, message)
}

// ErrInvalidDestination creates an invalid destination error.
func ErrInvalidDestination(message string) *APIError {
	return NewAPIError(ErrorTypeInvalidDestination, message)
}

// ErrUpstream creates an upstream capability error.
func ErrUpstream(message string) *APIError {
	return NewAPIError(ErrorTypeUpstream, message)
}

// ErrParse creates a parse error.
func ErrParse(message string) *APIError {
	return NewAPIError(ErrorTypeParse, message)
}

// ErrServer creates an internal server error.
func ErrServer(message string) *APIError {
	return NewAPIError(ErrorTypeServer, message)
}

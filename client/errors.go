package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/lensbridge/camlink/protocol"
)

// Standard error types that can be used with errors.Is()
var (
	ErrNotConnected     = errors.New("client is not connected")
	ErrAlreadyConnected = errors.New("client is already connected")
	ErrRequestTimeout   = errors.New("request timed out")
	ErrConnectionLost   = errors.New("connection lost")
	ErrAuthRequired     = errors.New("authentication required")
	ErrServerError      = errors.New("server reported error")
)

// ClientError is the base error type for client errors
type ClientError struct {
	Message string
	Cause   error
}

// Error implements the error interface
func (e *ClientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ConnectionError indicates a connection issue
type ConnectionError struct {
	ClientError
	Endpoint string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error (%s): %s", e.Endpoint, e.ClientError.Error())
}

// TimeoutError indicates a call that never received a response within its
// per-call window, as distinct from a server that answered with an error.
type TimeoutError struct {
	ClientError
	Method  string
	Timeout time.Duration
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %v waiting for %s", e.Timeout, e.Method)
}

// ServerError represents an error envelope returned by the server for a
// specific call.
type ServerError struct {
	ClientError
	Method string
	Code   protocol.ErrorCode
	Data   interface{}
}

// Error implements the error interface
func (e *ServerError) Error() string {
	return fmt.Sprintf("server error during %s: code=%d (%s): %s", e.Method, e.Code, e.Code, e.Message)
}

// NewConnectionError creates a new ConnectionError
func NewConnectionError(endpoint, message string, cause error) error {
	return &ConnectionError{
		ClientError: ClientError{Message: message, Cause: cause},
		Endpoint:    endpoint,
	}
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(method string, timeout time.Duration) error {
	return &TimeoutError{
		ClientError: ClientError{Message: "call timed out", Cause: ErrRequestTimeout},
		Method:      method,
		Timeout:     timeout,
	}
}

// NewServerError creates a new ServerError from an error payload
func NewServerError(method string, payload *protocol.ErrorPayload) error {
	return &ServerError{
		ClientError: ClientError{Message: payload.Message, Cause: ErrServerError},
		Method:      method,
		Code:        payload.Code,
		Data:        payload.Data,
	}
}

// IsTimeoutError checks if an error is a timeout error
func IsTimeoutError(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr) || errors.Is(err, ErrRequestTimeout)
}

// IsConnectionError checks if an error is a connection error
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr) || errors.Is(err, ErrNotConnected) || errors.Is(err, ErrConnectionLost)
}

// IsServerError checks if an error is a server-reported error
func IsServerError(err error) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr) || errors.Is(err, ErrServerError)
}

// ServerErrorCode extracts the error code from a server-reported error.
// The second return is false when err carries no code.
func ServerErrorCode(err error) (protocol.ErrorCode, bool) {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr.Code, true
	}
	return 0, false
}

// Package errors provides structured error handling for the CIAM console
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ErrorCode represents an application error code
type ErrorCode string

const (
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrBadRequest ErrorCode = "BAD_REQUEST"
	ErrTimeout    ErrorCode = "TIMEOUT"

	// Configuration errors are fatal at startup
	ErrConfiguration ErrorCode = "CONFIGURATION_ERROR"

	// Directory errors are surfaced to the operator and never retried
	ErrDirectoryRequest ErrorCode = "DIRECTORY_REQUEST_ERROR"
)

// RemoteError is implemented by errors that carry a diagnostic from the directory service
type RemoteError interface {
	error
	RemoteCode() string
	RemoteMessage() string
	HTTPStatus() int
}

// AppError represents a structured application error
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	StatusCode int                    `json:"-"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Err        error                  `json:"-"` // Original error for logging
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the original error
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithMetadata adds metadata to the error
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an existing error into an AppError
func Wrap(err error, code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// Internal creates an internal server error
func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       ErrInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// NotFound creates a not found error
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       ErrNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return &AppError{
		Code:       ErrBadRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// Configuration reports required settings that are missing
func Configuration(missing ...string) *AppError {
	err := &AppError{
		Code:       ErrConfiguration,
		Message:    "Directory configuration is missing",
		StatusCode: http.StatusInternalServerError,
	}
	if len(missing) > 0 {
		err.Details = "required: " + strings.Join(missing, ", ")
		err.WithMetadata("missing", missing)
	}
	return err
}

// DirectoryRequest wraps a failed directory round trip. Deadline expiry is
// reported with a gateway-timeout status but keeps the directory error code.
func DirectoryRequest(operation string, err error) *AppError {
	appErr := &AppError{
		Code:       ErrDirectoryRequest,
		Message:    fmt.Sprintf("Directory request failed: %s", operation),
		StatusCode: http.StatusBadGateway,
		Err:        err,
	}
	appErr.WithMetadata("operation", operation)

	var remote RemoteError
	switch {
	case stderrors.As(err, &remote):
		appErr.Details = remote.RemoteMessage()
		if remote.RemoteCode() != "" {
			appErr.WithMetadata("remote_code", remote.RemoteCode())
		}
		appErr.WithMetadata("remote_status", remote.HTTPStatus())
	case stderrors.Is(err, context.DeadlineExceeded):
		appErr.Details = "request timed out"
		appErr.StatusCode = http.StatusGatewayTimeout
	case err != nil:
		appErr.Details = err.Error()
	}
	return appErr
}

// ErrorResponse is the JSON response structure for errors
type ErrorResponse struct {
	Error     ErrorCode              `json:"error"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// HandleError sends an error response to the client
func HandleError(c *gin.Context, err error) {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		appErr = Internal("An unexpected error occurred", err)
	}

	requestID, _ := c.Get("request_id")
	reqIDStr, _ := requestID.(string)

	c.JSON(appErr.StatusCode, ErrorResponse{
		Error:     appErr.Code,
		Message:   appErr.Message,
		Details:   appErr.Details,
		Metadata:  appErr.Metadata,
		RequestID: reqIDStr,
	})
}

// IsErrorCode checks if an error, or any error it wraps, has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetStatusCode returns the HTTP status code for an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

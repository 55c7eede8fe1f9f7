// Package errors is the error vocabulary shared by the visit service and
// its HTTP layer. Every failure a caller can act on carries a stable code;
// the transport picks the status from that code.
package errors

import (
	"errors"
	"net/http"
	"strings"
)

const (
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
	CodeTimeout      = "TIMEOUT"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeInvalidInput = "INVALID_INPUT"
)

var statusByCode = map[string]int{
	CodeNotFound:     http.StatusNotFound,
	CodeValidation:   http.StatusUnprocessableEntity,
	CodeUnauthorized: http.StatusUnauthorized,
	CodeForbidden:    http.StatusForbidden,
	CodeConflict:     http.StatusConflict,
	CodeInternal:     http.StatusInternalServerError,
	CodeTimeout:      http.StatusGatewayTimeout,
	CodeUnavailable:  http.StatusServiceUnavailable,
	CodeInvalidInput: http.StatusBadRequest,
}

type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`

	// status overrides the code's default, e.g. 413 for an oversized body.
	status int
}

func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	if e.status != 0 {
		return e.status
	}
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// New builds an error whose status differs from the code's default.
func New(code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, status: httpStatus}
}

func newError(code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Err: cause}
}

func NotFoundWithID(resource string, id any) *AppError {
	return newError(CodeNotFound, resource+" not found", nil).WithDetails(map[string]any{
		"resource": resource,
		"id":       id,
	})
}

func Validation(message string, details map[string]any) *AppError {
	return newError(CodeValidation, message, nil).WithDetails(details)
}

func InvalidInput(message string) *AppError { return newError(CodeInvalidInput, message, nil) }
func Unauthorized(message string) *AppError { return newError(CodeUnauthorized, message, nil) }
func Forbidden(message string) *AppError    { return newError(CodeForbidden, message, nil) }
func Conflict(message string) *AppError     { return newError(CodeConflict, message, nil) }
func Timeout(message string) *AppError      { return newError(CodeTimeout, message, nil) }

func Internal(message string, err error) *AppError {
	return newError(CodeInternal, message, err)
}

// Unavailable reports a dependency outage; err stays reachable through
// errors.Is for the breaker and retry checks.
func Unavailable(service string, err error) *AppError {
	return newError(CodeUnavailable, service+" is temporarily unavailable", err)
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError unwraps err to the nearest AppError; anything else is
// reported as internal.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}

func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsConflict(err error) bool { return HasCode(err, CodeConflict) }

// Package apperr defines the error taxonomy returned by the round engine and ledger.
package apperr

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error kind.
type Code string

const (
	CodeInvalidInput          Code = "INVALID_INPUT"
	CodeInsufficientFunds     Code = "INSUFFICIENT_FUNDS"
	CodeAccountNotFound       Code = "ACCOUNT_NOT_FOUND"
	CodeRoundNotFound         Code = "ROUND_NOT_FOUND"
	CodeRoundAlreadyResolved  Code = "ROUND_ALREADY_RESOLVED"
	CodeInternalInconsistency Code = "INTERNAL_INCONSISTENCY"
	CodeTransientFailure      Code = "TRANSIENT_FAILURE"
	CodeRateLimited           Code = "RATE_LIMITED"
)

// Sentinels for errors.Is checks. Matching is by code only.
var (
	ErrInvalidInput          = &Error{Code: CodeInvalidInput}
	ErrInsufficientFunds     = &Error{Code: CodeInsufficientFunds}
	ErrAccountNotFound       = &Error{Code: CodeAccountNotFound}
	ErrRoundNotFound         = &Error{Code: CodeRoundNotFound}
	ErrRoundAlreadyResolved  = &Error{Code: CodeRoundAlreadyResolved}
	ErrInternalInconsistency = &Error{Code: CodeInternalInconsistency}
	ErrTransientFailure      = &Error{Code: CodeTransientFailure}
	ErrRateLimited           = &Error{Code: CodeRateLimited}
)

// Error is a domain error with figures the caller can act on.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]any
	Cause    error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func WithMetadata(code Code, message string, metadata map[string]any) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HTTPStatus maps an error kind onto a response status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeInsufficientFunds:
		return http.StatusPaymentRequired
	case CodeAccountNotFound, CodeRoundNotFound:
		return http.StatusNotFound
	case CodeRoundAlreadyResolved:
		return http.StatusConflict
	case CodeTransientFailure:
		return http.StatusServiceUnavailable
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

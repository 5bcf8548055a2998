package domain

import (
	"errors"
	"net/http"
)

// Error codes for business logic errors.
const (
	CodeNotFound      = 1
	CodeAlreadyExists = 2
	CodeValidation    = 3
	CodeInternal      = 4
	CodeStorage       = 5
	CodeTimeout       = 6
	CodeCanceled      = 7
)

// StatusClientClosedRequest is the non-standard status used when the client
// went away before the request finished.
const StatusClientClosedRequest = 499

// Machine-readable error kinds surfaced to API clients.
const (
	KindNotFound        = "NOT_FOUND"
	KindPostNotFound    = "POST_NOT_FOUND"
	KindAlreadyExists   = "ALREADY_EXISTS"
	KindInvalidArgument = "INVALID_ARGUMENT"
	KindStorageFailure  = "STORAGE_FAILURE"
	KindInternal        = "INTERNAL"
	KindTimeout         = "TIMEOUT"
	KindCanceled        = "CANCELED"
	KindRateLimited     = "RATE_LIMITED"
)

// AppError represents a business logic error with a code, a machine-readable
// kind, a message, and an optional wrapped error.
type AppError struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped error for use with errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined business errors.
//
// Match categories with the helper functions (IsNotFound, IsValidation, ...)
// rather than errors.Is: the helpers compare codes, so they also match
// freshly built errors from NewAppError.
var (
	ErrNotFound       = &AppError{Code: CodeNotFound, Kind: KindNotFound, Message: "not found"}
	ErrPostNotFound   = &AppError{Code: CodeNotFound, Kind: KindPostNotFound, Message: "post not found"}
	ErrAlreadyExists  = &AppError{Code: CodeAlreadyExists, Kind: KindAlreadyExists, Message: "already exists"}
	ErrValidation     = &AppError{Code: CodeValidation, Kind: KindInvalidArgument, Message: "validation error"}
	ErrInternal       = &AppError{Code: CodeInternal, Kind: KindInternal, Message: "internal error"}
	ErrStorageFailure = &AppError{Code: CodeStorage, Kind: KindStorageFailure, Message: "storage failure"}
	ErrTimeout        = &AppError{Code: CodeTimeout, Kind: KindTimeout, Message: "request timeout"}
	ErrCanceled       = &AppError{Code: CodeCanceled, Kind: KindCanceled, Message: "request canceled"}
)

// NewAppError creates a new AppError with the given code, message, and wrapped
// error. The kind is derived from the code.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kindForCode(code),
		Message: message,
		Err:     err,
	}
}

// InvalidArgument is shorthand for a CodeValidation error without a cause.
func InvalidArgument(message string) *AppError {
	return NewAppError(CodeValidation, message, nil)
}

func kindForCode(code int) string {
	switch code {
	case CodeNotFound:
		return KindNotFound
	case CodeAlreadyExists:
		return KindAlreadyExists
	case CodeValidation:
		return KindInvalidArgument
	case CodeStorage:
		return KindStorageFailure
	case CodeTimeout:
		return KindTimeout
	case CodeCanceled:
		return KindCanceled
	default:
		return KindInternal
	}
}

// IsNotFound reports whether err is or wraps an AppError with CodeNotFound.
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsAlreadyExists reports whether err is or wraps an AppError with CodeAlreadyExists.
func IsAlreadyExists(err error) bool {
	return hasCode(err, CodeAlreadyExists)
}

// IsValidation reports whether err is or wraps an AppError with CodeValidation.
func IsValidation(err error) bool {
	return hasCode(err, CodeValidation)
}

// IsInternal reports whether err is or wraps an AppError with CodeInternal.
func IsInternal(err error) bool {
	return hasCode(err, CodeInternal)
}

// IsStorageFailure reports whether err is or wraps an AppError with CodeStorage.
func IsStorageFailure(err error) bool {
	return hasCode(err, CodeStorage)
}

// IsTimeout reports whether err is or wraps an AppError with CodeTimeout.
func IsTimeout(err error) bool {
	return hasCode(err, CodeTimeout)
}

// IsCanceled reports whether err is or wraps an AppError with CodeCanceled.
func IsCanceled(err error) bool {
	return hasCode(err, CodeCanceled)
}

// KindOf returns the kind of the first *AppError in err's chain, or
// KindInternal for anything else.
func KindOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind != "" {
		return appErr.Kind
	}
	return KindInternal
}

func hasCode(err error, code int) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// HTTPStatusCode maps an error to an HTTP status code.
// If the error is an *AppError, the code is mapped; otherwise http.StatusInternalServerError is returned.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if err != nil && errors.As(err, &appErr) {
		switch appErr.Code {
		case CodeNotFound:
			return http.StatusNotFound
		case CodeAlreadyExists:
			return http.StatusConflict
		case CodeValidation:
			return http.StatusBadRequest
		case CodeTimeout:
			return http.StatusRequestTimeout
		case CodeCanceled:
			return StatusClientClosedRequest
		case CodeInternal, CodeStorage:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

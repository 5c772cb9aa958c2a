package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies application errors so handlers can pick the
// right HTTP status without string matching.
type ErrorKind string

const (
	ErrKindValidation ErrorKind = "validation"
	ErrKindConflict   ErrorKind = "conflict"
	ErrKindNotFound   ErrorKind = "not_found"
	ErrKindProvider   ErrorKind = "provider"
	ErrKindSignature  ErrorKind = "signature"
	ErrKindDomain     ErrorKind = "domain"
	ErrKindInternal   ErrorKind = "internal"
)

type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewValidationError(message string) *AppError {
	return &AppError{Kind: ErrKindValidation, Message: message}
}

func NewConflictError(message string) *AppError {
	return &AppError{Kind: ErrKindConflict, Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Kind: ErrKindNotFound, Message: message}
}

func NewProviderError(message string, err error) *AppError {
	return &AppError{Kind: ErrKindProvider, Message: message, Err: err}
}

func NewSignatureError(message string) *AppError {
	return &AppError{Kind: ErrKindSignature, Message: message}
}

func NewDomainError(message string) *AppError {
	return &AppError{Kind: ErrKindDomain, Message: message}
}

func NewInternalError(message string, err error) *AppError {
	return &AppError{Kind: ErrKindInternal, Message: message, Err: err}
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// HTTPStatus maps an error to the HTTP status code the API returns
// for it. Anything that is not an AppError is treated as internal.
func HTTPStatus(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Kind {
	case ErrKindValidation:
		return http.StatusBadRequest
	case ErrKindConflict:
		return http.StatusConflict
	case ErrKindNotFound:
		return http.StatusNotFound
	case ErrKindProvider:
		return http.StatusBadGateway
	case ErrKindSignature:
		return http.StatusUnauthorized
	case ErrKindDomain:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

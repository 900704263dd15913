package common

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDuplicateIdentity   = errors.New("duplicate identity")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrNotFound            = errors.New("requested resource not found")
	ErrAlreadyAssigned     = errors.New("role already assigned")
	ErrNotAssigned         = errors.New("role not assigned")
	ErrInternalConsistency = errors.New("internal consistency error")
	ErrStorageUnavailable  = errors.New("storage unavailable")

	// ErrConflict is the store-level unique-constraint violation. Services
	// translate it into ErrDuplicateIdentity or ErrAlreadyAssigned.
	ErrConflict = errors.New("resource conflict")

	ErrUnauthorized    = errors.New("unauthorized access")
	ErrForbidden       = errors.New("forbidden access")
	ErrBadRequest      = errors.New("bad request")
	ErrValidation      = errors.New("validation failed")
	ErrTooManyAttempts = errors.New("too many attempts")
)

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicateIdentity), errors.Is(err, ErrAlreadyAssigned),
		errors.Is(err, ErrNotAssigned), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ClientMessage returns the fixed text a client may see for err. Wrapped
// detail (driver messages, field values, keys) is never included.
func ClientMessage(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid credentials"
	case errors.Is(err, ErrDuplicateIdentity):
		return "email or username already registered"
	case errors.Is(err, ErrAlreadyAssigned):
		return "role already assigned to user"
	case errors.Is(err, ErrNotAssigned):
		return "role not assigned to user"
	case errors.Is(err, ErrNotFound):
		return "resource not found"
	case errors.Is(err, ErrConflict):
		return "resource conflict"
	case errors.Is(err, ErrTooManyAttempts):
		return "too many login attempts, try again later"
	case errors.Is(err, ErrUnauthorized):
		return "authentication required"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrValidation):
		return "invalid request"
	case errors.Is(err, ErrStorageUnavailable):
		return "service temporarily unavailable"
	default:
		return "internal error"
	}
}

// ValidationError lists the offending request fields. Field names only; values
// are never echoed back.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %v", e.Fields)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

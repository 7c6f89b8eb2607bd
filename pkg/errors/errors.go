package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrModelUnavailable    = errors.New("reranking model unavailable")
	ErrInvalidQuery        = errors.New("invalid query")
	ErrScoringFailure      = errors.New("scoring failure")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrMissingIdentifier   = errors.New("item has no identifier")
	ErrItemNotFound        = errors.New("item not found")
	ErrCircuitOpen         = errors.New("circuit breaker is open")
	ErrInternal            = errors.New("internal error")
	ErrTimeout             = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Is reports whether any error in err's tree matches target. It saves
// callers that import this package from also importing the stdlib one.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidQuery), errors.Is(err, ErrMissingIdentifier):
		return http.StatusBadRequest
	case errors.Is(err, ErrProviderUnavailable),
		errors.Is(err, ErrModelUnavailable),
		errors.Is(err, ErrCircuitOpen),
		errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes missing Redis keys.
	RedisNotFoundMessage = "not found"
)

// Pipeline failure taxonomy. Component-local failures (tracking, retrieval,
// summarization) are recovered in place with a rationale note; classifier and
// final-generation failures propagate to the caller wrapped around these
// sentinels.
var (
	// ErrConfiguration marks fatal configuration problems, e.g. an empty
	// intent catalog. Callers must not retry without fixing config.
	ErrConfiguration = errors.New("configuration error")
	// ErrClassificationUnavailable marks an unreachable generation service or
	// unparsable classifier output. Callers may retry once with backoff or
	// degrade to unknown-intent routing.
	ErrClassificationUnavailable = errors.New("classification unavailable")
	// ErrTrackingUnavailable marks provider errors, missing credentials, or a
	// poll ceiling reached without resolution. Never fatal.
	ErrTrackingUnavailable = errors.New("tracking unavailable")
	// ErrRetrievalUnavailable marks embedding or index failures. The reply
	// proceeds without policy guidance.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrGenerationFailure marks a failed final reply generation. Fatal to the
	// call; the run is recorded as failed rather than returning an empty reply.
	ErrGenerationFailure = errors.New("generation failure")
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Configuration wraps err as a fatal configuration error.
func Configuration(err error) error {
	return fmt.Errorf("%w: %w", ErrConfiguration, err)
}

// Classification wraps err as a classification availability failure.
func Classification(err error) error {
	return fmt.Errorf("%w: %w", ErrClassificationUnavailable, err)
}

// Tracking wraps err as a non-fatal tracking failure.
func Tracking(err error) error {
	return fmt.Errorf("%w: %w", ErrTrackingUnavailable, err)
}

// Retrieval wraps err as a non-fatal retrieval failure.
func Retrieval(err error) error {
	return fmt.Errorf("%w: %w", ErrRetrievalUnavailable, err)
}

// Generation wraps err as a fatal reply generation failure.
func Generation(err error) error {
	return fmt.Errorf("%w: %w", ErrGenerationFailure, err)
}

// StatusFor maps a pipeline error to an HTTP status for the serving surface.
func StatusFor(err error) int {
	var app *AppError
	if errors.As(err, &app) && app.Status != 0 {
		return app.Status
	}
	switch {
	case errors.Is(err, ErrConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrClassificationUnavailable),
		errors.Is(err, ErrGenerationFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

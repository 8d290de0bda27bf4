// Package apperrors defines structured application error types, allowing for
// a clear distinction between error classes (configuration, solve, server)
// and for carrying the underlying cause.
//
// All error types implement Unwrap so that errors.Is and errors.As see the
// eigenvalue engine's own error values through them.
package apperrors

import (
	"context"
	"errors"
	"fmt"

	"github.com/agbru/keffcalc/internal/eigen"
)

// Application exit codes define the standard exit statuses for the application.
const (
	ExitSuccess             = 0   // Successful execution.
	ExitErrorGeneric        = 1   // A generic failure.
	ExitErrorTimeout        = 2   // The operation timed out.
	ExitErrorMismatch       = 3   // Solvers disagree on the eigenvalue.
	ExitErrorConfig         = 4   // Invalid flags, environment or deck.
	ExitErrorNonConvergence = 5   // The iteration budget was exhausted.
	ExitErrorSolver         = 6   // A linear solve failed or diverged.
	ExitErrorDegenerate     = 7   // The fission source vanished.
	ExitErrorCanceled       = 130 // Canceled, e.g. by SIGINT.
)

// ConfigError represents a user configuration error, such as invalid flags,
// environment values or an unreadable problem deck.
type ConfigError struct {
	// Message explains the specific configuration error.
	Message string
}

// Error returns the error message for a ConfigError.
func (e ConfigError) Error() string { return e.Message }

// NewConfigError creates a new ConfigError with a formatted message.
//
// Parameters:
//   - format: A format string (see fmt.Sprintf).
//   - a: Arguments to be formatted into the string.
//
// Returns:
//   - error: A new ConfigError instance containing the formatted message.
func NewConfigError(format string, a ...any) error {
	return ConfigError{Message: fmt.Sprintf(format, a...)}
}

// SolveError wraps a failed eigenvalue solve together with the problem and
// linear solver that produced it.
type SolveError struct {
	// Problem is the name of the problem being solved.
	Problem string
	// Solver is the name of the linear solver.
	Solver string
	// Cause is the engine error that ended the run.
	Cause error
}

// Error returns the problem, solver and cause.
func (e SolveError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Problem, e.Solver, e.Cause)
}

// Unwrap returns the original cause.
func (e SolveError) Unwrap() error { return e.Cause }

// ServerError represents errors that occur in the HTTP server component.
type ServerError struct {
	// Message is a descriptive message about the server error.
	Message string
	// Cause is the underlying error, if any.
	Cause error
}

// Error combines the descriptive message and the underlying cause if present.
func (e ServerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e ServerError) Unwrap() error { return e.Cause }

// NewServerError creates a new ServerError with a message and optional cause.
func NewServerError(message string, cause error) error {
	return ServerError{Message: message, Cause: cause}
}

// ValidationError represents an invalid request field, used by the HTTP
// API and the service layer.
type ValidationError struct {
	// Field is the name of the field that failed validation.
	Field string
	// Message describes why validation failed.
	Message string
	// Value is the invalid value (optional, may be nil).
	Value any
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string, value any) error {
	return ValidationError{Field: field, Message: message, Value: value}
}

// WrapError wraps an error with additional context using %w. It returns
// nil if err is nil.
func WrapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// IsContextError checks if the error is a context cancellation or deadline
// exceeded error.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ExitCode maps an error to the process exit status.
//
// Parameters:
//   - err: The error to classify, possibly nil.
//
// Returns:
//   - int: ExitSuccess for nil, otherwise the most specific code.
func ExitCode(err error) int {
	var cfg ConfigError
	var validation ValidationError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, context.DeadlineExceeded):
		return ExitErrorTimeout
	case errors.Is(err, context.Canceled):
		return ExitErrorCanceled
	case errors.Is(err, eigen.ErrNonConvergence):
		return ExitErrorNonConvergence
	case errors.Is(err, eigen.ErrSolverFailure):
		return ExitErrorSolver
	case errors.Is(err, eigen.ErrDegenerateSource):
		return ExitErrorDegenerate
	case errors.As(err, &cfg), errors.As(err, &validation):
		return ExitErrorConfig
	default:
		return ExitErrorGeneric
	}
}

package apperrors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/agbru/keffcalc/internal/eigen"
)

// ColorProvider defines the interface for obtaining terminal color codes.
// This abstraction breaks the import cycle with cli.
type ColorProvider interface {
	Yellow() string
	Reset() string
}

// DefaultColorProvider provides no color codes (for non-terminal output).
type DefaultColorProvider struct{}

func (d DefaultColorProvider) Yellow() string { return "" }
func (d DefaultColorProvider) Reset() string  { return "" }

// HandleSolveError prints a status line describing why a solve failed and
// returns the matching exit code. Engine failures are reported with the
// iteration at which they happened.
//
// Parameters:
//   - err: The error that occurred.
//   - duration: The duration of the solve before it failed.
//   - out: The io.Writer to which the message is written.
//   - colors: Provider for terminal color codes (nil for no colors).
//
// Returns:
//   - int: The appropriate exit code for the error type.
func HandleSolveError(err error, duration time.Duration, out io.Writer, colors ColorProvider) int {
	if err == nil {
		return ExitSuccess
	}
	if colors == nil {
		colors = DefaultColorProvider{}
	}

	msgSuffix := ""
	if duration > 0 {
		msgSuffix = fmt.Sprintf(" after %s%s%s", colors.Yellow(), duration, colors.Reset())
	}

	var (
		failure    *eigen.SolverFailure
		degenerate *eigen.DegenerateSourceError
		budget     *eigen.NonConvergenceError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		fmt.Fprintf(out, "Status: Failure (Timeout). The execution limit was reached%s.\n", msgSuffix)
	case errors.Is(err, context.Canceled):
		fmt.Fprintf(out, "%sStatus: Canceled%s.%s\n", colors.Yellow(), msgSuffix, colors.Reset())
	case errors.As(err, &budget):
		fmt.Fprintf(out, "Status: Not converged. Stopped after %d iterations with relative change %g%s.\n",
			budget.Iterations, budget.RelativeChange, msgSuffix)
	case errors.As(err, &failure):
		fmt.Fprintf(out, "Status: Failure. The %s solver failed at iteration %d: %v\n", failure.Solver, failure.Iteration, failure.Cause)
	case errors.As(err, &degenerate):
		fmt.Fprintf(out, "Status: Failure. The fission source over %q vanished at iteration %d.\n", degenerate.Region, degenerate.Iteration)
	default:
		fmt.Fprintf(out, "Status: Failure. An unexpected error occurred: %v\n", err)
	}
	return ExitCode(err)
}

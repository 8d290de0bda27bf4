package eigen

import (
	"errors"
	"fmt"

	"github.com/agbru/keffcalc/internal/physics"
)

var (
	// ErrSolverFailure matches every *SolverFailure.
	ErrSolverFailure = errors.New("eigen: linear solve failed")
	// ErrDegenerateSource matches every *DegenerateSourceError.
	ErrDegenerateSource = errors.New("eigen: degenerate fission source")
	// ErrNonConvergence matches every *NonConvergenceError.
	ErrNonConvergence = errors.New("eigen: iteration budget exhausted")
	// ErrNotInitialized is returned by Step and Run before Initialize.
	ErrNotInitialized = errors.New("eigen: engine not initialized")
	// ErrTerminalState is returned when stepping a converged or failed engine.
	ErrTerminalState = errors.New("eigen: engine is in a terminal state")
	// ErrInvalidGuess is returned by Initialize for malformed guesses.
	ErrInvalidGuess = errors.New("eigen: invalid initial guess")
	// ErrInvalidOptions is returned for malformed setups and run options.
	ErrInvalidOptions = errors.New("eigen: invalid options")
	// ErrNonFinite is the cause of a SolverFailure whose solution carries NaN or Inf.
	ErrNonFinite = errors.New("eigen: solution is not finite")
)

// SolverFailure reports a linear solve that produced no usable solution.
// It is fatal to the run.
type SolverFailure struct {
	Iteration int
	Solver    string
	Cause     error
}

func (e *SolverFailure) Error() string {
	return fmt.Sprintf("eigen: %s solver failed at iteration %d: %v", e.Solver, e.Iteration, e.Cause)
}

// Unwrap returns the solver's own error.
func (e *SolverFailure) Unwrap() error { return e.Cause }

// Is reports whether target is ErrSolverFailure.
func (e *SolverFailure) Is(target error) bool { return target == ErrSolverFailure }

// DegenerateSourceError reports a zero fission integral over the active
// region, which leaves the eigenvalue update undefined.
type DegenerateSourceError struct {
	Iteration int
	Region    physics.RegionTag
}

func (e *DegenerateSourceError) Error() string {
	return fmt.Sprintf("eigen: fission source over region %q vanished at iteration %d", e.Region, e.Iteration)
}

// Is reports whether target is ErrDegenerateSource.
func (e *DegenerateSourceError) Is(target error) bool { return target == ErrDegenerateSource }

// NonConvergenceError reports an exhausted iteration budget. The engine
// stays usable and a later Run with a larger budget resumes the iteration.
type NonConvergenceError struct {
	Iterations     int
	Tolerance      float64
	RelativeChange float64
	K              float64
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf("eigen: no convergence after %d iterations (k=%.8g, rel. change %g > tol %g)",
		e.Iterations, e.K, e.RelativeChange, e.Tolerance)
}

// Is reports whether target is ErrNonConvergence.
func (e *NonConvergenceError) Is(target error) bool { return target == ErrNonConvergence }

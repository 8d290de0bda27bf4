// Package linsolve provides the linear solvers used by the eigenvalue
// engine: a direct LU solver and an iterative successive over-relaxation
// solver, together with a registry to select them by name.
package linsolve

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/agbru/keffcalc/internal/eigen"
)

var (
	// ErrSingular is returned when the system matrix is singular or has a
	// zero diagonal entry.
	ErrSingular = errors.New("linsolve: singular matrix")
	// ErrNotConverged is returned when an iterative method exhausts its budget.
	ErrNotConverged = errors.New("linsolve: iterative solve did not converge")
	// ErrInvalidSystem is returned for nil or inconsistently sized systems.
	ErrInvalidSystem = errors.New("linsolve: invalid system")
)

func checkSystem(sys *eigen.LinearSystem) (int, error) {
	if sys == nil || sys.Matrix == nil || sys.RHS == nil {
		return 0, fmt.Errorf("%w: missing matrix or right-hand side", ErrInvalidSystem)
	}
	r, c := sys.Matrix.Dims()
	if r != c || r != sys.RHS.Len() {
		return 0, fmt.Errorf("%w: %dx%d matrix with %d right-hand side entries", ErrInvalidSystem, r, c, sys.RHS.Len())
	}
	return r, nil
}

// LU solves systems with an LU factorization with partial pivoting. The
// factorization is computed once per system generation and reused for
// right-hand-side-only systems.
type LU struct {
	lu         mat.LU
	generation uint64
	matrix     *mat.Dense
	factorized bool
}

// NewLU returns a direct solver.
func NewLU() *LU { return &LU{} }

// Name implements eigen.Solver.
func (s *LU) Name() string { return "lu" }

// Factorized reports whether a factorization is cached.
func (s *LU) Factorized() bool { return s.factorized }

// Solve implements eigen.Solver.
func (s *LU) Solve(_ context.Context, sys *eigen.LinearSystem) ([]float64, error) {
	if _, err := checkSystem(sys); err != nil {
		return nil, err
	}
	if !s.factorized || s.generation != sys.Generation || s.matrix != sys.Matrix {
		s.lu.Factorize(sys.Matrix)
		if math.IsInf(s.lu.Cond(), 1) {
			s.factorized = false
			return nil, ErrSingular
		}
		s.generation, s.matrix, s.factorized = sys.Generation, sys.Matrix, true
	}

	var x mat.VecDense
	if err := s.lu.SolveVecTo(&x, false, sys.RHS); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 0) || math.IsNaN(float64(cond)) {
			return nil, fmt.Errorf("%w: %v", ErrSingular, err)
		}
		log.Warn().Float64("condition", float64(cond)).Msg("linsolve: ill-conditioned system")
	}
	out := x.RawVector().Data
	if floats.HasNaN(out) {
		return nil, fmt.Errorf("%w: solution contains NaN", ErrSingular)
	}
	return out, nil
}

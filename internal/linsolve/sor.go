package linsolve

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/agbru/keffcalc/internal/eigen"
)

// SOROptions configures the successive over-relaxation solver.
type SOROptions struct {
	// Omega is the relaxation factor, in (0, 2).
	Omega float64
	// Tolerance bounds the relative residual ‖b − Ax‖∞ / ‖b‖∞.
	Tolerance float64
	// MaxSweeps caps the number of sweeps per solve.
	MaxSweeps int
}

// DefaultSOROptions returns the options used by the registry.
func DefaultSOROptions() SOROptions {
	return SOROptions{Omega: 1.5, Tolerance: 1e-10, MaxSweeps: 100000}
}

// residualEvery is the number of sweeps between residual checks.
const residualEvery = 10

// SOR solves systems by successive over-relaxation over the nonzero pattern
// of the matrix. Each solve starts from the previous solution, which is close
// to the new one once the power iteration settles. The method converges for
// the downscatter-only group systems, whose diagonal blocks are symmetric
// positive definite and whose coupling blocks lie below the diagonal.
type SOR struct {
	opts SOROptions

	generation uint64
	rows       [][]int
	diag       []float64
	x          []float64
	sweeps     int
}

// NewSOR returns an iterative solver. Invalid options are replaced by defaults.
func NewSOR(opts SOROptions) *SOR {
	def := DefaultSOROptions()
	if !(opts.Omega > 0 && opts.Omega < 2) {
		opts.Omega = def.Omega
	}
	if !(opts.Tolerance > 0) {
		opts.Tolerance = def.Tolerance
	}
	if opts.MaxSweeps <= 0 {
		opts.MaxSweeps = def.MaxSweeps
	}
	return &SOR{opts: opts}
}

// Name implements eigen.Solver.
func (s *SOR) Name() string { return "sor" }

// Options returns the effective options.
func (s *SOR) Options() SOROptions { return s.opts }

// LastSweeps returns the number of sweeps of the last solve.
func (s *SOR) LastSweeps() int { return s.sweeps }

// Solve implements eigen.Solver. ctx is checked between residual checks.
func (s *SOR) Solve(ctx context.Context, sys *eigen.LinearSystem) ([]float64, error) {
	n, err := checkSystem(sys)
	if err != nil {
		return nil, err
	}
	if s.rows == nil || s.generation != sys.Generation || len(s.diag) != n {
		if err := s.analyze(sys); err != nil {
			return nil, err
		}
	}
	if len(s.x) != n {
		s.x = make([]float64, n)
	}

	a := sys.Matrix
	b := sys.RHS.RawVector()
	rhs := make([]float64, n)
	for i := range rhs {
		rhs[i] = b.Data[i*b.Inc]
	}
	bnorm := floats.Norm(rhs, math.Inf(1))
	if bnorm == 0 {
		for i := range s.x {
			s.x[i] = 0
		}
		s.sweeps = 0
		return append([]float64(nil), s.x...), nil
	}

	x := s.x
	omega := s.opts.Omega
	for sweep := 1; sweep <= s.opts.MaxSweeps; sweep++ {
		for i, cols := range s.rows {
			sigma := rhs[i]
			for _, j := range cols {
				sigma -= a.At(i, j) * x[j]
			}
			x[i] += omega * (sigma/s.diag[i] - x[i])
		}
		if sweep%residualEvery != 0 && sweep != s.opts.MaxSweeps {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r := s.residual(a, rhs, x) / bnorm
		if math.IsNaN(r) || math.IsInf(r, 0) {
			s.x = nil
			return nil, fmt.Errorf("%w: diverged after %d sweeps", ErrNotConverged, sweep)
		}
		if r < s.opts.Tolerance {
			s.sweeps = sweep
			return append([]float64(nil), x...), nil
		}
	}
	s.sweeps = s.opts.MaxSweeps
	return nil, fmt.Errorf("%w: %d sweeps (ω=%g, tol=%g)", ErrNotConverged, s.opts.MaxSweeps, omega, s.opts.Tolerance)
}

// analyze extracts the off-diagonal nonzero pattern and the diagonal.
func (s *SOR) analyze(sys *eigen.LinearSystem) error {
	n, _ := sys.Matrix.Dims()
	rows := make([][]int, n)
	diag := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := sys.Matrix.At(i, j)
			switch {
			case i == j:
				diag[i] = v
			case v != 0:
				rows[i] = append(rows[i], j)
			}
		}
		if diag[i] == 0 {
			return fmt.Errorf("%w: zero diagonal entry in row %d", ErrSingular, i)
		}
	}
	s.rows, s.diag, s.generation = rows, diag, sys.Generation
	return nil
}

func (s *SOR) residual(a mat.Matrix, rhs, x []float64) float64 {
	worst := 0.0
	for i, cols := range s.rows {
		r := rhs[i] - s.diag[i]*x[i]
		for _, j := range cols {
			r -= a.At(i, j) * x[j]
		}
		worst = math.Max(worst, math.Abs(r))
	}
	return worst
}

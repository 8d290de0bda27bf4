package fem

import (
	"gonum.org/v1/gonum/floats"
)

// Solution is a finite-element function: a coefficient vector over a Space.
// It implements eigen.Field and is never mutated after construction.
type Solution struct {
	space  *Space
	coeffs []float64
}

// NewSolution copies coeffs into a new solution. The length must match the
// number of degrees of freedom of space.
func NewSolution(space *Space, coeffs []float64) *Solution {
	return &Solution{space: space, coeffs: append([]float64(nil), coeffs...)}
}

// Space returns the space of the solution.
func (s *Solution) Space() *Space { return s.space }

// Value evaluates the solution at reference coordinate xi of element e.
func (s *Solution) Value(e int, xi float64) float64 {
	v := 0.0
	for i := 0; i < s.space.LocalDofs(); i++ {
		v += s.coeffs[s.space.Dof(e, i)] * s.space.Shape(i, xi)
	}
	return v
}

// Degree returns the polynomial order of the space.
func (s *Solution) Degree(int) int { return s.space.order }

// At evaluates the solution at physical coordinate x. ok is false outside
// the mesh.
func (s *Solution) At(x float64) (v float64, ok bool) {
	e, xi, ok := s.space.mesh.Locate(x)
	if !ok {
		return 0, false
	}
	return s.Value(e, xi), true
}

// Sample evaluates the solution at n equispaced points spanning the mesh,
// including both ends. n below 2 is raised to 2.
func (s *Solution) Sample(n int) (xs, values []float64) {
	if n < 2 {
		n = 2
	}
	a, b := s.space.mesh.Bounds()
	xs = floats.Span(make([]float64, n), a, b)
	values = make([]float64, n)
	for i, x := range xs {
		values[i], _ = s.At(x)
	}
	return xs, values
}

// Coefficients returns a copy of the coefficient vector.
func (s *Solution) Coefficients() []float64 {
	return append([]float64(nil), s.coeffs...)
}

// Max returns the largest coefficient, which for Lagrange elements is
// the largest nodal value.
func (s *Solution) Max() float64 { return floats.Max(s.coeffs) }

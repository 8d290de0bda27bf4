// Package eigen implements the power-iteration k-eigenvalue solver for
// multi-group neutron diffusion. The Engine alternates between solving the
// fixed-source diffusion system assembled by a Backend and updating the
// multiplication factor from the ratio of successive fission integrals, until
// the relative change of k drops below a tolerance.
//
// The package does not discretize anything itself. Spatial discretization,
// assembly and linear algebra are reached through the Backend and Solver
// interfaces; fluxes and sources are exchanged as lazily evaluated Fields.
package eigen

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/agbru/keffcalc/internal/physics"
)

// Field is a scalar field over a discretized domain, evaluated element by
// element at reference coordinates ξ ∈ [-1, 1].
type Field interface {
	// Value returns the field at reference coordinate xi of element e.
	Value(e int, xi float64) float64
	// Degree returns the polynomial degree of the field on element e.
	Degree(e int) int
}

// Domain is the discretized spatial domain seen by the region integrator.
type Domain interface {
	// NumElements returns the number of elements.
	NumElements() int
	// Region returns the region tag of element e.
	Region(e int) physics.RegionTag
	// Map returns the physical position of xi on element e and dx/dξ.
	Map(e int, xi float64) (x, jac float64)
	// Weight returns the geometric volume weight at position x.
	Weight(x float64) float64
	// WeightDegree returns the polynomial degree of Weight.
	WeightDegree() int
}

// FissionData resolves the production cross-section ν·Σf per region and group.
type FissionData interface {
	NuSigmaF(tag physics.RegionTag, g int) float64
}

// LinearSystem is an assembled matrix and right-hand side. Generation changes
// only when the matrix is reassembled, so solvers may key factorizations on it.
type LinearSystem struct {
	Matrix     *mat.Dense
	RHS        *mat.VecDense
	Generation uint64
}

// Size returns the number of unknowns.
func (s *LinearSystem) Size() int {
	if s == nil || s.RHS == nil {
		return 0
	}
	return s.RHS.Len()
}

// Backend discretizes the coupled group equations.
type Backend interface {
	// Groups returns the number of energy groups G.
	Groups() int
	// Assemble builds the system whose fission right-hand side is derived from
	// prev and scaled by 1/k. With full == false only the right-hand side is
	// recomputed and the matrix of the previous call is returned unchanged.
	Assemble(ctx context.Context, prev []Field, k float64, full bool) (*LinearSystem, error)
	// Partition splits a flat solution vector into G group fields.
	Partition(x []float64) ([]Field, error)
}

// Solver solves an assembled linear system.
type Solver interface {
	// Name returns the display name of the solver.
	Name() string
	// Solve returns the solution vector, or an error when the system is
	// singular or the method did not converge.
	Solve(ctx context.Context, sys *LinearSystem) ([]float64, error)
}

// ConstantField is a spatially uniform field.
type ConstantField float64

// Value implements Field.
func (c ConstantField) Value(int, float64) float64 { return float64(c) }

// Degree implements Field.
func (c ConstantField) Degree(int) int { return 0 }

// UniformGuess returns G constant fields with the given value.
func UniformGuess(groups int, value float64) []Field {
	fields := make([]Field, groups)
	for g := range fields {
		fields[g] = ConstantField(value)
	}
	return fields
}

package fem

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/agbru/keffcalc/internal/eigen"
	"github.com/agbru/keffcalc/internal/mesh"
	"github.com/agbru/keffcalc/internal/physics"
)

var (
	// ErrNotAssembled is returned for a right-hand-side-only assembly
	// requested before any full assembly.
	ErrNotAssembled = errors.New("fem: matrix not assembled")
	// ErrUnknownMarker is returned when a boundary marker has no condition.
	ErrUnknownMarker = errors.New("fem: no boundary condition for marker")
	// ErrSize is returned when a vector or field set has the wrong size.
	ErrSize = errors.New("fem: size mismatch")
)

// Backend assembles the coupled group equations
//
//	∫ D_g φ_g' v' w + ∫ Σr_g φ_g v w − Σ_{g'≠g} ∫ Σs_{g'→g} φ_{g'} v w + α φ_g v w|_∂
//	    = χ_g / k ∫ S(φ_prev) v w
//
// into one dense system whose unknowns are the group coefficient vectors
// laid out one after the other. w is the geometric volume weight and α the
// Robin coefficient of each boundary (½ for vacuum, 0 for reflection).
type Backend struct {
	mesh    *mesh.Mesh
	table   *physics.Table
	spaces  []*Space
	offsets []int
	size    int

	// Resolved once at construction.
	alpha     [2]float64
	materials []*physics.Material
	fissile   []bool

	matrix     *mat.Dense
	generation uint64
}

// NewBackend resolves boundary conditions and materials and prepares one
// Lagrange space per group.
//
// Parameters:
//   - m: The mesh.
//   - table: The physical parameters; every region of m must be present.
//   - orders: The polynomial order of each group.
//   - conditions: The condition applied at each boundary marker of m.
//
// Returns:
//   - *Backend: A backend ready for full assembly.
//   - error: ErrInvalidOrder, ErrUnknownMarker, ErrSize or a physics lookup error.
func NewBackend(m *mesh.Mesh, table *physics.Table, orders []int, conditions map[physics.BoundaryMarker]physics.BoundaryCondition) (*Backend, error) {
	if len(orders) != table.Groups() {
		return nil, fmt.Errorf("%w: %d orders for %d groups", ErrSize, len(orders), table.Groups())
	}
	b := &Backend{
		mesh:      m,
		table:     table,
		spaces:    make([]*Space, len(orders)),
		offsets:   make([]int, len(orders)+1),
		materials: make([]*physics.Material, m.NumElements()),
		fissile:   make([]bool, m.NumElements()),
	}
	for g, p := range orders {
		s, err := NewSpace(m, p)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", g, err)
		}
		b.spaces[g] = s
		b.offsets[g+1] = b.offsets[g] + s.NumDofs()
	}
	b.size = b.offsets[len(orders)]

	for side := mesh.Left; side <= mesh.Right; side++ {
		marker := m.Marker(side)
		bc, ok := conditions[marker]
		if !ok || bc == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMarker, marker)
		}
		b.alpha[side] = bc.Alpha()
	}
	for e := 0; e < m.NumElements(); e++ {
		material, err := table.Material(m.Region(e))
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", e, err)
		}
		b.materials[e] = material
		b.fissile[e] = table.Region(material.Name).Fissile()
	}
	return b, nil
}

// Groups returns the number of energy groups.
func (b *Backend) Groups() int { return len(b.spaces) }

// Size returns the number of unknowns of the coupled system.
func (b *Backend) Size() int { return b.size }

// Space returns the space of group g.
func (b *Backend) Space(g int) *Space { return b.spaces[g] }

// Offset returns the index of the first unknown of group g.
func (b *Backend) Offset(g int) int { return b.offsets[g] }

// Mesh returns the mesh.
func (b *Backend) Mesh() *mesh.Mesh { return b.mesh }

// Table returns the physical parameters.
func (b *Backend) Table() *physics.Table { return b.table }

// Assemble implements eigen.Backend. A full assembly rebuilds the matrix
// and increments the generation; otherwise only the fission right-hand
// side is computed and the previous matrix is returned as is.
func (b *Backend) Assemble(_ context.Context, prev []eigen.Field, k float64, full bool) (*eigen.LinearSystem, error) {
	if len(prev) != len(b.spaces) {
		return nil, fmt.Errorf("%w: %d fields for %d groups", ErrSize, len(prev), len(b.spaces))
	}
	if !(k > 0) || math.IsInf(k, 0) {
		return nil, fmt.Errorf("fem: eigenvalue %g must be finite and positive", k)
	}
	if full {
		b.assembleMatrix()
	} else if b.matrix == nil {
		return nil, ErrNotAssembled
	}
	return &eigen.LinearSystem{
		Matrix:     b.matrix,
		RHS:        b.assembleSource(prev, k),
		Generation: b.generation,
	}, nil
}

func (b *Backend) assembleMatrix() {
	a := mat.NewDense(b.size, b.size, nil)
	maxOrder := 0
	for _, s := range b.spaces {
		maxOrder = max(maxOrder, s.order)
	}
	// Piecewise constant data: exact for products of two basis functions
	// and the volume weight.
	rule := mesh.RuleForDegree(2*maxOrder + b.mesh.WeightDegree())

	for e := 0; e < b.mesh.NumElements(); e++ {
		m := b.materials[e]
		for q, xi := range rule.Points {
			x, jac := b.mesh.Map(e, xi)
			w := rule.Weights[q] * jac * b.mesh.Weight(x)
			for g, sg := range b.spaces {
				for i := 0; i < sg.LocalDofs(); i++ {
					row := b.offsets[g] + sg.Dof(e, i)
					vi, dvi := sg.Shape(i, xi), sg.ShapeDeriv(i, xi)/jac
					for j := 0; j < sg.LocalDofs(); j++ {
						col := b.offsets[g] + sg.Dof(e, j)
						uj, duj := sg.Shape(j, xi), sg.ShapeDeriv(j, xi)/jac
						a.Set(row, col, a.At(row, col)+(m.D[g]*dvi*duj+m.SigmaR[g]*vi*uj)*w)
					}
					for gp, sp := range b.spaces {
						sigma := m.Scattering(g, gp)
						if sigma == 0 {
							continue
						}
						for j := 0; j < sp.LocalDofs(); j++ {
							col := b.offsets[gp] + sp.Dof(e, j)
							a.Set(row, col, a.At(row, col)-sigma*vi*sp.Shape(j, xi)*w)
						}
					}
				}
			}
		}
	}

	left, right := b.mesh.Bounds()
	for g, s := range b.spaces {
		first := b.offsets[g]
		last := b.offsets[g] + s.NumDofs() - 1
		a.Set(first, first, a.At(first, first)+b.alpha[mesh.Left]*b.mesh.Weight(left))
		a.Set(last, last, a.At(last, last)+b.alpha[mesh.Right]*b.mesh.Weight(right))
	}

	b.matrix = a
	b.generation++
}

func (b *Backend) assembleSource(prev []eigen.Field, k float64) *mat.VecDense {
	rhs := mat.NewVecDense(b.size, nil)
	source := eigen.NewFissionSource(b.table, b.mesh, prev)
	for e := 0; e < b.mesh.NumElements(); e++ {
		if !b.fissile[e] {
			continue
		}
		chi := b.materials[e].Chi
		for g, s := range b.spaces {
			if chi[g] == 0 {
				continue
			}
			rule := mesh.RuleForDegree(source.Degree(e) + s.order + b.mesh.WeightDegree())
			scale := chi[g] / k
			for q, xi := range rule.Points {
				x, jac := b.mesh.Map(e, xi)
				f := scale * source.Value(e, xi) * rule.Weights[q] * jac * b.mesh.Weight(x)
				for i := 0; i < s.LocalDofs(); i++ {
					idx := b.offsets[g] + s.Dof(e, i)
					rhs.SetVec(idx, rhs.AtVec(idx)+f*s.Shape(i, xi))
				}
			}
		}
	}
	return rhs
}

// Partition implements eigen.Backend and returns one *Solution per group.
func (b *Backend) Partition(x []float64) ([]eigen.Field, error) {
	if len(x) != b.size {
		return nil, fmt.Errorf("%w: solution has %d entries, system has %d", ErrSize, len(x), b.size)
	}
	fields := make([]eigen.Field, len(b.spaces))
	for g, s := range b.spaces {
		fields[g] = NewSolution(s, x[b.offsets[g]:b.offsets[g+1]])
	}
	return fields, nil
}

// UniformGuess returns one solution per group equal to value everywhere.
func (b *Backend) UniformGuess(value float64) []eigen.Field {
	fields := make([]eigen.Field, len(b.spaces))
	for g, s := range b.spaces {
		c := make([]float64, s.NumDofs())
		for i := range c {
			c[i] = value
		}
		fields[g] = &Solution{space: s, coeffs: c}
	}
	return fields
}

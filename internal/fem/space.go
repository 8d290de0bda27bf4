// Package fem discretizes the multi-group diffusion equations with
// continuous Lagrange finite elements on a one-dimensional mesh, and
// implements the assembly backend of the eigenvalue engine.
package fem

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/agbru/keffcalc/internal/mesh"
)

// MaxOrder is the highest supported polynomial order.
const MaxOrder = 4

// ErrInvalidOrder is returned for polynomial orders outside [1, MaxOrder].
var ErrInvalidOrder = errors.New("fem: invalid polynomial order")

// Space is a continuous Lagrange space of fixed order over a mesh. The
// local nodes of an element are equispaced on the reference interval and
// neighboring elements share their end nodes, so element e owns the global
// degrees of freedom e*order ... e*order+order.
type Space struct {
	mesh  *mesh.Mesh
	order int
	nodes []float64
	denom []float64
}

// NewSpace builds a space of the given order over m.
func NewSpace(m *mesh.Mesh, order int) (*Space, error) {
	if order < 1 || order > MaxOrder {
		return nil, fmt.Errorf("%w: %d (supported 1..%d)", ErrInvalidOrder, order, MaxOrder)
	}
	s := &Space{
		mesh:  m,
		order: order,
		nodes: floats.Span(make([]float64, order+1), -1, 1),
		denom: make([]float64, order+1),
	}
	for i := range s.nodes {
		d := 1.0
		for j, xj := range s.nodes {
			if j != i {
				d *= s.nodes[i] - xj
			}
		}
		s.denom[i] = d
	}
	return s, nil
}

// Mesh returns the underlying mesh.
func (s *Space) Mesh() *mesh.Mesh { return s.mesh }

// Order returns the polynomial order.
func (s *Space) Order() int { return s.order }

// LocalDofs returns the number of shape functions per element.
func (s *Space) LocalDofs() int { return s.order + 1 }

// NumDofs returns the number of global degrees of freedom.
func (s *Space) NumDofs() int { return s.mesh.NumElements()*s.order + 1 }

// Dof returns the global index of local shape function i of element e.
func (s *Space) Dof(e, i int) int { return e*s.order + i }

// Nodes returns the reference coordinates of the local nodes.
func (s *Space) Nodes() []float64 { return append([]float64(nil), s.nodes...) }

// Shape evaluates local shape function i at reference coordinate xi.
func (s *Space) Shape(i int, xi float64) float64 {
	p := 1.0
	for j, xj := range s.nodes {
		if j != i {
			p *= xi - xj
		}
	}
	return p / s.denom[i]
}

// ShapeDeriv evaluates d/dξ of local shape function i at xi.
func (s *Space) ShapeDeriv(i int, xi float64) float64 {
	sum := 0.0
	for m := range s.nodes {
		if m == i {
			continue
		}
		p := 1.0
		for j, xj := range s.nodes {
			if j != i && j != m {
				p *= xi - xj
			}
		}
		sum += p
	}
	return sum / s.denom[i]
}

package mesh

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/agbru/keffcalc/internal/physics"
)

// ErrInvalidMesh is returned for malformed layer descriptions.
var ErrInvalidMesh = errors.New("mesh: invalid mesh")

// Side designates one end of the domain.
type Side int

const (
	// Left is the end at the smallest coordinate.
	Left Side = iota
	// Right is the end at the largest coordinate.
	Right
)

// Element is a line segment [A, B] belonging to exactly one region.
type Element struct {
	A, B   float64
	Region physics.RegionTag
}

// Layer describes a homogeneous slab of the domain, split into equal elements.
type Layer struct {
	Region    physics.RegionTag `yaml:"region" json:"region"`
	Thickness float64           `yaml:"thickness" json:"thickness"`
	Elements  int               `yaml:"elements" json:"elements"`
}

// Mesh is an immutable one-dimensional mesh.
type Mesh struct {
	geometry Geometry
	elements []Element
	markers  [2]physics.BoundaryMarker
}

// New builds a mesh from consecutive layers starting at origin.
//
// Parameters:
//   - geometry: The coordinate system.
//   - origin: The coordinate of the left end (must be >= 0 for radial geometries).
//   - layers: The material layers, left to right.
//   - markers: The boundary markers of the left and right ends.
//
// Returns:
//   - *Mesh: The mesh.
//   - error: ErrInvalidMesh wrapped with details.
func New(geometry Geometry, origin float64, layers []Layer, markers [2]physics.BoundaryMarker) (*Mesh, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrInvalidMesh)
	}
	if geometry != Slab && origin < 0 {
		return nil, fmt.Errorf("%w: radial origin %g is negative", ErrInvalidMesh, origin)
	}
	if math.IsNaN(origin) || math.IsInf(origin, 0) {
		return nil, fmt.Errorf("%w: origin %g", ErrInvalidMesh, origin)
	}

	m := &Mesh{geometry: geometry, markers: markers}
	x := origin
	for i, l := range layers {
		if l.Region == "" {
			return nil, fmt.Errorf("%w: layer %d has no region", ErrInvalidMesh, i)
		}
		if !(l.Thickness > 0) || math.IsInf(l.Thickness, 0) {
			return nil, fmt.Errorf("%w: layer %d thickness %g", ErrInvalidMesh, i, l.Thickness)
		}
		if l.Elements < 1 {
			return nil, fmt.Errorf("%w: layer %d has %d elements", ErrInvalidMesh, i, l.Elements)
		}
		h := l.Thickness / float64(l.Elements)
		for j := 0; j < l.Elements; j++ {
			a := x + float64(j)*h
			b := a + h
			if j == l.Elements-1 {
				b = x + l.Thickness
			}
			m.elements = append(m.elements, Element{A: a, B: b, Region: l.Region})
		}
		x += l.Thickness
	}
	return m, nil
}

// Geometry returns the coordinate system.
func (m *Mesh) Geometry() Geometry { return m.geometry }

// NumElements returns the number of elements.
func (m *Mesh) NumElements() int { return len(m.elements) }

// Element returns element e.
func (m *Mesh) Element(e int) Element { return m.elements[e] }

// Region returns the region tag of element e.
func (m *Mesh) Region(e int) physics.RegionTag { return m.elements[e].Region }

// Map returns the physical coordinate of reference point xi ∈ [-1, 1] on
// element e together with the constant Jacobian dx/dξ.
func (m *Mesh) Map(e int, xi float64) (x, jac float64) {
	el := m.elements[e]
	jac = (el.B - el.A) / 2
	return el.A + (xi+1)*jac, jac
}

// Weight returns the geometric volume weight at x.
func (m *Mesh) Weight(x float64) float64 { return m.geometry.Weight(x) }

// WeightDegree returns the polynomial degree of the volume weight.
func (m *Mesh) WeightDegree() int { return m.geometry.Degree() }

// Bounds returns the coordinates of both ends.
func (m *Mesh) Bounds() (a, b float64) {
	return m.elements[0].A, m.elements[len(m.elements)-1].B
}

// Marker returns the boundary marker of one end.
func (m *Mesh) Marker(s Side) physics.BoundaryMarker { return m.markers[s] }

// Locate finds the element containing x and the reference coordinate of x
// in it. Points on an interface resolve to the left element.
func (m *Mesh) Locate(x float64) (e int, xi float64, ok bool) {
	a, b := m.Bounds()
	if x < a || x > b {
		return 0, 0, false
	}
	e = sort.Search(len(m.elements), func(i int) bool { return m.elements[i].B >= x })
	if e == len(m.elements) {
		e--
	}
	el := m.elements[e]
	xi = 2*(x-el.A)/(el.B-el.A) - 1
	return e, math.Max(-1, math.Min(1, xi)), true
}

// Refine returns a new mesh with every element bisected.
func (m *Mesh) Refine() *Mesh {
	r := &Mesh{
		geometry: m.geometry,
		markers:  m.markers,
		elements: make([]Element, 0, 2*len(m.elements)),
	}
	for _, el := range m.elements {
		mid := (el.A + el.B) / 2
		r.elements = append(r.elements,
			Element{A: el.A, B: mid, Region: el.Region},
			Element{A: mid, B: el.B, Region: el.Region})
	}
	return r
}

// RefineN applies Refine n times.
func (m *Mesh) RefineN(n int) *Mesh {
	r := m
	for i := 0; i < n; i++ {
		r = r.Refine()
	}
	return r
}

// Regions returns the distinct region tags in order of first appearance.
func (m *Mesh) Regions() []physics.RegionTag {
	seen := make(map[physics.RegionTag]bool)
	var tags []physics.RegionTag
	for _, el := range m.elements {
		if !seen[el.Region] {
			seen[el.Region] = true
			tags = append(tags, el.Region)
		}
	}
	return tags
}

// Package mesh provides the one-dimensional discretized domain used by the
// solver: layered elements with region tags, boundary markers at both ends,
// the geometric volume weight of slab, cylindrical and spherical coordinates,
// and Gauss–Legendre quadrature rules.
package mesh

import (
	"fmt"
	"math"
	"strings"
)

// Geometry selects the coordinate system of the domain.
type Geometry int

const (
	// Slab is Cartesian geometry, weight 1.
	Slab Geometry = iota
	// Cylinder is the radial coordinate of an axisymmetric cylinder, weight 2πr.
	Cylinder
	// Sphere is the radial coordinate of a sphere, weight 4πr².
	Sphere
)

// ParseGeometry converts a deck spelling into a Geometry.
func ParseGeometry(s string) (Geometry, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "slab", "cartesian", "":
		return Slab, nil
	case "cylinder", "cylindrical", "axisymmetric":
		return Cylinder, nil
	case "sphere", "spherical":
		return Sphere, nil
	default:
		return 0, fmt.Errorf("mesh: unknown geometry %q", s)
	}
}

// String returns the canonical spelling.
func (g Geometry) String() string {
	switch g {
	case Slab:
		return "slab"
	case Cylinder:
		return "cylinder"
	case Sphere:
		return "sphere"
	default:
		return fmt.Sprintf("Geometry(%d)", int(g))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (g Geometry) MarshalText() ([]byte, error) { return []byte(g.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Geometry) UnmarshalText(text []byte) error {
	parsed, err := ParseGeometry(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Weight returns the volume weight at position x.
func (g Geometry) Weight(x float64) float64 {
	switch g {
	case Cylinder:
		return 2 * math.Pi * x
	case Sphere:
		return 4 * math.Pi * x * x
	default:
		return 1
	}
}

// Degree returns the polynomial degree of Weight.
func (g Geometry) Degree() int {
	switch g {
	case Cylinder:
		return 1
	case Sphere:
		return 2
	default:
		return 0
	}
}

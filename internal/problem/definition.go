// Package problem describes complete eigenvalue problems (geometry, layers,
// materials and boundary conditions), builds them into solver-ready
// instances, and provides a catalog of built-in benchmark problems together
// with their analytic reference eigenvalues.
package problem

import (
	"errors"
	"fmt"
	"math"

	"github.com/agbru/keffcalc/internal/fem"
	"github.com/agbru/keffcalc/internal/mesh"
	"github.com/agbru/keffcalc/internal/physics"
)

// ErrInvalidDefinition is wrapped by every Definition validation failure.
var ErrInvalidDefinition = errors.New("problem: invalid definition")

// DefaultOrder is the polynomial order of groups whose order is not given.
const DefaultOrder = 2

// Boundary binds a boundary marker to a condition name ("vacuum",
// "reflecting" or "symmetry").
type Boundary struct {
	Marker    physics.BoundaryMarker `yaml:"marker" json:"marker"`
	Condition string                 `yaml:"condition" json:"condition"`
}

// Definition is the declarative description of a problem, as found in the
// catalog or in a YAML deck.
type Definition struct {
	Name         string             `yaml:"name" json:"name"`
	Description  string             `yaml:"description,omitempty" json:"description,omitempty"`
	Geometry     mesh.Geometry      `yaml:"geometry" json:"geometry"`
	Origin       float64            `yaml:"origin,omitempty" json:"origin,omitempty"`
	Layers       []mesh.Layer       `yaml:"layers" json:"layers"`
	Left         Boundary           `yaml:"left" json:"left"`
	Right        Boundary           `yaml:"right" json:"right"`
	Groups       int                `yaml:"groups" json:"groups"`
	Orders       []int              `yaml:"orders,omitempty" json:"orders,omitempty"`
	Materials    []physics.Material `yaml:"materials" json:"materials"`
	ActiveRegion physics.RegionTag  `yaml:"active_region" json:"active_region"`
	Refinements  int                `yaml:"refinements,omitempty" json:"refinements,omitempty"`
	// ReferenceK is the analytic eigenvalue when one is known, 0 otherwise.
	ReferenceK float64 `yaml:"reference_k,omitempty" json:"reference_k,omitempty"`
}

// GroupOrders returns the polynomial order of every group, filling in
// DefaultOrder when Orders is empty.
func (d *Definition) GroupOrders() []int {
	if len(d.Orders) > 0 {
		return append([]int(nil), d.Orders...)
	}
	orders := make([]int, d.Groups)
	for g := range orders {
		orders[g] = DefaultOrder
	}
	return orders
}

// EstimatedDegrees returns the number of unknowns Build would produce with
// extra refinements, computed from the layer element counts alone. It is a
// float64 so that oversized definitions do not overflow.
func (d *Definition) EstimatedDegrees(extra int) float64 {
	elements := 0.0
	for _, l := range d.Layers {
		elements += float64(max(l.Elements, 0))
	}
	elements *= math.Exp2(float64(max(d.Refinements+extra, 0)))
	if len(d.Orders) == 0 {
		return float64(max(d.Groups, 0)) * (elements*DefaultOrder + 1)
	}
	n := 0.0
	for _, p := range d.Orders {
		n += elements*float64(p) + 1
	}
	return n
}

// Conditions resolves the boundary condition names.
func (d *Definition) Conditions() (map[physics.BoundaryMarker]physics.BoundaryCondition, error) {
	out := make(map[physics.BoundaryMarker]physics.BoundaryCondition, 2)
	for _, b := range []Boundary{d.Left, d.Right} {
		if b.Marker == "" {
			return nil, fmt.Errorf("%w: boundary without marker", ErrInvalidDefinition)
		}
		bc, err := physics.ParseBoundaryCondition(b.Condition)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
		}
		if prev, ok := out[b.Marker]; ok && prev.Name() != bc.Name() {
			return nil, fmt.Errorf("%w: marker %q bound to both %s and %s", ErrInvalidDefinition, b.Marker, prev.Name(), bc.Name())
		}
		out[b.Marker] = bc
	}
	return out, nil
}

// Validate checks the definition for consistency without building it.
//
// Returns:
//   - error: ErrInvalidDefinition wrapped with the first problem found, or a
//     physics validation error for bad material data.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidDefinition)
	}
	if d.Groups < 1 {
		return fmt.Errorf("%w: groups must be at least 1, got %d", ErrInvalidDefinition, d.Groups)
	}
	if len(d.Orders) > 0 && len(d.Orders) != d.Groups {
		return fmt.Errorf("%w: %d orders for %d groups", ErrInvalidDefinition, len(d.Orders), d.Groups)
	}
	for g, p := range d.Orders {
		if p < 1 || p > fem.MaxOrder {
			return fmt.Errorf("%w: order %d of group %d outside 1..%d", ErrInvalidDefinition, p, g, fem.MaxOrder)
		}
	}
	if d.Refinements < 0 {
		return fmt.Errorf("%w: negative refinement count %d", ErrInvalidDefinition, d.Refinements)
	}
	if len(d.Layers) == 0 {
		return fmt.Errorf("%w: no layers", ErrInvalidDefinition)
	}
	if len(d.Materials) == 0 {
		return fmt.Errorf("%w: no materials", ErrInvalidDefinition)
	}
	if _, err := d.Conditions(); err != nil {
		return err
	}

	table, err := physics.NewTable(d.Groups, d.Materials...)
	if err != nil {
		return err
	}
	for i, l := range d.Layers {
		if table.Region(l.Region) == nil {
			return fmt.Errorf("%w: layer %d uses unknown region %q", ErrInvalidDefinition, i, l.Region)
		}
	}
	active := table.Region(d.ActiveRegion)
	switch {
	case d.ActiveRegion == "":
		return fmt.Errorf("%w: missing active region", ErrInvalidDefinition)
	case active == nil:
		return fmt.Errorf("%w: active region %q has no material", ErrInvalidDefinition, d.ActiveRegion)
	case !active.Fissile():
		return fmt.Errorf("%w: active region %q is a %s", ErrInvalidDefinition, d.ActiveRegion, active.Kind())
	}
	return nil
}

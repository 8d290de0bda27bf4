package problem

import (
	"fmt"

	"github.com/agbru/keffcalc/internal/eigen"
	"github.com/agbru/keffcalc/internal/fem"
	"github.com/agbru/keffcalc/internal/mesh"
	"github.com/agbru/keffcalc/internal/physics"
)

// Instance is a built problem: the refined mesh, the parameter table and the
// resolved boundary conditions. It is immutable; every engine created from it
// gets its own assembly backend, so instances can be shared between
// concurrent solves.
type Instance struct {
	def        Definition
	mesh       *mesh.Mesh
	table      *physics.Table
	conditions map[physics.BoundaryMarker]physics.BoundaryCondition
	orders     []int
}

// Build validates def and builds its mesh and tables. extraRefinements is
// added to def.Refinements.
func Build(def Definition, extraRefinements int) (*Instance, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if extraRefinements < 0 {
		return nil, fmt.Errorf("%w: negative refinement count %d", ErrInvalidDefinition, extraRefinements)
	}
	conditions, err := def.Conditions()
	if err != nil {
		return nil, err
	}
	table, err := physics.NewTable(def.Groups, def.Materials...)
	if err != nil {
		return nil, err
	}
	base, err := mesh.New(def.Geometry, def.Origin, def.Layers,
		[2]physics.BoundaryMarker{def.Left.Marker, def.Right.Marker})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	def.Refinements += extraRefinements
	inst := &Instance{
		def:        def,
		mesh:       base.RefineN(def.Refinements),
		table:      table,
		conditions: conditions,
		orders:     def.GroupOrders(),
	}
	// Surface backend errors (orders, markers) at build time.
	if _, err := inst.NewBackend(); err != nil {
		return nil, err
	}
	return inst, nil
}

// Definition returns the definition the instance was built from, with the
// total refinement count.
func (i *Instance) Definition() Definition { return i.def }

// Mesh returns the refined mesh.
func (i *Instance) Mesh() *mesh.Mesh { return i.mesh }

// Table returns the parameter table.
func (i *Instance) Table() *physics.Table { return i.table }

// Groups returns the number of energy groups.
func (i *Instance) Groups() int { return i.def.Groups }

// ActiveRegion returns the region over which fission integrals are taken.
func (i *Instance) ActiveRegion() physics.RegionTag { return i.def.ActiveRegion }

// NewBackend returns a fresh assembly backend.
func (i *Instance) NewBackend() (*fem.Backend, error) {
	return fem.NewBackend(i.mesh, i.table, i.orders, i.conditions)
}

// Degrees returns the number of unknowns of the coupled system.
func (i *Instance) Degrees() int {
	n := 0
	for _, p := range i.orders {
		n += i.mesh.NumElements()*p + 1
	}
	return n
}

// NewEngine creates an engine with its own backend around solver.
func (i *Instance) NewEngine(solver eigen.Solver, opts ...eigen.Option) (*eigen.Engine, error) {
	backend, err := i.NewBackend()
	if err != nil {
		return nil, err
	}
	return eigen.NewEngine(eigen.Setup{
		Backend:      backend,
		Solver:       solver,
		Domain:       i.mesh,
		Data:         i.table,
		ActiveRegion: i.def.ActiveRegion,
	}, opts...)
}

// Guess returns a uniform initial flux of the given value in every group.
func (i *Instance) Guess(value float64) []eigen.Field {
	return eigen.UniformGuess(i.def.Groups, value)
}

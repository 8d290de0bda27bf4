package problem

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agbru/keffcalc/internal/mesh"
	"github.com/agbru/keffcalc/internal/physics"
)

// Catalog is a thread-safe registry of named problem definitions.
type Catalog struct {
	mu    sync.RWMutex
	defs  map[string]func() Definition
	order []string
}

// NewCatalog creates a catalog with the built-in problems registered.
//
// Built-in problems:
//   - "bare-slab": 1-group homogeneous slab, vacuum on both faces
//   - "reflected-slab": 1-group core between two reflectors
//   - "infinite-2g": 2-group homogeneous medium with reflecting faces
//   - "bare-cylinder": 1-group homogeneous cylinder
//   - "bare-sphere": 1-group homogeneous sphere
//   - "four-group-cylinder": 4-group reflected cylindrical core
//
// Returns:
//   - *Catalog: A new catalog.
func NewCatalog() *Catalog {
	c := &Catalog{defs: make(map[string]func() Definition)}
	_ = c.Register("bare-slab", BareSlab)
	_ = c.Register("reflected-slab", ReflectedSlab)
	_ = c.Register("infinite-2g", InfiniteTwoGroup)
	_ = c.Register("bare-cylinder", BareCylinder)
	_ = c.Register("bare-sphere", BareSphere)
	_ = c.Register("four-group-cylinder", FourGroupCylinder)
	return c
}

// Register adds or replaces a problem. The constructor is called on every
// Get, so callers may modify the returned definitions freely.
func (c *Catalog) Register(name string, def func() Definition) error {
	if name == "" || def == nil {
		return fmt.Errorf("problem: invalid registration %q", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.defs[name]; !exists {
		c.order = append(c.order, name)
	}
	c.defs[name] = def
	return nil
}

// Get returns a fresh copy of the named definition.
func (c *Catalog) Get(name string) (Definition, error) {
	c.mu.RLock()
	def, ok := c.defs[name]
	c.mu.RUnlock()
	if !ok {
		return Definition{}, fmt.Errorf("unknown problem: %s", name)
	}
	return def(), nil
}

// Has reports whether a problem is registered under name.
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.defs[name]
	return ok
}

// List returns the registered names in sorted order.
func (c *Catalog) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := append([]string(nil), c.order...)
	sort.Strings(names)
	return names
}

// All returns a fresh copy of every definition, sorted by name.
func (c *Catalog) All() []Definition {
	names := c.List()
	out := make([]Definition, 0, len(names))
	for _, name := range names {
		if def, err := c.Get(name); err == nil {
			out = append(out, def)
		}
	}
	return out
}

var globalCatalog = NewCatalog()

// GlobalCatalog returns the process-wide catalog.
func GlobalCatalog() *Catalog { return globalCatalog }

// ─────────────────────────────────────────────────────────────────────────────
// Built-in problems
// ─────────────────────────────────────────────────────────────────────────────

func oneGroupCore(name physics.RegionTag, d, sigmaR, nu, sigmaF float64) physics.Material {
	return physics.Material{
		Name:   name,
		Kind:   physics.KindActiveCore,
		D:      []float64{d},
		SigmaR: []float64{sigmaR},
		Nu:     []float64{nu},
		SigmaF: []float64{sigmaF},
		Chi:    []float64{1},
	}
}

func mustK(k float64, err error) float64 {
	if err != nil {
		panic(err)
	}
	return k
}

// BareSlab is a 20 cm homogeneous slab with vacuum on both faces.
func BareSlab() Definition {
	return Definition{
		Name:         "bare-slab",
		Description:  "1-group homogeneous slab, 20 cm, vacuum on both faces",
		Geometry:     mesh.Slab,
		Origin:       -10,
		Layers:       []mesh.Layer{{Region: "core", Thickness: 20, Elements: 20}},
		Left:         Boundary{Marker: "left", Condition: "vacuum"},
		Right:        Boundary{Marker: "right", Condition: "vacuum"},
		Groups:       1,
		Orders:       []int{2},
		Materials:    []physics.Material{oneGroupCore("core", 1, 0.1, 2.5, 0.064)},
		ActiveRegion: "core",
		ReferenceK:   mustK(SlabCriticalK(1, 0.1, 2.5*0.064, 20)),
	}
}

// ReflectedSlab is a 20 cm core between two 10 cm reflectors.
func ReflectedSlab() Definition {
	return Definition{
		Name:        "reflected-slab",
		Description: "1-group slab core between two reflectors, vacuum outside",
		Geometry:    mesh.Slab,
		Layers: []mesh.Layer{
			{Region: "reflector", Thickness: 10, Elements: 5},
			{Region: "core", Thickness: 20, Elements: 10},
			{Region: "reflector", Thickness: 10, Elements: 5},
		},
		Left:   Boundary{Marker: "left", Condition: "vacuum"},
		Right:  Boundary{Marker: "right", Condition: "vacuum"},
		Groups: 1,
		Orders: []int{2},
		Materials: []physics.Material{
			oneGroupCore("core", 1, 0.1, 2.5, 0.05),
			{Name: "reflector", Kind: physics.KindReflector, D: []float64{0.8}, SigmaR: []float64{0.01}},
		},
		ActiveRegion: "core",
	}
}

// InfiniteTwoGroup is a homogeneous 2-group medium; reflecting faces make
// the flux flat, so the eigenvalue is k∞.
func InfiniteTwoGroup() Definition {
	core := physics.Material{
		Name:   "core",
		Kind:   physics.KindActiveCore,
		D:      []float64{1.4, 0.4},
		SigmaR: []float64{0.03, 0.08},
		SigmaS: [][]float64{{0, 0}, {0.02, 0}},
		Nu:     []float64{2.5, 2.5},
		SigmaF: []float64{0.002, 0.05},
		Chi:    []float64{1, 0},
	}
	return Definition{
		Name:         "infinite-2g",
		Description:  "2-group homogeneous medium with reflecting faces",
		Geometry:     mesh.Slab,
		Layers:       []mesh.Layer{{Region: "core", Thickness: 10, Elements: 2}},
		Left:         Boundary{Marker: "left", Condition: "reflecting"},
		Right:        Boundary{Marker: "right", Condition: "reflecting"},
		Groups:       2,
		Orders:       []int{1, 1},
		Materials:    []physics.Material{core},
		ActiveRegion: "core",
		ReferenceK:   mustK(InfiniteMediumK(core, 2)),
	}
}

// BareCylinder is a 30 cm homogeneous cylinder, symmetric on the axis.
func BareCylinder() Definition {
	return Definition{
		Name:         "bare-cylinder",
		Description:  "1-group homogeneous cylinder, R = 30 cm",
		Geometry:     mesh.Cylinder,
		Layers:       []mesh.Layer{{Region: "core", Thickness: 30, Elements: 30}},
		Left:         Boundary{Marker: "axis", Condition: "symmetry"},
		Right:        Boundary{Marker: "surface", Condition: "vacuum"},
		Groups:       1,
		Orders:       []int{2},
		Materials:    []physics.Material{oneGroupCore("core", 1.2, 0.05, 2.4, 0.03)},
		ActiveRegion: "core",
		ReferenceK:   mustK(CylinderCriticalK(1.2, 0.05, 2.4*0.03, 30)),
	}
}

// BareSphere is a 40 cm homogeneous sphere.
func BareSphere() Definition {
	return Definition{
		Name:         "bare-sphere",
		Description:  "1-group homogeneous sphere, R = 40 cm",
		Geometry:     mesh.Sphere,
		Layers:       []mesh.Layer{{Region: "core", Thickness: 40, Elements: 20}},
		Left:         Boundary{Marker: "center", Condition: "symmetry"},
		Right:        Boundary{Marker: "surface", Condition: "vacuum"},
		Groups:       1,
		Orders:       []int{2},
		Materials:    []physics.Material{oneGroupCore("core", 1.1, 0.04, 2.4, 0.025)},
		ActiveRegion: "core",
		ReferenceK:   mustK(SphereCriticalK(1.1, 0.04, 2.4*0.025, 40)),
	}
}

// FourGroupCylinder is an axisymmetric reflected core with four energy
// groups, downscatter only, refined twice.
func FourGroupCylinder() Definition {
	return Definition{
		Name:        "four-group-cylinder",
		Description: "4-group cylindrical core (80 cm) with a 30 cm reflector",
		Geometry:    mesh.Cylinder,
		Layers: []mesh.Layer{
			{Region: "core", Thickness: 80, Elements: 4},
			{Region: "reflector", Thickness: 30, Elements: 2},
		},
		Left:   Boundary{Marker: "axis", Condition: "symmetry"},
		Right:  Boundary{Marker: "surface", Condition: "vacuum"},
		Groups: 4,
		Orders: []int{2, 3, 3, 4},
		Materials: []physics.Material{
			{
				Name:   "core",
				Kind:   physics.KindActiveCore,
				D:      []float64{2.1, 1.2, 0.9, 0.4},
				SigmaR: []float64{0.026, 0.019, 0.015, 0.07},
				SigmaS: [][]float64{
					{0, 0, 0, 0},
					{0.021, 0, 0, 0},
					{0, 0.014, 0, 0},
					{0, 0, 0.010, 0},
				},
				Nu:     []float64{2.5, 2.45, 2.43, 2.43},
				SigmaF: []float64{0.0015, 0.0008, 0.003, 0.045},
				Chi:    []float64{0.76, 0.24, 0, 0},
			},
			{
				Name:   "reflector",
				Kind:   physics.KindReflector,
				D:      []float64{2.0, 1.1, 0.9, 0.3},
				SigmaR: []float64{0.025, 0.021, 0.016, 0.008},
				SigmaS: [][]float64{
					{0, 0, 0, 0},
					{0.024, 0, 0, 0},
					{0, 0.020, 0, 0},
					{0, 0, 0.015, 0},
				},
			},
		},
		ActiveRegion: "core",
		Refinements:  2,
	}
}

package eigen

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/agbru/keffcalc/internal/mesh"
	"github.com/agbru/keffcalc/internal/physics"
)

// polyField is the polynomial Σ c_i x^i of the physical coordinate.
type polyField struct {
	domain Domain
	coeffs []float64
}

func (p polyField) Value(e int, xi float64) float64 {
	x, _ := p.domain.Map(e, xi)
	v := 0.0
	for i := len(p.coeffs) - 1; i >= 0; i-- {
		v = v*x + p.coeffs[i]
	}
	return v
}

func (p polyField) Degree(int) int { return len(p.coeffs) - 1 }

func threeLayerMesh(t *testing.T, g mesh.Geometry) *mesh.Mesh {
	t.Helper()
	m, err := mesh.New(g, 0, []mesh.Layer{
		{Region: "core", Thickness: 3, Elements: 3},
		{Region: "reflector", Thickness: 2, Elements: 4},
		{Region: "core", Thickness: 1, Elements: 1},
	}, [2]physics.BoundaryMarker{"left", "right"})
	if err != nil {
		t.Fatalf("mesh.New: %v", err)
	}
	return m
}

func TestRegionIntegrator_Exact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		geom   mesh.Geometry
		coeffs []float64
		tag    physics.RegionTag
		want   float64
	}{
		// ∫0^6 1 dx
		{"slab constant", mesh.Slab, []float64{1}, "", 6},
		// ∫0^3 x² dx + ∫5^6 x² dx
		{"slab quadratic core", mesh.Slab, []float64{0, 0, 1}, "core", 9 + (216-125)/3.0},
		// ∫0^6 2πr dr
		{"cylinder area", mesh.Cylinder, []float64{1}, "", math.Pi * 36},
		// ∫3^5 4πr² r dr
		{"sphere cubic-weighted reflector", mesh.Sphere, []float64{0, 1}, "reflector", math.Pi * (625 - 81)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := threeLayerMesh(t, tt.geom)
			ri := NewRegionIntegrator(m)
			f := polyField{domain: m, coeffs: tt.coeffs}
			var got float64
			if tt.tag == "" {
				got = ri.IntegrateAll(f)
			} else {
				got = ri.Integrate(f, tt.tag)
			}
			if math.Abs(got-tt.want) > 1e-10*math.Max(1, math.Abs(tt.want)) {
				t.Errorf("integral = %.15g, want %.15g", got, tt.want)
			}
		})
	}
}

func TestRegionIntegrator_NullRegion(t *testing.T) {
	t.Parallel()

	m := threeLayerMesh(t, mesh.Cylinder)
	ri := NewRegionIntegrator(m)
	if got := ri.Integrate(ConstantField(3), "moderator"); got != 0 {
		t.Errorf("integral over an absent region = %g, want exactly 0", got)
	}
}

func TestRegionIntegrator_Additivity(t *testing.T) {
	t.Parallel()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	geometries := []mesh.Geometry{mesh.Slab, mesh.Cylinder, mesh.Sphere}
	meshes := make([]*mesh.Mesh, len(geometries))
	for i, g := range geometries {
		meshes[i] = threeLayerMesh(t, g)
	}

	properties.Property("core + reflector == whole domain", prop.ForAll(
		func(geom int, coeffs []float64) bool {
			m := meshes[geom]
			ri := NewRegionIntegrator(m)
			f := polyField{domain: m, coeffs: coeffs}
			whole := ri.IntegrateAll(f)
			split := ri.Integrate(f, "core") + ri.Integrate(f, "reflector")
			return math.Abs(whole-split) <= 1e-9*math.Max(1, math.Abs(whole))
		},
		gen.IntRange(0, len(geometries)-1),
		gen.SliceOfN(4, gen.Float64Range(-5, 5)),
	))

	properties.TestingRun(t)
}

func TestFissionSource(t *testing.T) {
	t.Parallel()

	domain := lineDomain{tags: []physics.RegionTag{"core", "reflector"}}
	src := NewFissionSource(coreData{}, domain, []Field{ConstantField(2), polyField{domain: domain, coeffs: []float64{0, 1}}})

	// In the core, ν·Σf = 1 for both groups: 2 + x at x = 0.5.
	if got := src.Value(0, 0); got != 2.5 {
		t.Errorf("core source = %g, want 2.5", got)
	}
	if got := src.Value(1, 0); got != 0 {
		t.Errorf("reflector source = %g, want 0", got)
	}
	if src.Degree(0) != 1 {
		t.Errorf("degree = %d, want 1", src.Degree(0))
	}
	ri := NewRegionIntegrator(domain)
	// ∫0^1 (2 + x) dx
	if got := ri.Integrate(src, "core"); math.Abs(got-2.5) > 1e-14 {
		t.Errorf("core integral = %g, want 2.5", got)
	}
}

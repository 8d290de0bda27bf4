package eigen

import (
	"github.com/agbru/keffcalc/internal/mesh"
	"github.com/agbru/keffcalc/internal/physics"
)

// RegionIntegrator computes weighted integrals ∫ w(x) f(x) dx over the
// elements of a region. The quadrature rule of each element is chosen so
// that the product of the field and the geometric weight is integrated
// exactly on affine elements.
type RegionIntegrator struct {
	domain Domain
}

// NewRegionIntegrator returns an integrator over domain.
func NewRegionIntegrator(domain Domain) *RegionIntegrator {
	return &RegionIntegrator{domain: domain}
}

// Integrate returns the integral of f over the elements tagged tag.
// A tag without elements integrates to exactly 0.
func (ri *RegionIntegrator) Integrate(f Field, tag physics.RegionTag) float64 {
	return ri.IntegrateWhere(f, func(t physics.RegionTag) bool { return t == tag })
}

// IntegrateAll returns the integral of f over the whole domain.
func (ri *RegionIntegrator) IntegrateAll(f Field) float64 {
	return ri.IntegrateWhere(f, func(physics.RegionTag) bool { return true })
}

// IntegrateWhere returns the integral of f over the elements whose tag
// satisfies keep.
func (ri *RegionIntegrator) IntegrateWhere(f Field, keep func(physics.RegionTag) bool) float64 {
	total := 0.0
	wdeg := ri.domain.WeightDegree()
	for e := 0; e < ri.domain.NumElements(); e++ {
		if !keep(ri.domain.Region(e)) {
			continue
		}
		rule := mesh.RuleForDegree(f.Degree(e) + wdeg)
		sum := 0.0
		for q, xi := range rule.Points {
			x, jac := ri.domain.Map(e, xi)
			sum += rule.Weights[q] * jac * ri.domain.Weight(x) * f.Value(e, xi)
		}
		total += sum
	}
	return total
}

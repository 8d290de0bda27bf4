package eigen

// FissionSource is the fission neutron production density
// Σ_g ν_g Σf_g φ_g, using the parameters of the region that owns each element.
// It is evaluated lazily at whatever points the integrator samples.
type FissionSource struct {
	data   FissionData
	domain Domain
	fluxes []Field
}

// NewFissionSource builds the source field of a set of group fluxes.
func NewFissionSource(data FissionData, domain Domain, fluxes []Field) *FissionSource {
	return &FissionSource{data: data, domain: domain, fluxes: fluxes}
}

// Value implements Field.
func (s *FissionSource) Value(e int, xi float64) float64 {
	tag := s.domain.Region(e)
	sum := 0.0
	for g, phi := range s.fluxes {
		nsf := s.data.NuSigmaF(tag, g)
		if nsf == 0 {
			continue
		}
		sum += nsf * phi.Value(e, xi)
	}
	return sum
}

// Degree implements Field. A weighted sum has the degree of its highest term.
func (s *FissionSource) Degree(e int) int {
	d := 0
	for _, phi := range s.fluxes {
		if pd := phi.Degree(e); pd > d {
			d = pd
		}
	}
	return d
}

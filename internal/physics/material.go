package physics

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrGroupCount is returned when a data vector does not have one entry per group.
	ErrGroupCount = errors.New("physics: wrong number of groups")
	// ErrNegativeData is returned for negative or non-finite cross-sections.
	ErrNegativeData = errors.New("physics: invalid cross-section")
	// ErrFissionInReflector is returned when a reflector carries fission data.
	ErrFissionInReflector = errors.New("physics: reflector with fission data")
	// ErrNoFission is returned when an active core cannot produce neutrons.
	ErrNoFission = errors.New("physics: active core without fission")
	// ErrUnknownRegion is returned by table lookups for unregistered tags.
	ErrUnknownRegion = errors.New("physics: unknown region")
)

// Material is the group-wise data of one region.
//
// SigmaS[g][gp] is the scattering cross-section from group gp into group g;
// diagonal entries are ignored since in-group scattering is folded into the
// removal cross-section SigmaR.
type Material struct {
	Name   RegionTag   `yaml:"name" json:"name"`
	Kind   RegionKind  `yaml:"kind" json:"kind"`
	D      []float64   `yaml:"d" json:"d"`
	SigmaR []float64   `yaml:"sigma_r" json:"sigma_r"`
	SigmaS [][]float64 `yaml:"sigma_s,omitempty" json:"sigma_s,omitempty"`
	Nu     []float64   `yaml:"nu,omitempty" json:"nu,omitempty"`
	SigmaF []float64   `yaml:"sigma_f,omitempty" json:"sigma_f,omitempty"`
	Chi    []float64   `yaml:"chi,omitempty" json:"chi,omitempty"`
}

// NuSigmaF returns the production cross-section of group g.
func (m *Material) NuSigmaF(g int) float64 {
	if len(m.Nu) == 0 || len(m.SigmaF) == 0 {
		return 0
	}
	return m.Nu[g] * m.SigmaF[g]
}

// Scattering returns the cross-section from group from into group to.
func (m *Material) Scattering(to, from int) float64 {
	if to == from || len(m.SigmaS) == 0 {
		return 0
	}
	return m.SigmaS[to][from]
}

// Validate checks the material against a group count.
func (m *Material) Validate(groups int) error {
	if m.Name == "" {
		return fmt.Errorf("%w: material without a name", ErrUnknownRegion)
	}
	vectors := []struct {
		name     string
		values   []float64
		optional bool
	}{
		{"D", m.D, false},
		{"sigma_r", m.SigmaR, false},
		{"nu", m.Nu, true},
		{"sigma_f", m.SigmaF, true},
		{"chi", m.Chi, true},
	}
	for _, v := range vectors {
		if v.optional && len(v.values) == 0 {
			continue
		}
		if len(v.values) != groups {
			return fmt.Errorf("%w: %s of %q has %d entries, want %d", ErrGroupCount, v.name, m.Name, len(v.values), groups)
		}
		for g, x := range v.values {
			if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
				return fmt.Errorf("%w: %s[%d] of %q = %g", ErrNegativeData, v.name, g, m.Name, x)
			}
		}
	}
	for g, d := range m.D {
		if d == 0 {
			return fmt.Errorf("%w: D[%d] of %q must be positive", ErrNegativeData, g, m.Name)
		}
	}
	if len(m.SigmaS) != 0 {
		if len(m.SigmaS) != groups {
			return fmt.Errorf("%w: sigma_s of %q has %d rows, want %d", ErrGroupCount, m.Name, len(m.SigmaS), groups)
		}
		for g, row := range m.SigmaS {
			if len(row) != groups {
				return fmt.Errorf("%w: sigma_s[%d] of %q has %d entries, want %d", ErrGroupCount, g, m.Name, len(row), groups)
			}
			for gp, x := range row {
				if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
					return fmt.Errorf("%w: sigma_s[%d][%d] of %q = %g", ErrNegativeData, g, gp, m.Name, x)
				}
			}
		}
	}

	production := 0.0
	for g := 0; g < groups; g++ {
		production += m.NuSigmaF(g)
	}
	switch m.Kind {
	case KindReflector:
		if production > 0 {
			return fmt.Errorf("%w: %q", ErrFissionInReflector, m.Name)
		}
	case KindActiveCore:
		if production == 0 {
			return fmt.Errorf("%w: %q", ErrNoFission, m.Name)
		}
		if len(m.Chi) == 0 {
			return fmt.Errorf("%w: chi of %q is missing", ErrGroupCount, m.Name)
		}
		sum := 0.0
		for _, c := range m.Chi {
			sum += c
		}
		if math.Abs(sum-1) > 1e-6 {
			return fmt.Errorf("%w: chi of %q sums to %g", ErrNegativeData, m.Name, sum)
		}
	}
	return nil
}

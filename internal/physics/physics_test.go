package physics

import (
	"errors"
	"testing"
)

func fuel() Material {
	return Material{
		Name:   "core",
		Kind:   KindActiveCore,
		D:      []float64{1.4, 0.4},
		SigmaR: []float64{0.03, 0.08},
		SigmaS: [][]float64{{0, 0}, {0.02, 0}},
		Nu:     []float64{2.5, 2.5},
		SigmaF: []float64{0.002, 0.05},
		Chi:    []float64{1, 0},
	}
}

func water() Material {
	return Material{
		Name:   "reflector",
		Kind:   KindReflector,
		D:      []float64{1.2, 0.2},
		SigmaR: []float64{0.04, 0.02},
		SigmaS: [][]float64{{0, 0}, {0.035, 0}},
	}
}

func TestNewTable(t *testing.T) {
	t.Parallel()

	table, err := NewTable(2, fuel(), water())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Groups() != 2 {
		t.Errorf("expected 2 groups, got %d", table.Groups())
	}
	if got := table.NuSigmaF("core", 1); got != 2.5*0.05 {
		t.Errorf("NuSigmaF(core, 1) = %g, want %g", got, 2.5*0.05)
	}
	if got := table.NuSigmaF("reflector", 0); got != 0 {
		t.Errorf("NuSigmaF(reflector, 0) = %g, want 0", got)
	}
	if got := table.NuSigmaF("nowhere", 0); got != 0 {
		t.Errorf("unknown region should produce 0, got %g", got)
	}
	if !table.Region("core").Fissile() {
		t.Error("core should be fissile")
	}
	if table.Region("reflector").Fissile() {
		t.Error("reflector should not be fissile")
	}
	if _, err := table.Material("nowhere"); !errors.Is(err, ErrUnknownRegion) {
		t.Errorf("expected ErrUnknownRegion, got %v", err)
	}
	tags := table.Tags()
	if len(tags) != 2 || tags[0] != "core" || tags[1] != "reflector" {
		t.Errorf("unexpected tags %v", tags)
	}
}

func TestNewTable_Isolation(t *testing.T) {
	t.Parallel()

	m := fuel()
	table, err := NewTable(2, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.SigmaF[1] = 10
	if got := table.NuSigmaF("core", 1); got != 2.5*0.05 {
		t.Errorf("table must not alias caller slices, got %g", got)
	}
}

func TestMaterial_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Material)
		kind   RegionKind
		want   error
	}{
		{"valid core", func(m *Material) {}, KindActiveCore, nil},
		{"short D", func(m *Material) { m.D = m.D[:1] }, KindActiveCore, ErrGroupCount},
		{"zero D", func(m *Material) { m.D[0] = 0 }, KindActiveCore, ErrNegativeData},
		{"negative removal", func(m *Material) { m.SigmaR[1] = -1 }, KindActiveCore, ErrNegativeData},
		{"bad scattering shape", func(m *Material) { m.SigmaS = [][]float64{{0}} }, KindActiveCore, ErrGroupCount},
		{"core without fission", func(m *Material) { m.SigmaF = []float64{0, 0} }, KindActiveCore, ErrNoFission},
		{"chi not normalized", func(m *Material) { m.Chi = []float64{0.5, 0.2} }, KindActiveCore, ErrNegativeData},
		{"reflector with fission", func(m *Material) { m.Kind = KindReflector }, KindReflector, ErrFissionInReflector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := fuel()
			tt.mutate(&m)
			err := m.Validate(2)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewTable_Rejects(t *testing.T) {
	t.Parallel()

	if _, err := NewTable(0); !errors.Is(err, ErrGroupCount) {
		t.Errorf("expected ErrGroupCount for zero groups, got %v", err)
	}
	if _, err := NewTable(2, fuel(), fuel()); err == nil {
		t.Error("expected duplicate region error")
	}
}

func TestParseBoundaryCondition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		alpha float64
		ok    bool
	}{
		{"vacuum", 0.5, true},
		{"Reflecting", 0, true},
		{"symmetry", 0, true},
		{" sym ", 0, true},
		{"periodic", 0, false},
	}
	for _, tt := range tests {
		bc, err := ParseBoundaryCondition(tt.in)
		if !tt.ok {
			if err == nil {
				t.Errorf("%q: expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tt.in, err)
		}
		if bc.Alpha() != tt.alpha {
			t.Errorf("%q: alpha = %g, want %g", tt.in, bc.Alpha(), tt.alpha)
		}
	}
}

func TestRegionKind_Text(t *testing.T) {
	t.Parallel()

	for _, k := range []RegionKind{KindReflector, KindActiveCore} {
		text, _ := k.MarshalText()
		var back RegionKind
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("unmarshal %q: %v", text, err)
		}
		if back != k {
			t.Errorf("round trip of %v gave %v", k, back)
		}
	}
	if _, err := ParseRegionKind("moderator"); err == nil {
		t.Error("expected error for unknown kind")
	}
	if r := NewRegion(KindActiveCore, "fuel"); r.Tag() != "fuel" || r.Kind() != KindActiveCore {
		t.Errorf("unexpected region %#v", r)
	}
}

package problem

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/agbru/keffcalc/internal/physics"
)

// ErrNoReference is returned when an analytic reference does not exist for
// the given data.
var ErrNoReference = errors.New("problem: no analytic reference")

// One-group bare-reactor references with Marshak vacuum conditions
// -D φ' = φ/2 on the outer surface. Each solves the transcendental
// condition for the geometric buckling B and returns νΣf / (Σr + D B²).

// SlabCriticalK returns k of a bare slab of the given width, vacuum on both
// faces. The fundamental mode is cos(Bx) and B solves D B tan(B w/2) = 1/2.
func SlabCriticalK(d, sigmaR, nuSigmaF, width float64) (float64, error) {
	if err := checkOneGroup(d, sigmaR, nuSigmaF, width); err != nil {
		return 0, err
	}
	half := width / 2
	b := bisect(func(b float64) float64 { return d*b*math.Tan(b*half) - 0.5 }, 0, math.Pi/width)
	return nuSigmaF / (sigmaR + d*b*b), nil
}

// CylinderCriticalK returns k of a bare infinite cylinder of the given
// radius. The fundamental mode is J0(Br) and B solves D B J1(BR) = J0(BR)/2.
func CylinderCriticalK(d, sigmaR, nuSigmaF, radius float64) (float64, error) {
	if err := checkOneGroup(d, sigmaR, nuSigmaF, radius); err != nil {
		return 0, err
	}
	// First zero of J0.
	const j01 = 2.404825557695773
	b := bisect(func(b float64) float64 {
		return d*b*math.J1(b*radius) - 0.5*math.J0(b*radius)
	}, 0, j01/radius)
	return nuSigmaF / (sigmaR + d*b*b), nil
}

// SphereCriticalK returns k of a bare sphere of the given radius. The
// fundamental mode is sin(Br)/r and B solves D (1 − BR cot BR) = R/2.
func SphereCriticalK(d, sigmaR, nuSigmaF, radius float64) (float64, error) {
	if err := checkOneGroup(d, sigmaR, nuSigmaF, radius); err != nil {
		return 0, err
	}
	b := bisect(func(b float64) float64 {
		x := b * radius
		return d*(1-x/math.Tan(x)) - radius/2
	}, 0, math.Pi/radius)
	return nuSigmaF / (sigmaR + d*b*b), nil
}

// InfiniteMediumK returns k∞ of a homogeneous multiplying material: the
// flux is flat, so (Σr − Σs) φ = χ/k νΣf·φ, whose only nonzero eigenvalue
// is νΣf · (Σr − Σs)⁻¹ χ.
func InfiniteMediumK(m physics.Material, groups int) (float64, error) {
	if err := m.Validate(groups); err != nil {
		return 0, err
	}
	if m.Kind != physics.KindActiveCore {
		return 0, fmt.Errorf("%w: %q does not multiply", ErrNoReference, m.Name)
	}
	loss := mat.NewDense(groups, groups, nil)
	for g := 0; g < groups; g++ {
		for gp := 0; gp < groups; gp++ {
			if g == gp {
				loss.Set(g, g, m.SigmaR[g])
			} else {
				loss.Set(g, gp, -m.Scattering(g, gp))
			}
		}
	}
	var phi mat.VecDense
	if err := phi.SolveVec(loss, mat.NewVecDense(groups, append([]float64(nil), m.Chi...))); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNoReference, err)
	}
	k := 0.0
	for g := 0; g < groups; g++ {
		k += m.NuSigmaF(g) * phi.AtVec(g)
	}
	if !(k > 0) {
		return 0, fmt.Errorf("%w: k∞ = %g", ErrNoReference, k)
	}
	return k, nil
}

func checkOneGroup(d, sigmaR, nuSigmaF, size float64) error {
	for _, v := range []float64{d, nuSigmaF, size} {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: parameters must be positive and finite", ErrNoReference)
		}
	}
	if sigmaR < 0 || math.IsNaN(sigmaR) || math.IsInf(sigmaR, 0) {
		return fmt.Errorf("%w: removal cross-section %g", ErrNoReference, sigmaR)
	}
	return nil
}

// bisect finds the root of an increasing f on the open interval (lo, hi).
func bisect(f func(float64) float64, lo, hi float64) float64 {
	for i := 0; i < 200 && hi-lo > 1e-16*hi; i++ {
		mid := (lo + hi) / 2
		if f(mid) < 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

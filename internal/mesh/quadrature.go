package mesh

import (
	"sync"

	"gonum.org/v1/gonum/integrate/quad"
)

// Rule is a Gauss–Legendre rule on the reference interval [-1, 1].
// The slices are shared and must not be modified.
type Rule struct {
	Points  []float64
	Weights []float64
}

var rules sync.Map // map[int]Rule

// GaussLegendre returns the n-point rule, exact for polynomials of degree
// 2n-1. Rules are computed once and memoized.
func GaussLegendre(n int) Rule {
	if n < 1 {
		n = 1
	}
	if r, ok := rules.Load(n); ok {
		return r.(Rule)
	}
	r := Rule{Points: make([]float64, n), Weights: make([]float64, n)}
	quad.Legendre{}.FixedLocations(r.Points, r.Weights, -1, 1)
	actual, _ := rules.LoadOrStore(n, r)
	return actual.(Rule)
}

// RuleForDegree returns the smallest rule that integrates a polynomial of
// the given degree exactly.
func RuleForDegree(degree int) Rule {
	if degree < 0 {
		degree = 0
	}
	return GaussLegendre(degree/2 + 1)
}

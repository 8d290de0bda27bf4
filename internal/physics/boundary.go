package physics

import (
	"fmt"
	"strings"
)

// BoundaryCondition is a linear boundary condition of the form
// -D ∂φ/∂n = α φ, contributed to the weak form as α ∫ φ v dS.
type BoundaryCondition interface {
	// Name returns the deck spelling of the condition.
	Name() string
	// Alpha returns the Robin coefficient α.
	Alpha() float64
}

// Reflecting is a symmetry (zero net current) boundary.
type Reflecting struct{}

// Name implements BoundaryCondition.
func (Reflecting) Name() string { return "reflecting" }

// Alpha implements BoundaryCondition.
func (Reflecting) Alpha() float64 { return 0 }

// Vacuum is the Marshak outflow boundary, -D ∂φ/∂n = φ/2.
type Vacuum struct{}

// Name implements BoundaryCondition.
func (Vacuum) Name() string { return "vacuum" }

// Alpha implements BoundaryCondition.
func (Vacuum) Alpha() float64 { return 0.5 }

// ParseBoundaryCondition converts a deck spelling into a condition.
// "symmetry" is accepted as an alias of "reflecting".
func ParseBoundaryCondition(s string) (BoundaryCondition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reflecting", "symmetry", "sym":
		return Reflecting{}, nil
	case "vacuum":
		return Vacuum{}, nil
	default:
		return nil, fmt.Errorf("physics: unknown boundary condition %q", s)
	}
}

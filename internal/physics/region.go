// Package physics holds the multi-group material data of a diffusion problem:
// per-region cross-section tables and the classification of regions and
// boundaries. Everything here is immutable once built and safe to share
// between concurrently running solves.
package physics

import (
	"fmt"
	"strings"
)

// RegionTag identifies a material zone of the spatial domain.
type RegionTag string

// BoundaryMarker identifies a boundary segment of the spatial domain.
type BoundaryMarker string

// RegionKind enumerates the region variants understood by the solver.
type RegionKind int

const (
	// KindReflector is a non-multiplying zone.
	KindReflector RegionKind = iota
	// KindActiveCore is a fissile zone.
	KindActiveCore
)

// String returns the canonical deck spelling of the kind.
func (k RegionKind) String() string {
	switch k {
	case KindReflector:
		return "reflector"
	case KindActiveCore:
		return "active-core"
	default:
		return fmt.Sprintf("RegionKind(%d)", int(k))
	}
}

// ParseRegionKind converts a deck spelling into a RegionKind.
// Accepted values are "reflector", "active-core", "core" and "fuel".
func ParseRegionKind(s string) (RegionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reflector":
		return KindReflector, nil
	case "active-core", "core", "fuel":
		return KindActiveCore, nil
	default:
		return 0, fmt.Errorf("physics: unknown region kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k RegionKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *RegionKind) UnmarshalText(text []byte) error {
	parsed, err := ParseRegionKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Region classifies a material zone. The variant is resolved once when the
// parameter table is built; consumers branch on Fissile rather than on tags.
type Region interface {
	// Tag returns the zone identifier.
	Tag() RegionTag
	// Kind returns the variant.
	Kind() RegionKind
	// Fissile reports whether the fission source is active in the zone.
	Fissile() bool
}

// Reflector is a zone without fission.
type Reflector struct{ tag RegionTag }

// Tag implements Region.
func (r Reflector) Tag() RegionTag { return r.tag }

// Kind implements Region.
func (r Reflector) Kind() RegionKind { return KindReflector }

// Fissile implements Region.
func (r Reflector) Fissile() bool { return false }

// ActiveCore is a fissile zone.
type ActiveCore struct{ tag RegionTag }

// Tag implements Region.
func (c ActiveCore) Tag() RegionTag { return c.tag }

// Kind implements Region.
func (c ActiveCore) Kind() RegionKind { return KindActiveCore }

// Fissile implements Region.
func (c ActiveCore) Fissile() bool { return true }

// NewRegion returns the Region variant for kind.
func NewRegion(kind RegionKind, tag RegionTag) Region {
	if kind == KindActiveCore {
		return ActiveCore{tag: tag}
	}
	return Reflector{tag: tag}
}

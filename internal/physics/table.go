package physics

import (
	"fmt"
	"sort"
)

// Table is the immutable physical parameter table of a problem, keyed by
// region tag and group index.
type Table struct {
	groups    int
	materials map[RegionTag]*Material
	regions   map[RegionTag]Region
}

// NewTable validates the materials and builds a table for the given group count.
//
// Parameters:
//   - groups: The number of energy groups (at least 1).
//   - materials: One material per region tag.
//
// Returns:
//   - *Table: The read-only table.
//   - error: The first validation failure, or a duplicate tag.
func NewTable(groups int, materials ...Material) (*Table, error) {
	if groups < 1 {
		return nil, fmt.Errorf("%w: %d", ErrGroupCount, groups)
	}
	t := &Table{
		groups:    groups,
		materials: make(map[RegionTag]*Material, len(materials)),
		regions:   make(map[RegionTag]Region, len(materials)),
	}
	for i := range materials {
		m := cloneMaterial(materials[i])
		if err := m.Validate(groups); err != nil {
			return nil, err
		}
		if _, dup := t.materials[m.Name]; dup {
			return nil, fmt.Errorf("physics: duplicate region %q", m.Name)
		}
		t.materials[m.Name] = m
		t.regions[m.Name] = NewRegion(m.Kind, m.Name)
	}
	return t, nil
}

// Groups returns the number of energy groups.
func (t *Table) Groups() int { return t.groups }

// Material returns the data of a region.
func (t *Table) Material(tag RegionTag) (*Material, error) {
	m, ok := t.materials[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRegion, tag)
	}
	return m, nil
}

// Region returns the classification of a region, or nil when unknown.
func (t *Table) Region(tag RegionTag) Region {
	return t.regions[tag]
}

// NuSigmaF returns ν·Σf of group g in region tag; unknown regions produce 0.
func (t *Table) NuSigmaF(tag RegionTag, g int) float64 {
	m, ok := t.materials[tag]
	if !ok {
		return 0
	}
	return m.NuSigmaF(g)
}

// Tags returns the registered region tags in sorted order.
func (t *Table) Tags() []RegionTag {
	tags := make([]RegionTag, 0, len(t.materials))
	for tag := range t.materials {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

func cloneMaterial(m Material) *Material {
	c := m
	c.D = append([]float64(nil), m.D...)
	c.SigmaR = append([]float64(nil), m.SigmaR...)
	c.Nu = append([]float64(nil), m.Nu...)
	c.SigmaF = append([]float64(nil), m.SigmaF...)
	c.Chi = append([]float64(nil), m.Chi...)
	if m.SigmaS != nil {
		c.SigmaS = make([][]float64, len(m.SigmaS))
		for i, row := range m.SigmaS {
			c.SigmaS[i] = append([]float64(nil), row...)
		}
	}
	return &c
}

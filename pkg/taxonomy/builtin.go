// Package taxonomy holds the family/type/temporal-aggregation/orientation
// tables the pipeline validates against. These are data, not constants
// baked into the stages: the built-in set loads once at startup and an
// operator-supplied YAML file can extend it without a recompile, mirroring
// config.GetBuiltinConfig's singleton-plus-override shape.
package taxonomy

import (
	"sync"

	"github.com/codeready-toolchain/classify/pkg/models"
)

// TypeDef describes one indicator_type recognized within a family.
type TypeDef struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// FamilyDef is the full set of indicator_type values valid for one family.
type FamilyDef struct {
	Family models.Family `yaml:"family"`
	Types  []TypeDef     `yaml:"types"`
}

// Taxonomy is the resolved, in-memory taxonomy used by the Specialist and
// Flagging stages to validate (family, indicator_type) pairs.
type Taxonomy struct {
	mu        sync.RWMutex
	families  map[models.Family]FamilyDef
	typeIndex map[models.Family]map[string]bool
}

var (
	builtin     *Taxonomy
	builtinOnce sync.Once
)

// Builtin returns the singleton built-in taxonomy (thread-safe, lazy-initialized).
func Builtin() *Taxonomy {
	builtinOnce.Do(func() {
		builtin = newTaxonomy(initBuiltinFamilies())
	})
	return builtin
}

func newTaxonomy(defs []FamilyDef) *Taxonomy {
	t := &Taxonomy{
		families:  make(map[models.Family]FamilyDef, len(defs)),
		typeIndex: make(map[models.Family]map[string]bool, len(defs)),
	}
	for _, def := range defs {
		t.families[def.Family] = def
		names := make(map[string]bool, len(def.Types))
		for _, ty := range def.Types {
			names[ty.Name] = true
		}
		t.typeIndex[def.Family] = names
	}
	return t
}

// ValidType reports whether typ is a recognized indicator_type for family.
func (t *Taxonomy) ValidType(family models.Family, typ string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names, ok := t.typeIndex[family]
	if !ok {
		return false
	}
	return names[typ]
}

// TypesFor returns the restricted indicator_type enumeration for family, in
// declaration order. The returned slice is a defensive copy.
func (t *Taxonomy) TypesFor(family models.Family) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	def, ok := t.families[family]
	if !ok {
		return nil
	}
	out := make([]string, len(def.Types))
	for i, ty := range def.Types {
		out[i] = ty.Name
	}
	return out
}

// Merge layers additional family definitions on top of the receiver,
// appending new types to an existing family or adding a new family
// outright. Used to apply operator-supplied YAML overrides over the
// built-in set.
func (t *Taxonomy) Merge(extra []FamilyDef) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, def := range extra {
		existing, ok := t.families[def.Family]
		if !ok {
			t.families[def.Family] = def
			names := make(map[string]bool, len(def.Types))
			for _, ty := range def.Types {
				names[ty.Name] = true
			}
			t.typeIndex[def.Family] = names
			continue
		}
		names := t.typeIndex[def.Family]
		for _, ty := range def.Types {
			if names[ty.Name] {
				continue
			}
			existing.Types = append(existing.Types, ty)
			names[ty.Name] = true
		}
		t.families[def.Family] = existing
	}
}

func initBuiltinFamilies() []FamilyDef {
	return []FamilyDef{
		{
			Family: models.FamilyPhysicalFundamental,
			Types: []TypeDef{
				{Name: "stock", Description: "a level measured at a point in time (reserves, debt outstanding)"},
				{Name: "flow", Description: "an amount accumulated over a period (GDP, exports)"},
				{Name: "balance", Description: "a net of two flows (trade balance, fiscal balance)"},
			},
		},
		{
			Family: models.FamilyNumericMeasurement,
			Types: []TypeDef{
				{Name: "count", Description: "a raw count of discrete units"},
				{Name: "percentage", Description: "a share expressed out of 100"},
				{Name: "ratio", Description: "a unitless quotient of two quantities"},
				{Name: "share", Description: "a proportion of a whole"},
			},
		},
		{
			Family: models.FamilyPriceValue,
			Types: []TypeDef{
				{Name: "price", Description: "a market price in currency units"},
				{Name: "yield", Description: "a bond or instrument yield"},
				{Name: "spread", Description: "a difference between two yields or prices"},
			},
		},
		{
			Family: models.FamilyChangeMovement,
			Types: []TypeDef{
				{Name: "rate", Description: "a period-over-period rate of change"},
				{Name: "volume", Description: "traded or transacted volume over a period"},
			},
		},
		{
			Family: models.FamilyCompositeDerived,
			Types: []TypeDef{
				{Name: "index", Description: "a composite index referenced to a base period"},
				{Name: "ratio", Description: "a derived ratio of two underlying series"},
			},
		},
		{
			Family: models.FamilyTemporal,
			Types: []TypeDef{
				{Name: "lag", Description: "a lagged or leading indicator"},
				{Name: "seasonal-factor", Description: "a seasonal adjustment factor"},
			},
		},
		{
			Family: models.FamilyQualitative,
			Types: []TypeDef{
				{Name: "category", Description: "a categorical label with no numeric magnitude"},
				{Name: "rating", Description: "an ordinal rating or grade"},
			},
		},
	}
}

// PlaceholderType returns the most generic indicator_type for family, used
// when the Specialist fails irrecoverably for an item (spec §4.3).
func (t *Taxonomy) PlaceholderType(family models.Family) string {
	types := t.TypesFor(family)
	if len(types) == 0 {
		return "category"
	}
	return types[0]
}

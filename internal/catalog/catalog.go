package catalog

import (
	"fmt"
	"sort"
)

// Semantic classifies what an effect value means.
type Semantic int8

const (
	SemanticReduction  Semantic = iota // fraction 0..1 removed from external drift
	SemanticRegen                      // flat amount per tick
	SemanticMultiplier                 // scale factor applied to a quantity
	SemanticBoolean                    // 0 or 1 capability flag
)

func (s Semantic) String() string {
	switch s {
	case SemanticReduction:
		return "reduction"
	case SemanticRegen:
		return "regen"
	case SemanticMultiplier:
		return "multiplier"
	case SemanticBoolean:
		return "boolean"
	}
	return fmt.Sprintf("semantic(%d)", int8(s))
}

// Stacking selects how same-named contributions combine into one total.
type Stacking int8

const (
	StackAdditive       Stacking = iota // sum of all values
	StackMultiplicative                 // diminishing reductions or multiplier product
	StackMaximum                        // largest value wins
	StackReplace                        // highest priority wins outright
)

func (s Stacking) String() string {
	switch s {
	case StackAdditive:
		return "additive"
	case StackMultiplicative:
		return "multiplicative"
	case StackMaximum:
		return "maximum"
	case StackReplace:
		return "replace"
	}
	return fmt.Sprintf("stacking(%d)", int8(s))
}

// Definition is one catalog entry. Immutable once published: removing
// or renaming an entry breaks every stored contribution referencing it,
// so the catalog only ever grows.
type Definition struct {
	Name     string
	Semantic Semantic
	Stacking Stacking
	Default  float64
}

// Catalog is the versioned table of recognized effects. Pure data.
type Catalog struct {
	Version string
	defs    map[string]Definition
}

// New builds a catalog from the given definitions.
// Duplicate names are an error.
func New(version string, defs []Definition) (*Catalog, error) {
	c := &Catalog{
		Version: version,
		defs:    make(map[string]Definition, len(defs)),
	}
	for _, d := range defs {
		if _, ok := c.defs[d.Name]; ok {
			return nil, fmt.Errorf("duplicate effect definition %q", d.Name)
		}
		c.defs[d.Name] = d
	}
	return c, nil
}

// Lookup returns the definition for name.
func (c *Catalog) Lookup(name string) (Definition, bool) {
	d, ok := c.defs[name]
	return d, ok
}

// Default returns the default value for name, or 0 for unknown names.
func (c *Catalog) Default(name string) float64 {
	return c.defs[name].Default
}

// Names returns all effect names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of definitions.
func (c *Catalog) Len() int { return len(c.defs) }

// builtinVersion bumps whenever the builtin table gains entries.
const builtinVersion = "1.2"

// Builtin returns the static effect table every deployment recognizes.
func Builtin() *Catalog {
	c, err := New(builtinVersion, []Definition{
		{Name: "hunger_reduction", Semantic: SemanticReduction, Stacking: StackMultiplicative},
		{Name: "thirst_reduction", Semantic: SemanticReduction, Stacking: StackMultiplicative},
		{Name: "fatigue_reduction", Semantic: SemanticReduction, Stacking: StackMultiplicative},
		{Name: "stamina_regen", Semantic: SemanticRegen, Stacking: StackAdditive},
		{Name: "health_regen", Semantic: SemanticRegen, Stacking: StackAdditive},
		{Name: "carry_capacity", Semantic: SemanticMultiplier, Stacking: StackMultiplicative, Default: 1},
		{Name: "craft_speed", Semantic: SemanticMultiplier, Stacking: StackMultiplicative, Default: 1},
		{Name: "warmth_bonus", Semantic: SemanticRegen, Stacking: StackMaximum},
		{Name: "vision_range", Semantic: SemanticMultiplier, Stacking: StackReplace, Default: 1},
		{Name: "night_vision", Semantic: SemanticBoolean, Stacking: StackMaximum},
		{Name: "water_breathing", Semantic: SemanticBoolean, Stacking: StackMaximum},
		{Name: "health_decay_protection", Semantic: SemanticReduction, Stacking: StackMaximum},
	})
	if err != nil {
		panic(err) // builtin table is static, duplicates are a programming error
	}
	return c
}

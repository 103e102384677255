package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// overlayFile is the YAML shape of a catalog overlay.
type overlayFile struct {
	Version string `yaml:"version"`
	Effects []struct {
		Name     string  `yaml:"name"`
		Semantic string  `yaml:"semantic"`
		Stacking string  `yaml:"stacking"`
		Default  float64 `yaml:"default"`
	} `yaml:"effects"`
}

var semanticNames = map[string]Semantic{
	"reduction":  SemanticReduction,
	"regen":      SemanticRegen,
	"multiplier": SemanticMultiplier,
	"boolean":    SemanticBoolean,
}

var stackingNames = map[string]Stacking{
	"additive":       StackAdditive,
	"multiplicative": StackMultiplicative,
	"maximum":        StackMaximum,
	"replace":        StackReplace,
}

// LoadOverlay reads extra effect definitions from a YAML file and
// returns a new catalog containing the builtin table plus the overlay.
// An overlay may only add: redefining a builtin name is rejected, so
// deployments cannot silently change stacking semantics underneath
// stored contributions.
func LoadOverlay(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog overlay: %w", err)
	}

	var file overlayFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog overlay: %w", err)
	}

	base := Builtin()
	defs := make([]Definition, 0, base.Len()+len(file.Effects))
	for _, name := range base.Names() {
		d, _ := base.Lookup(name)
		defs = append(defs, d)
	}

	for i, e := range file.Effects {
		if e.Name == "" {
			return nil, fmt.Errorf("catalog overlay entry %d: missing name", i)
		}
		if _, ok := base.Lookup(e.Name); ok {
			return nil, fmt.Errorf("catalog overlay redefines builtin effect %q", e.Name)
		}
		sem, ok := semanticNames[e.Semantic]
		if !ok {
			return nil, fmt.Errorf("effect %q: unknown semantic %q", e.Name, e.Semantic)
		}
		stack, ok := stackingNames[e.Stacking]
		if !ok {
			return nil, fmt.Errorf("effect %q: unknown stacking %q", e.Name, e.Stacking)
		}
		defs = append(defs, Definition{
			Name:     e.Name,
			Semantic: sem,
			Stacking: stack,
			Default:  e.Default,
		})
	}

	version := base.Version
	if file.Version != "" {
		version = base.Version + "+" + file.Version
	}
	return New(version, defs)
}

package effect

import (
	"testing"

	"github.com/dmolokov/effectcore/internal/model"
)

// countingProvider records CalculateEffects invocations.
type countingProvider struct {
	source  string
	prio    int
	applies bool
	values  []EffectValue
	calls   int
}

func (p *countingProvider) SourceID() string                { return p.source }
func (p *countingProvider) Priority() int                   { return p.prio }
func (p *countingProvider) ShouldApply(model.EntityID) bool { return p.applies }

func (p *countingProvider) CalculateEffects(model.EntityID) []EffectValue {
	p.calls++
	return p.values
}

func TestRegisterEffects_Registers(t *testing.T) {
	r := newTestRegistry(t)
	p := &countingProvider{source: "src", prio: 10, applies: true, values: []EffectValue{
		{Name: "hunger_reduction", Value: 0.4},
		{Name: "stamina_regen", Value: 2},
	}}

	registerEffects(p, ent, r)

	if got := r.Get(ent, "hunger_reduction"); got != 0.4 {
		t.Fatalf("hunger_reduction: got %v, want 0.4", got)
	}
	if got := r.Get(ent, "stamina_regen"); got != 2.0 {
		t.Fatalf("stamina_regen: got %v, want 2", got)
	}
}

func TestRegisterEffects_RetractsWhenNotApplicable(t *testing.T) {
	r := newTestRegistry(t)
	p := &countingProvider{source: "src", applies: true, values: []EffectValue{
		{Name: "hunger_reduction", Value: 0.4},
	}}
	registerEffects(p, ent, r)

	// Buff expires between ticks.
	p.applies = false
	registerEffects(p, ent, r)

	if r.HasEffect(ent, "hunger_reduction") {
		t.Fatal("inapplicable provider must retract its contributions")
	}
	if p.calls != 1 {
		t.Fatalf("CalculateEffects of inapplicable provider called %d times, want 1", p.calls)
	}
}

func TestRegisterEffects_ShrinkingListDropsStale(t *testing.T) {
	r := newTestRegistry(t)
	p := &countingProvider{source: "src", applies: true, values: []EffectValue{
		{Name: "hunger_reduction", Value: 0.4},
		{Name: "stamina_regen", Value: 2},
	}}
	registerEffects(p, ent, r)

	// Next tick the source only emits one effect.
	p.values = []EffectValue{{Name: "stamina_regen", Value: 2}}
	registerEffects(p, ent, r)

	if r.HasEffect(ent, "hunger_reduction") {
		t.Fatal("stale contribution survived whole-source replacement")
	}
	if got := r.Get(ent, "stamina_regen"); got != 2.0 {
		t.Fatalf("surviving effect: got %v, want 2", got)
	}
}

func TestRegisterEffects_ProviderPriorityIsDefault(t *testing.T) {
	r := newTestRegistry(t)
	high := &countingProvider{source: "high", prio: 10, applies: true, values: []EffectValue{
		{Name: "vision_range", Value: 3},
	}}
	low := &countingProvider{source: "low", prio: 2, applies: true, values: []EffectValue{
		{Name: "vision_range", Value: 5},
	}}

	registerEffects(low, ent, r)
	registerEffects(high, ent, r)

	// Replace stacking: provider priority carried onto contributions.
	if got := r.Get(ent, "vision_range"); got != 3 {
		t.Fatalf("replace winner: got %v, want 3 from priority-10 source", got)
	}
}

func TestRegisterEffects_PanickingProviderContributesNothing(t *testing.T) {
	r := newTestRegistry(t)
	bad := &Func{
		Source: "bad",
		Calculate: func(model.EntityID) []EffectValue {
			panic("boom")
		},
	}
	good := &countingProvider{source: "good", applies: true, values: []EffectValue{
		{Name: "stamina_regen", Value: 2},
	}}

	registerEffects(bad, ent, r)
	registerEffects(good, ent, r)

	if r.HasEffect(ent, "hunger_reduction") {
		t.Fatal("panicking provider left contributions")
	}
	if got := r.Get(ent, "stamina_regen"); got != 2.0 {
		t.Fatalf("healthy provider blocked by panicking one: got %v", got)
	}
}

func TestRegisterEffects_PanicClearsStaleContributions(t *testing.T) {
	r := newTestRegistry(t)
	flaky := &countingProvider{source: "flaky", applies: true, values: []EffectValue{
		{Name: "hunger_reduction", Value: 0.4},
	}}
	registerEffects(flaky, ent, r)

	broken := &Func{
		Source: "flaky",
		Calculate: func(model.EntityID) []EffectValue {
			panic("boom")
		},
	}
	registerEffects(broken, ent, r)

	if r.HasEffect(ent, "hunger_reduction") {
		t.Fatal("prior-tick contributions must not survive a panicking tick")
	}
}

func TestFunc_Defaults(t *testing.T) {
	f := &Func{Source: "s"}

	if !f.ShouldApply(ent) {
		t.Fatal("nil Applies must mean always applicable")
	}
	if got := f.CalculateEffects(ent); got != nil {
		t.Fatalf("nil Calculate must contribute nothing, got %v", got)
	}
}

func TestRegisterEffects_UnknownEffectSkippedOthersLand(t *testing.T) {
	r := newTestRegistry(t)
	p := &countingProvider{source: "src", applies: true, values: []EffectValue{
		{Name: "not_in_catalog", Value: 1},
		{Name: "stamina_regen", Value: 2},
	}}

	registerEffects(p, ent, r)

	if r.HasEffect(ent, "not_in_catalog") {
		t.Fatal("unknown effect must be rejected")
	}
	if got := r.Get(ent, "stamina_regen"); got != 2.0 {
		t.Fatalf("valid effect alongside rejected one: got %v", got)
	}
}

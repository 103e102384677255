package effect

import (
	"log/slog"

	"github.com/dmolokov/effectcore/internal/model"
)

// EffectValue is one effect a provider wants applied to an entity.
// Priority zero means "use the provider's own priority".
type EffectValue struct {
	Name     string
	Value    float64
	Priority int
	Metadata map[string]any
}

// Provider is an external source of effect contributions: a
// progression system, a timed buff, an equipment slot. Providers are
// capabilities, not engine code — they may read external entity state
// but must never mutate the registry themselves.
type Provider interface {
	// SourceID uniquely identifies this source; it keys the provider's
	// contributions in the registry.
	SourceID() string

	// Priority is the default contribution priority for effects this
	// provider emits without one of their own.
	Priority() int

	// ShouldApply reports whether the provider currently applies to
	// the entity. A false return retracts all prior contributions.
	ShouldApply(id model.EntityID) bool

	// CalculateEffects returns the provider's current effects for the
	// entity. Must be pure with respect to engine state.
	CalculateEffects(id model.EntityID) []EffectValue
}

// Func adapts plain closures to the Provider interface so hosts can
// register a source without declaring a type. A nil Applies means
// always applicable; a nil Calculate contributes nothing.
type Func struct {
	Source    string
	Prio      int
	Applies   func(id model.EntityID) bool
	Calculate func(id model.EntityID) []EffectValue
}

func (f *Func) SourceID() string { return f.Source }
func (f *Func) Priority() int    { return f.Prio }

func (f *Func) ShouldApply(id model.EntityID) bool {
	if f.Applies == nil {
		return true
	}
	return f.Applies(id)
}

func (f *Func) CalculateEffects(id model.EntityID) []EffectValue {
	if f.Calculate == nil {
		return nil
	}
	return f.Calculate(id)
}

// registerEffects bridges one provider to the registry for one entity.
//
// When the provider does not apply, its whole contribution set is
// retracted. Otherwise the set is replaced wholesale: unregister
// first, then register the fresh list. The two-phase replace is what
// keeps totals correct when a provider's effect list shrinks between
// ticks, e.g. a buff expiring.
func registerEffects(p Provider, id model.EntityID, reg *Registry) {
	if !safeShouldApply(p, id) {
		reg.Unregister(id, p.SourceID())
		return
	}

	values, ok := safeCalculateEffects(p, id)
	if !ok {
		// Misbehaving provider contributes nothing this tick; stale
		// contributions are still cleared below.
		values = nil
	}

	reg.Unregister(id, p.SourceID())
	for _, ev := range values {
		prio := ev.Priority
		if prio == 0 {
			prio = p.Priority()
		}
		opts := []RegisterOption{WithPriority(prio)}
		if ev.Metadata != nil {
			opts = append(opts, WithMetadata(ev.Metadata))
		}
		if err := reg.Register(id, ev.Name, ev.Value, p.SourceID(), opts...); err != nil {
			slog.Warn("effect contribution rejected",
				"entity", id,
				"source", p.SourceID(),
				"effect", ev.Name,
				"err", err)
		}
	}
}

// safeShouldApply guards against a panicking provider; a panic counts
// as "does not apply".
func safeShouldApply(p Provider, id model.EntityID) (applies bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("provider ShouldApply panicked",
				"source", p.SourceID(),
				"entity", id,
				"panic", r)
			applies = false
		}
	}()
	return p.ShouldApply(id)
}

// safeCalculateEffects guards against a panicking provider so one bad
// source cannot block the rest of the entity's recalculation.
func safeCalculateEffects(p Provider, id model.EntityID) (values []EffectValue, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("provider CalculateEffects panicked",
				"source", p.SourceID(),
				"entity", id,
				"panic", r)
			values, ok = nil, false
		}
	}()
	return p.CalculateEffects(id), true
}

package effect

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmolokov/effectcore/internal/catalog"
	"github.com/dmolokov/effectcore/internal/model"
)

// Contribution is one source's input to one effect on one entity.
// Uniquely keyed by (entity, effect, SourceID): re-registering with the
// same source replaces the prior value in place.
type Contribution struct {
	SourceID string
	Value    float64
	Priority int
	Metadata map[string]any

	// registration order, breaks priority ties for replace stacking
	seq uint64
}

// entry holds every contribution to one effect on one entity plus the
// combined total. The total is valid only while the owning record is
// not dirty.
type entry struct {
	def           catalog.Definition
	contributions []Contribution
	cachedTotal   float64
}

// entityRecord is the per-entity registry state. Created lazily on
// first Register, deleted by RemoveEntity.
type entityRecord struct {
	mu               sync.Mutex
	effects          map[string]*entry
	dirty            bool
	lastRecalculated time.Time
	recalcs          uint64
}

// Registry stores raw effect contributions per entity and combines
// them into cached totals on demand.
//
// Thread-safe: the entity map is guarded by sync.RWMutex and each
// record carries its own mutex, so different entities can be updated
// in parallel.
type Registry struct {
	mu       sync.RWMutex
	catalog  *catalog.Catalog
	entities map[model.EntityID]*entityRecord
	seq      atomic.Uint64
}

// NewRegistry creates an empty registry over the given catalog.
func NewRegistry(cat *catalog.Catalog) *Registry {
	return &Registry{
		catalog:  cat,
		entities: make(map[model.EntityID]*entityRecord),
	}
}

// Catalog returns the catalog this registry validates against.
func (r *Registry) Catalog() *catalog.Catalog { return r.catalog }

// RegisterOption customizes a single contribution.
type RegisterOption func(*Contribution)

// WithPriority sets the contribution priority. Priority orders
// contributions for replace stacking and picks the representative for
// multiplicative stacking; it does not change additive, maximum or
// multiplicative totals.
func WithPriority(priority int) RegisterOption {
	return func(c *Contribution) { c.Priority = priority }
}

// WithMetadata attaches opaque metadata, surfaced via Details.
func WithMetadata(meta map[string]any) RegisterOption {
	return func(c *Contribution) { c.Metadata = copyMetadata(meta) }
}

// Register upserts one source's contribution to an effect and marks
// the entity dirty. The effect must exist in the catalog and the value
// must be finite.
func (r *Registry) Register(id model.EntityID, effectName string, value float64, sourceID string, opts ...RegisterOption) error {
	def, ok := r.catalog.Lookup(effectName)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEffect, effectName)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %s=%v from %q", ErrInvalidValue, effectName, value, sourceID)
	}

	contrib := Contribution{
		SourceID: sourceID,
		Value:    value,
		seq:      r.seq.Add(1),
	}
	for _, opt := range opts {
		opt(&contrib)
	}

	rec := r.record(id, true)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	e := rec.effects[effectName]
	if e == nil {
		e = &entry{def: def}
		rec.effects[effectName] = e
	}

	replaced := false
	for i := range e.contributions {
		if e.contributions[i].SourceID == sourceID {
			e.contributions[i] = contrib
			replaced = true
			break
		}
	}
	if !replaced {
		e.contributions = append(e.contributions, contrib)
	}
	rec.dirty = true
	return nil
}

// Unregister removes every contribution from sourceID across all
// effects on the entity, pruning entries left with no contributions.
func (r *Registry) Unregister(id model.EntityID, sourceID string) {
	rec := r.record(id, false)
	if rec == nil {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	changed := false
	for name, e := range rec.effects {
		n := 0
		for _, c := range e.contributions {
			if c.SourceID != sourceID {
				e.contributions[n] = c
				n++
			}
		}
		if n != len(e.contributions) {
			e.contributions = e.contributions[:n]
			changed = true
		}
		if len(e.contributions) == 0 {
			delete(rec.effects, name)
		}
	}
	if changed {
		rec.dirty = true
	}
}

// Clear drops every effect entry for the entity, from all sources.
func (r *Registry) Clear(id model.EntityID) {
	rec := r.record(id, false)
	if rec == nil {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.effects) == 0 {
		return
	}
	rec.effects = make(map[string]*entry)
	rec.dirty = true
}

// MarkDirty invalidates the entity's cached totals.
func (r *Registry) MarkDirty(id model.EntityID) {
	rec := r.record(id, false)
	if rec == nil {
		return
	}
	rec.mu.Lock()
	rec.dirty = true
	rec.mu.Unlock()
}

// Recalculate recombines every effect entry for the entity. No-op when
// the entity is not dirty.
func (r *Registry) Recalculate(id model.EntityID) {
	rec := r.record(id, false)
	if rec == nil {
		return
	}
	rec.mu.Lock()
	rec.recalculateLocked()
	rec.mu.Unlock()
}

// Get returns the combined total for an effect, recombining first if
// the entity is dirty. With no contributions it returns the first
// fallback if given, else the catalog default. Unknown entities fall
// through to the same defaults.
func (r *Registry) Get(id model.EntityID, effectName string, fallback ...float64) float64 {
	def := r.catalog.Default(effectName)
	if len(fallback) > 0 {
		def = fallback[0]
	}

	rec := r.record(id, false)
	if rec == nil {
		return def
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	e := rec.effects[effectName]
	if e == nil || len(e.contributions) == 0 {
		return def
	}
	rec.recalculateLocked()
	return e.cachedTotal
}

// GetAll returns every combined total for the entity.
func (r *Registry) GetAll(id model.EntityID) map[string]float64 {
	rec := r.record(id, false)
	if rec == nil {
		return map[string]float64{}
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.recalculateLocked()
	out := make(map[string]float64, len(rec.effects))
	for name, e := range rec.effects {
		out[name] = e.cachedTotal
	}
	return out
}

// SourceDetail is one contribution in a Breakdown.
type SourceDetail struct {
	SourceID string
	Value    float64
	Priority int
	Metadata map[string]any
}

// Breakdown is a read-only view of one effect on one entity for UI
// and diagnostics. It is a deep copy: mutating it cannot reach
// registry state.
type Breakdown struct {
	Effect   string
	Total    float64
	Semantic catalog.Semantic
	Stacking catalog.Stacking
	Sources  []SourceDetail
}

// Details returns a defensive copy of an effect's contributions and
// total. The second return is false when the entity or effect has no
// contributions.
func (r *Registry) Details(id model.EntityID, effectName string) (Breakdown, bool) {
	rec := r.record(id, false)
	if rec == nil {
		return Breakdown{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	e := rec.effects[effectName]
	if e == nil || len(e.contributions) == 0 {
		return Breakdown{}, false
	}
	rec.recalculateLocked()

	b := Breakdown{
		Effect:   effectName,
		Total:    e.cachedTotal,
		Semantic: e.def.Semantic,
		Stacking: e.def.Stacking,
		Sources:  make([]SourceDetail, 0, len(e.contributions)),
	}
	for _, c := range e.contributions {
		b.Sources = append(b.Sources, SourceDetail{
			SourceID: c.SourceID,
			Value:    c.Value,
			Priority: c.Priority,
			Metadata: copyMetadata(c.Metadata),
		})
	}
	return b, true
}

// HasEffect reports whether at least one contribution exists for the
// effect, regardless of dirty state.
func (r *Registry) HasEffect(id model.EntityID, effectName string) bool {
	rec := r.record(id, false)
	if rec == nil {
		return false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	e := rec.effects[effectName]
	return e != nil && len(e.contributions) > 0
}

// LastRecalculated returns when the entity's totals were last
// recombined, zero if never.
func (r *Registry) LastRecalculated(id model.EntityID) time.Time {
	rec := r.record(id, false)
	if rec == nil {
		return time.Time{}
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.lastRecalculated
}

// Recalculations returns how many times the combination pass has
// actually run for the entity. Diagnostic counter; a Recalculate on a
// clean entity does not advance it.
func (r *Registry) Recalculations(id model.EntityID) uint64 {
	rec := r.record(id, false)
	if rec == nil {
		return 0
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.recalcs
}

// RemoveEntity deletes the entity's registry record. Must be called
// when the entity permanently leaves the simulation; the registry has
// no other way to learn a caller-supplied ID went stale.
func (r *Registry) RemoveEntity(id model.EntityID) {
	r.mu.Lock()
	delete(r.entities, id)
	r.mu.Unlock()
}

// Entities returns the IDs with a registry record, for diagnostics.
func (r *Registry) Entities() []model.EntityID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]model.EntityID, 0, len(r.entities))
	for id := range r.entities {
		ids = append(ids, id)
	}
	return ids
}

// record returns the entity's record, creating it when create is set.
func (r *Registry) record(id model.EntityID, create bool) *entityRecord {
	r.mu.RLock()
	rec := r.entities[id]
	r.mu.RUnlock()
	if rec != nil || !create {
		return rec
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rec = r.entities[id]; rec == nil {
		rec = &entityRecord{effects: make(map[string]*entry)}
		r.entities[id] = rec
	}
	return rec
}

// recalculateLocked recombines every entry. Caller holds rec.mu.
func (rec *entityRecord) recalculateLocked() {
	if !rec.dirty {
		return
	}
	for _, e := range rec.effects {
		e.cachedTotal = combine(e.def.Stacking, e.contributions)
	}
	rec.dirty = false
	rec.lastRecalculated = time.Now()
	rec.recalcs++
}

// combine folds contributions into one total per the stacking rule.
// Inputs are ordered by priority descending, priority ties broken by
// most-recent registration; ordering only decides the replace winner
// and the multiplicative representative.
func combine(rule catalog.Stacking, contribs []Contribution) float64 {
	switch len(contribs) {
	case 0:
		return 0
	case 1:
		return contribs[0].Value
	}

	sorted := make([]Contribution, len(contribs))
	copy(sorted, contribs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return sorted[i].seq > sorted[j].seq
	})

	switch rule {
	case catalog.StackAdditive:
		total := 0.0
		for _, c := range sorted {
			total += c.Value
		}
		return total

	case catalog.StackMaximum:
		max := sorted[0].Value
		for _, c := range sorted[1:] {
			if c.Value > max {
				max = c.Value
			}
		}
		return max

	case catalog.StackReplace:
		return sorted[0].Value

	case catalog.StackMultiplicative:
		// The representative (highest-priority) raw value decides the
		// branch: values in [0,1] stack as diminishing reduction
		// fractions, anything else as a plain multiplier product.
		// A legitimate 0.85x multiplier is misread as a reduction here;
		// kept for compatibility with stored catalog semantics.
		rep := sorted[0].Value
		if rep >= 0 && rep <= 1 {
			remaining := 1.0
			for _, c := range sorted {
				remaining *= 1 - c.Value
			}
			return 1 - remaining
		}
		product := 1.0
		for _, c := range sorted {
			product *= c.Value
		}
		return product
	}
	return 0
}

func copyMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

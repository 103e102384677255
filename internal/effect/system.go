package effect

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dmolokov/effectcore/internal/model"
)

// Roster enumerates the entities the system drives each tick.
// model.Arena satisfies it.
type Roster interface {
	ActiveEntities() []model.EntityID
}

// Watcher is a coarse external signal the system polls to detect that
// an entity's provider inputs changed without an explicit MarkDirty —
// e.g. "the progression level". Best effort only: sources must still
// call MarkDirty for state no watcher covers.
type Watcher struct {
	Name    string
	Observe func(id model.EntityID) float64
}

// entityTracking is the system's per-entity dirty state. Guarded by
// its own mutex so different entities can be updated in parallel.
type entityTracking struct {
	mu          sync.Mutex
	needsUpdate bool
	watched     map[string]float64
}

// System orchestrates the collect, register, recalculate cycle. It is
// the only component that talks to providers; the applicator only
// reads the registry.
type System struct {
	registry   *Registry
	applicator *Applicator
	stats      *SessionStats
	roster     Roster

	mu        sync.RWMutex
	providers []Provider
	bySource  map[string]Provider
	watchers  []Watcher
	tracking  map[model.EntityID]*entityTracking
}

// NewSystem wires the orchestrator. stats may be nil.
func NewSystem(registry *Registry, applicator *Applicator, stats *SessionStats, roster Roster) *System {
	return &System{
		registry:   registry,
		applicator: applicator,
		stats:      stats,
		roster:     roster,
		bySource:   make(map[string]Provider),
		tracking:   make(map[model.EntityID]*entityTracking),
	}
}

// Registry returns the underlying registry, for query surfaces.
func (s *System) Registry() *Registry { return s.registry }

// RegisterProvider adds a source. Registration is idempotent by
// SourceID: a duplicate is a logged no-op. All tracked entities are
// marked for recompute since a new source changes their totals.
func (s *System) RegisterProvider(p Provider) {
	s.mu.Lock()
	if _, exists := s.bySource[p.SourceID()]; exists {
		s.mu.Unlock()
		slog.Warn("provider already registered", "source", p.SourceID())
		return
	}
	s.bySource[p.SourceID()] = p
	s.providers = append(s.providers, p)
	tracked := s.trackedLocked()
	s.mu.Unlock()

	for _, tr := range tracked {
		tr.mu.Lock()
		tr.needsUpdate = true
		tr.mu.Unlock()
	}
	slog.Debug("provider registered", "source", p.SourceID(), "priority", p.Priority())
}

// UnregisterProvider removes a source and retracts its contributions
// from every tracked entity.
func (s *System) UnregisterProvider(sourceID string) {
	s.mu.Lock()
	if _, exists := s.bySource[sourceID]; !exists {
		s.mu.Unlock()
		return
	}
	delete(s.bySource, sourceID)
	n := 0
	for _, p := range s.providers {
		if p.SourceID() != sourceID {
			s.providers[n] = p
			n++
		}
	}
	s.providers = s.providers[:n]
	ids := make([]model.EntityID, 0, len(s.tracking))
	for id := range s.tracking {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.registry.Unregister(id, sourceID)
		s.MarkDirty(id)
	}
	slog.Debug("provider unregistered", "source", sourceID)
}

// RegisterWatcher adds an implicit dirty-detection signal.
func (s *System) RegisterWatcher(w Watcher) {
	s.mu.Lock()
	s.watchers = append(s.watchers, w)
	s.mu.Unlock()
}

// MarkDirty flags the entity for recompute on its next update and
// invalidates the registry cache.
func (s *System) MarkDirty(id model.EntityID) {
	tr := s.track(id)
	tr.mu.Lock()
	tr.needsUpdate = true
	tr.mu.Unlock()
	s.registry.MarkDirty(id)
}

// UpdateEntity runs the collect-register-recalculate cycle for one
// entity. Without force it returns immediately when nothing flagged
// the entity, calling no provider at all — skipping clean entities is
// what keeps a large population affordable per tick.
func (s *System) UpdateEntity(id model.EntityID, force bool) {
	tr := s.track(id)

	s.mu.RLock()
	providers := make([]Provider, len(s.providers))
	copy(providers, s.providers)
	watchers := make([]Watcher, len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.RUnlock()

	tr.mu.Lock()
	s.pollWatchersLocked(tr, watchers, id)
	if !tr.needsUpdate && !force {
		tr.mu.Unlock()
		return
	}
	tr.needsUpdate = false
	tr.mu.Unlock()

	s.registry.Clear(id)
	for _, p := range providers {
		registerEffects(p, id, s.registry)
	}
	s.registry.Recalculate(id)
}

// pollWatchersLocked compares watcher signals against the last
// observed values, flagging the entity when any changed. First
// observation only seeds the snapshot; new entities start flagged
// anyway. Caller holds tr.mu.
func (s *System) pollWatchersLocked(tr *entityTracking, watchers []Watcher, id model.EntityID) {
	for _, w := range watchers {
		cur := w.Observe(id)
		prev, seen := tr.watched[w.Name]
		if seen && cur != prev {
			tr.needsUpdate = true
			slog.Debug("watched signal changed",
				"entity", id, "signal", w.Name, "from", prev, "to", cur)
		}
		tr.watched[w.Name] = cur
	}
}

// ApplyEffects lazily updates the entity, then applies combined totals
// to its live stats.
func (s *System) ApplyEffects(id model.EntityID) {
	s.UpdateEntity(id, false)
	s.applicator.Apply(id)
}

// UpdateAll updates every roster entity. Sequential; hosts that want
// per-entity parallelism fan out over UpdateEntity themselves.
func (s *System) UpdateAll(ctx context.Context) error {
	for _, id := range s.roster.ActiveEntities() {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.UpdateEntity(id, false)
	}
	return nil
}

// ApplyAll applies effects to every roster entity.
func (s *System) ApplyAll(ctx context.Context) error {
	for _, id := range s.roster.ActiveEntities() {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.ApplyEffects(id)
	}
	return nil
}

// OnEntityRemoved tears down every per-entity structure. Mandatory on
// permanent removal — tracking maps are keyed by caller-supplied IDs
// the engine cannot detect as stale.
func (s *System) OnEntityRemoved(id model.EntityID) {
	s.mu.Lock()
	delete(s.tracking, id)
	s.mu.Unlock()

	s.registry.RemoveEntity(id)
	s.applicator.Forget(id)
	s.stats.Forget(id)
}

// Tracked reports whether the system holds tracking state for the
// entity. Diagnostic.
func (s *System) Tracked(id model.EntityID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tracking[id]
	return ok
}

// track returns the entity's tracking record, creating it flagged for
// update on first access.
func (s *System) track(id model.EntityID) *entityTracking {
	s.mu.RLock()
	tr := s.tracking[id]
	s.mu.RUnlock()
	if tr != nil {
		return tr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tr = s.tracking[id]; tr == nil {
		tr = &entityTracking{
			needsUpdate: true,
			watched:     make(map[string]float64),
		}
		s.tracking[id] = tr
	}
	return tr
}

// trackedLocked snapshots all tracking records. Caller holds s.mu.
func (s *System) trackedLocked() []*entityTracking {
	out := make([]*entityTracking, 0, len(s.tracking))
	for _, tr := range s.tracking {
		out = append(out, tr)
	}
	return out
}

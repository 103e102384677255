package model

import (
	"math"
	"sync"
)

// Bounds is the valid range of a stat. Stats without declared bounds
// are unclamped.
type Bounds struct {
	Min float64
	Max float64
}

// Arena owns every live entity, keyed by EntityID.
//
// It is an explicit arena: entries exist from Add until Remove, and
// Remove is the synchronous teardown point the host must call when an
// entity permanently leaves the simulation. Nothing here is cleaned
// up by garbage collection.
//
// Thread-safe: the entity map and the bounds table are guarded by
// sync.RWMutex; individual entities carry their own locks.
type Arena struct {
	mu       sync.RWMutex
	entities map[EntityID]*Entity
	bounds   map[string]Bounds

	// removal hooks, fired synchronously from Remove
	onRemove []func(EntityID)
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{
		entities: make(map[EntityID]*Entity),
		bounds:   make(map[string]Bounds),
	}
}

// Add registers the entity. Re-adding an existing ID replaces it.
func (a *Arena) Add(e *Entity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entities[e.ID()] = e
}

// Get returns the entity or nil.
func (a *Arena) Get(id EntityID) *Entity {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.entities[id]
}

// Remove deletes the entity and fires every registered removal hook.
// Hooks run synchronously so dependent subsystems drop their per-entity
// state before Remove returns.
func (a *Arena) Remove(id EntityID) {
	a.mu.Lock()
	_, ok := a.entities[id]
	delete(a.entities, id)
	hooks := a.onRemove
	a.mu.Unlock()

	if !ok {
		return
	}
	for _, hook := range hooks {
		hook(id)
	}
}

// OnRemove registers a teardown hook invoked for every removed entity.
func (a *Arena) OnRemove(hook func(EntityID)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onRemove = append(a.onRemove, hook)
}

// Len returns the number of registered entities.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entities)
}

// ActiveEntities returns the IDs of all live entities.
func (a *Arena) ActiveEntities() []EntityID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]EntityID, 0, len(a.entities))
	for id, e := range a.entities {
		if e.Alive() {
			ids = append(ids, id)
		}
	}
	return ids
}

// SetBounds declares the valid range for a stat name.
func (a *Arena) SetBounds(stat string, min, max float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bounds[stat] = Bounds{Min: min, Max: max}
}

// StatBounds returns the declared range for a stat, or (-Inf, +Inf)
// if none was declared.
func (a *Arena) StatBounds(stat string) (min, max float64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	b, ok := a.bounds[stat]
	if !ok {
		return math.Inf(-1), math.Inf(1)
	}
	return b.Min, b.Max
}

// Stat reads a stat through the arena. Returns false if the entity is
// missing or the stat is undeclared.
func (a *Arena) Stat(id EntityID, stat string) (float64, bool) {
	e := a.Get(id)
	if e == nil {
		return 0, false
	}
	return e.Stat(stat)
}

// SetStat writes a stat through the arena. Returns false if the
// entity is missing or the stat is undeclared.
func (a *Arena) SetStat(id EntityID, stat string, value float64) bool {
	e := a.Get(id)
	if e == nil {
		return false
	}
	return e.SetStat(stat, value)
}

package model

import (
	"sync"
)

// EntityID is the stable identity of a simulated entity.
// IDs are assigned by the host and stay valid until the entity is
// removed from the arena; they are never reused within a session.
type EntityID uint32

// Entity is one simulated subject: a named bag of mutable numeric
// stats plus the coarse progression level the effect system watches.
//
// Thread-safe: all accessors are protected by sync.RWMutex. The
// simulation tick loop and the effect applicator both mutate stats,
// so every access goes through the lock.
type Entity struct {
	mu    sync.RWMutex
	id    EntityID
	name  string
	level int32
	alive bool
	stats map[string]float64
}

// NewEntity creates a live entity with the given starting stats.
// The stats map is copied; the caller keeps ownership of its argument.
func NewEntity(id EntityID, name string, stats map[string]float64) *Entity {
	e := &Entity{
		id:    id,
		name:  name,
		level: 1,
		alive: true,
		stats: make(map[string]float64, len(stats)),
	}
	for k, v := range stats {
		e.stats[k] = v
	}
	return e
}

// ID returns the entity identifier.
func (e *Entity) ID() EntityID { return e.id }

// Name returns the display name.
func (e *Entity) Name() string { return e.name }

// Level returns the progression level.
func (e *Entity) Level() int32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.level
}

// SetLevel sets the progression level.
func (e *Entity) SetLevel(level int32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.level = level
}

// Alive reports whether the entity still participates in ticks.
func (e *Entity) Alive() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.alive
}

// Kill marks the entity dead. Dead entities are skipped by the tick
// loop but keep their state until removed from the arena.
func (e *Entity) Kill() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.alive = false
}

// Stat returns the named stat value and whether it exists.
func (e *Entity) Stat(name string) (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.stats[name]
	return v, ok
}

// SetStat writes the named stat. Returns false if the stat does not
// exist; stats are declared at construction, never created by writes.
func (e *Entity) SetStat(name string, value float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.stats[name]; !ok {
		return false
	}
	e.stats[name] = value
	return true
}

// AdjustStat adds delta to the named stat. Returns the new value and
// whether the stat exists.
func (e *Entity) AdjustStat(name string, delta float64) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.stats[name]
	if !ok {
		return 0, false
	}
	v += delta
	e.stats[name] = v
	return v, true
}

// Stats returns a copy of all stats for inspection.
func (e *Entity) Stats() map[string]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]float64, len(e.stats))
	for k, v := range e.stats {
		out[k] = v
	}
	return out
}

package effect

import (
	"sync"

	"github.com/dmolokov/effectcore/internal/model"
)

// SessionStats accumulates how much each effect has actually saved or
// produced per entity, for diagnostics and persistence. Write-only
// from the engine's point of view: neither combination nor application
// ever reads it back.
//
// All methods are safe on a nil receiver, so the stats sink stays
// optional throughout the engine.
type SessionStats struct {
	mu     sync.Mutex
	totals map[model.EntityID]map[string]float64
}

// NewSessionStats creates an empty accumulator set.
func NewSessionStats() *SessionStats {
	return &SessionStats{totals: make(map[model.EntityID]map[string]float64)}
}

// Add accumulates an amount for one effect on one entity.
func (s *SessionStats) Add(id model.EntityID, effectName string, amount float64) {
	if s == nil || amount == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.totals[id]
	if m == nil {
		m = make(map[string]float64)
		s.totals[id] = m
	}
	m[effectName] += amount
}

// Snapshot returns a copy of one entity's accumulators.
func (s *SessionStats) Snapshot(id model.EntityID) map[string]float64 {
	if s == nil {
		return map[string]float64{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.totals[id]))
	for k, v := range s.totals[id] {
		out[k] = v
	}
	return out
}

// SnapshotAll returns a copy of every entity's accumulators.
func (s *SessionStats) SnapshotAll() map[model.EntityID]map[string]float64 {
	if s == nil {
		return map[model.EntityID]map[string]float64{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[model.EntityID]map[string]float64, len(s.totals))
	for id, m := range s.totals {
		cp := make(map[string]float64, len(m))
		for k, v := range m {
			cp[k] = v
		}
		out[id] = cp
	}
	return out
}

// Reset zeroes one entity's accumulators.
func (s *SessionStats) Reset(id model.EntityID) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.totals, id)
	s.mu.Unlock()
}

// Forget is Reset under its teardown name, called on entity removal.
func (s *SessionStats) Forget(id model.EntityID) { s.Reset(id) }

package effect

import (
	"log/slog"
	"math"
	"sync"

	"github.com/dmolokov/effectcore/internal/model"
)

// StatStore is the entity stat storage the applicator mutates. The
// host simulation owns the actual values and mutates them for its own
// reasons between ticks; the applicator only ever adjusts for the
// drift observed since its last run. model.Arena satisfies it.
type StatStore interface {
	Stat(id model.EntityID, stat string) (float64, bool)
	SetStat(id model.EntityID, stat string, value float64) bool
	StatBounds(stat string) (min, max float64)
}

// BindingKind selects how a combined total reaches a stat.
type BindingKind int8

const (
	// BindReduction dampens externally-driven drift of the stat by the
	// combined fraction, tracked delta by delta.
	BindReduction BindingKind = iota
	// BindRegen adds the combined flat amount each tick, clamped to
	// the stat's bounds.
	BindRegen
	// BindProtection restores part of any fall below a floor derived
	// from the observed peak of another stat.
	BindProtection
)

// Binding connects one catalog effect to one stat.
type Binding struct {
	Effect string
	Stat   string
	Kind   BindingKind

	// DrainDir is the direction the stat moves under strain: +1 rises
	// (hunger), -1 falls (stamina). Zero means +1. Reductions ignore
	// drift against this direction so beneficial changes, like eating,
	// are never dampened.
	DrainDir int

	// PeakStat names the stat whose observed peak derives the
	// protection floor. Empty means the protected stat itself.
	PeakStat string
}

// driftEpsilon filters floating-point noise out of delta tracking.
const driftEpsilon = 1e-6

// Applicator consumes combined totals from the registry and mutates
// live stats through the store.
//
// Reductions are delta-based: a snapshot of the last value this
// applicator wrote lets each tick reduce only that tick's incremental
// drift, so reductions stay exact no matter how often Apply runs and
// never compound against the stat's absolute value.
type Applicator struct {
	registry *Registry
	store    StatStore
	stats    *SessionStats
	bindings []Binding

	mu        sync.Mutex
	snapshots map[model.EntityID]map[string]float64 // stat -> last value written or observed
	peaks     map[model.EntityID]map[string]float64 // stat -> highest value observed
}

// NewApplicator wires the applicator. stats may be nil.
func NewApplicator(registry *Registry, store StatStore, stats *SessionStats, bindings []Binding) *Applicator {
	return &Applicator{
		registry:  registry,
		store:     store,
		stats:     stats,
		bindings:  bindings,
		snapshots: make(map[model.EntityID]map[string]float64),
		peaks:     make(map[model.EntityID]map[string]float64),
	}
}

// Apply runs every binding against one entity. A missing stat aborts
// this entity's application for the tick, logged, never raised — one
// entity's failure must not take the batch down with it.
func (a *Applicator) Apply(id model.EntityID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, b := range a.bindings {
		ok := false
		switch b.Kind {
		case BindReduction:
			ok = a.applyReduction(id, b)
		case BindRegen:
			ok = a.applyRegen(id, b)
		case BindProtection:
			ok = a.applyProtection(id, b)
		}
		if !ok {
			slog.Debug("effect application aborted for entity",
				"entity", id, "effect", b.Effect, "stat", b.Stat)
			return
		}
	}
}

// applyReduction dampens this tick's drift of the bound stat.
//
// delta is the change the external simulation applied since the last
// run. The stat is rewritten to snapshot + delta*(1-fraction), and the
// snapshot always advances to the post-mutation value — reducing a
// historical cumulative change instead would compound the reduction
// tick over tick.
func (a *Applicator) applyReduction(id model.EntityID, b Binding) bool {
	cur, ok := a.store.Stat(id, b.Stat)
	if !ok {
		return false
	}

	snaps := a.snapshotsFor(id)
	prev, seen := snaps[b.Stat]
	if !seen {
		snaps[b.Stat] = cur
		return true
	}

	delta := cur - prev
	dir := float64(b.DrainDir)
	if dir == 0 {
		dir = 1
	}

	frac := clamp01(a.registry.Get(id, b.Effect, 0))
	if math.Abs(delta) < driftEpsilon || delta*dir < 0 || frac == 0 {
		snaps[b.Stat] = cur
		return true
	}

	reduced := delta * frac
	next := prev + (delta - reduced)
	if !a.store.SetStat(id, b.Stat, next) {
		return false
	}
	snaps[b.Stat] = next

	a.stats.Add(id, b.Effect, math.Abs(reduced))
	return true
}

// applyRegen adds the combined flat amount, clamped to the stat's
// bounds. Engine-authored increases resync any reduction snapshot on
// the same stat so they are not misread as external drift next tick.
func (a *Applicator) applyRegen(id model.EntityID, b Binding) bool {
	amount := a.registry.Get(id, b.Effect, 0)
	cur, ok := a.store.Stat(id, b.Stat)
	if !ok {
		return false
	}
	if amount == 0 {
		return true
	}

	min, max := a.store.StatBounds(b.Stat)
	next := cur + amount
	if next > max {
		next = max
	}
	if next < min {
		next = min
	}
	if next == cur {
		return true
	}
	if !a.store.SetStat(id, b.Stat, next) {
		return false
	}
	a.resync(id, b.Stat, next)

	a.stats.Add(id, b.Effect, next-cur)
	return true
}

// applyProtection restores part of any fall below the decay floor.
// The floor is peak*fraction over the observed peak of PeakStat; the
// refund is proportional to the fraction rather than a hard block, so
// decay still moves, just slower.
func (a *Applicator) applyProtection(id model.EntityID, b Binding) bool {
	peakStat := b.PeakStat
	if peakStat == "" {
		peakStat = b.Stat
	}
	peakCur, ok := a.store.Stat(id, peakStat)
	if !ok {
		return false
	}

	peaks := a.peaksFor(id)
	peak, seen := peaks[peakStat]
	if !seen || peakCur > peak {
		peak = peakCur
		peaks[peakStat] = peak
	}

	frac := clamp01(a.registry.Get(id, b.Effect, 0))
	if frac == 0 {
		return true
	}

	cur, ok := a.store.Stat(id, b.Stat)
	if !ok {
		return false
	}

	floor := peak * frac
	if cur >= floor {
		return true
	}

	bonus := (floor - cur) * frac
	min, max := a.store.StatBounds(b.Stat)
	next := cur + bonus
	if next > max {
		next = max
	}
	if next < min {
		next = min
	}
	if !a.store.SetStat(id, b.Stat, next) {
		return false
	}
	a.resync(id, b.Stat, next)

	a.stats.Add(id, b.Effect, next-cur)
	return true
}

// resync advances an existing reduction snapshot to an engine-authored
// value. Caller holds a.mu.
func (a *Applicator) resync(id model.EntityID, stat string, value float64) {
	if snaps, ok := a.snapshots[id]; ok {
		if _, tracked := snaps[stat]; tracked {
			snaps[stat] = value
		}
	}
}

// Forget drops every snapshot and peak for the entity. Part of the
// mandatory teardown on entity removal.
func (a *Applicator) Forget(id model.EntityID) {
	a.mu.Lock()
	delete(a.snapshots, id)
	delete(a.peaks, id)
	a.mu.Unlock()
}

// Snapshot returns the tracked last-observed value for a stat, for
// diagnostics. Second return is false when the stat is untracked.
func (a *Applicator) Snapshot(id model.EntityID, stat string) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	snaps, ok := a.snapshots[id]
	if !ok {
		return 0, false
	}
	v, ok := snaps[stat]
	return v, ok
}

func (a *Applicator) snapshotsFor(id model.EntityID) map[string]float64 {
	snaps := a.snapshots[id]
	if snaps == nil {
		snaps = make(map[string]float64)
		a.snapshots[id] = snaps
	}
	return snaps
}

func (a *Applicator) peaksFor(id model.EntityID) map[string]float64 {
	peaks := a.peaks[id]
	if peaks == nil {
		peaks = make(map[string]float64)
		a.peaks[id] = peaks
	}
	return peaks
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

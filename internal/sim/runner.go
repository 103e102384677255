// Package sim drives the effect engine the way a host game loop
// would: it applies external stat drains, then runs the engine's
// update and apply phases once per tick.
package sim

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmolokov/effectcore/internal/effect"
	"github.com/dmolokov/effectcore/internal/model"
)

// Drain is external, engine-independent stat mutation: the strain the
// simulation applies every tick for its own reasons. The engine's
// reductions must stay exact against it, which is what the delta
// tracking in the applicator is for.
type Drain struct {
	Stat    string
	PerTick float64 // signed; positive raises the stat each tick
}

// FlushFunc persists accumulated session stats. Called on the flush
// interval and once at shutdown.
type FlushFunc func(ctx context.Context) error

// Runner owns the tick loop. Each phase fans out per entity: entities
// are fully independent, only a single entity's update-then-apply
// order matters, and that order is preserved because both phases
// complete for the whole population before the next starts.
type Runner struct {
	arena       *model.Arena
	system      *effect.System
	drains      []Drain
	interval    time.Duration
	parallelism int

	flush         FlushFunc
	flushInterval time.Duration
}

// NewRunner wires the tick loop.
func NewRunner(arena *model.Arena, system *effect.System, drains []Drain, interval time.Duration, parallelism int) *Runner {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Runner{
		arena:       arena,
		system:      system,
		drains:      drains,
		interval:    interval,
		parallelism: parallelism,
	}
}

// WithFlush enables periodic session-stats persistence.
func (r *Runner) WithFlush(flush FlushFunc, interval time.Duration) *Runner {
	r.flush = flush
	r.flushInterval = interval
	return r
}

// Run blocks ticking until the context is canceled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var flushC <-chan time.Time
	if r.flush != nil {
		flushTicker := time.NewTicker(r.flushInterval)
		defer flushTicker.Stop()
		flushC = flushTicker.C
	}

	slog.Info("simulation runner started",
		"interval", r.interval,
		"parallelism", r.parallelism,
		"entities", r.arena.Len())

	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation runner stopping")
			if r.flush != nil {
				if err := r.flush(context.Background()); err != nil {
					slog.Error("final stats flush failed", "err", err)
				}
			}
			return ctx.Err()

		case <-ticker.C:
			if err := r.Step(ctx); err != nil {
				if ctx.Err() != nil {
					continue // shutdown race, the Done branch handles it
				}
				slog.Error("tick failed", "err", err)
			}

		case <-flushC:
			if err := r.flush(ctx); err != nil {
				slog.Error("stats flush failed", "err", err)
			}
		}
	}
}

// Step runs one full tick: drains, then the engine's update and apply
// phases, each fanned out over the live population.
func (r *Runner) Step(ctx context.Context) error {
	ids := r.arena.ActiveEntities()
	if len(ids) == 0 {
		return nil
	}

	r.applyDrains(ids)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for _, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.system.UpdateEntity(id, false)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for _, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.system.ApplyEffects(id)
			return nil
		})
	}
	return g.Wait()
}

// applyDrains mutates stats directly through the arena, bypassing the
// engine entirely — this is the "external simulation" the applicator's
// delta tracking protects against.
func (r *Runner) applyDrains(ids []model.EntityID) {
	for _, id := range ids {
		for _, d := range r.drains {
			e := r.arena.Get(id)
			if e == nil {
				continue
			}
			cur, ok := e.Stat(d.Stat)
			if !ok {
				continue
			}
			min, max := r.arena.StatBounds(d.Stat)
			next := cur + d.PerTick
			if next > max {
				next = max
			}
			if next < min {
				next = min
			}
			e.SetStat(d.Stat, next)
		}
	}
}

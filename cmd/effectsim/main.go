package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmolokov/effectcore/internal/catalog"
	"github.com/dmolokov/effectcore/internal/config"
	"github.com/dmolokov/effectcore/internal/db"
	"github.com/dmolokov/effectcore/internal/effect"
	"github.com/dmolokov/effectcore/internal/model"
	"github.com/dmolokov/effectcore/internal/sim"
)

const defaultConfigPath = "config/effectsim.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := defaultConfigPath
	if p := os.Getenv("EFFECTSIM_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		// Missing file means run on defaults; anything else is fatal.
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = config.Default()
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("effectsim starting", "log_level", cfg.LogLevel, "tick", cfg.TickInterval())

	cat := catalog.Builtin()
	if cfg.CatalogOverlay != "" {
		cat, err = catalog.LoadOverlay(cfg.CatalogOverlay)
		if err != nil {
			return fmt.Errorf("loading catalog overlay: %w", err)
		}
		slog.Info("catalog overlay loaded", "version", cat.Version, "effects", cat.Len())
	}

	arena := buildArena(cfg.Entities)

	registry := effect.NewRegistry(cat)
	stats := effect.NewSessionStats()
	applicator := effect.NewApplicator(registry, arena, stats, bindings())
	system := effect.NewSystem(registry, applicator, stats, arena)

	// Teardown: the host arena is the one place that learns about
	// permanent removal, so it owns forwarding the notification.
	arena.OnRemove(system.OnEntityRemoved)

	system.RegisterWatcher(effect.Watcher{
		Name: "level",
		Observe: func(id model.EntityID) float64 {
			e := arena.Get(id)
			if e == nil {
				return 0
			}
			return float64(e.Level())
		},
	})

	registerProviders(system, arena)

	runner := sim.NewRunner(arena, system, drains(), cfg.TickInterval(), cfg.Parallelism)

	if cfg.Database.Enabled() {
		if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
		conn, err := db.New(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connecting: %w", err)
		}
		defer conn.Close()

		repo := db.NewSessionStatsRepository(conn.Pool())
		runner.WithFlush(func(ctx context.Context) error {
			totals := stats.SnapshotAll()
			if err := repo.SaveAll(ctx, totals); err != nil {
				return err
			}
			for id := range totals {
				stats.Reset(id)
			}
			return nil
		}, cfg.StatsFlushInterval())
		slog.Info("session stats persistence enabled",
			"flush_interval", cfg.StatsFlushInterval())
	}

	return runner.Run(ctx)
}

// buildArena populates the demo world: survivors with depleting
// vitals, each stat bounded 0..100.
func buildArena(count int) *model.Arena {
	arena := model.NewArena()
	for _, stat := range []string{"hunger", "thirst", "fatigue", "stamina", "health"} {
		arena.SetBounds(stat, 0, 100)
	}
	for i := range count {
		id := model.EntityID(i + 1)
		e := model.NewEntity(id, fmt.Sprintf("survivor-%d", id), map[string]float64{
			"hunger":  10,
			"thirst":  10,
			"fatigue": 0,
			"stamina": 100,
			"health":  100,
		})
		e.SetLevel(int32(1 + i%5))
		arena.Add(e)
	}
	return arena
}

// bindings connects catalog effects to the stats they act on.
func bindings() []effect.Binding {
	return []effect.Binding{
		{Effect: "hunger_reduction", Stat: "hunger", Kind: effect.BindReduction, DrainDir: 1},
		{Effect: "thirst_reduction", Stat: "thirst", Kind: effect.BindReduction, DrainDir: 1},
		{Effect: "fatigue_reduction", Stat: "fatigue", Kind: effect.BindReduction, DrainDir: 1},
		{Effect: "stamina_regen", Stat: "stamina", Kind: effect.BindRegen},
		{Effect: "health_regen", Stat: "health", Kind: effect.BindRegen},
		{Effect: "health_decay_protection", Stat: "health", Kind: effect.BindProtection},
	}
}

// drains is the external strain the tick loop applies regardless of
// the engine: vitals worsen every tick.
func drains() []sim.Drain {
	return []sim.Drain{
		{Stat: "hunger", PerTick: 1.5},
		{Stat: "thirst", PerTick: 2},
		{Stat: "fatigue", PerTick: 1},
		{Stat: "stamina", PerTick: -0.5},
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

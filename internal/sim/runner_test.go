package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmolokov/effectcore/internal/catalog"
	"github.com/dmolokov/effectcore/internal/effect"
	"github.com/dmolokov/effectcore/internal/model"
)

func newTestRunner(t *testing.T, entities int, drains []Drain) (*Runner, *model.Arena, *effect.System) {
	t.Helper()
	arena := model.NewArena()
	arena.SetBounds("hunger", 0, 100)
	for i := range entities {
		id := model.EntityID(i + 1)
		arena.Add(model.NewEntity(id, "e", map[string]float64{"hunger": 10}))
	}

	registry := effect.NewRegistry(catalog.Builtin())
	app := effect.NewApplicator(registry, arena, nil, []effect.Binding{
		{Effect: "hunger_reduction", Stat: "hunger", Kind: effect.BindReduction, DrainDir: 1},
	})
	system := effect.NewSystem(registry, app, nil, arena)

	return NewRunner(arena, system, drains, time.Minute, 4), arena, system
}

func TestStep_ReducesExternalDrift(t *testing.T) {
	r, arena, system := newTestRunner(t, 3, []Drain{{Stat: "hunger", PerTick: 2}})
	system.RegisterProvider(&effect.Func{
		Source: "buff",
		Calculate: func(model.EntityID) []effect.EffectValue {
			return []effect.EffectValue{{Name: "hunger_reduction", Value: 0.5}}
		},
	})

	ctx := context.Background()
	for range 3 {
		require.NoError(t, r.Step(ctx))
	}

	// Tick 1 drains to 12 and seeds the tracking snapshot; ticks 2 and 3
	// each see 2 points of drift and halve it.
	for _, id := range arena.ActiveEntities() {
		v, ok := arena.Stat(id, "hunger")
		require.True(t, ok)
		assert.InDelta(t, 14.0, v, 1e-9, "entity %d", id)
	}
}

func TestStep_DrainsClampToBounds(t *testing.T) {
	r, arena, _ := newTestRunner(t, 1, []Drain{{Stat: "hunger", PerTick: 60}})

	ctx := context.Background()
	require.NoError(t, r.Step(ctx))
	require.NoError(t, r.Step(ctx))

	v, _ := arena.Stat(1, "hunger")
	assert.Equal(t, 100.0, v)
}

func TestStep_EmptyPopulationIsNoOp(t *testing.T) {
	r, _, _ := newTestRunner(t, 0, nil)
	assert.NoError(t, r.Step(context.Background()))
}

func TestStep_CanceledContext(t *testing.T) {
	r, _, _ := newTestRunner(t, 2, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, r.Step(ctx), context.Canceled)
}

func TestRun_StopsOnCancel(t *testing.T) {
	r, _, _ := newTestRunner(t, 1, nil)
	r.interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop on cancel")
	}
}

func TestRun_FinalFlushOnShutdown(t *testing.T) {
	r, _, _ := newTestRunner(t, 1, nil)
	r.interval = time.Millisecond

	flushed := make(chan struct{}, 1)
	r.WithFlush(func(context.Context) error {
		select {
		case flushed <- struct{}{}:
		default:
		}
		return nil
	}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(5 * time.Millisecond)
	cancel()
	<-done

	select {
	case <-flushed:
	default:
		t.Fatal("shutdown must flush session stats")
	}
}

package main

import (
	"time"

	"github.com/dmolokov/effectcore/internal/effect"
	"github.com/dmolokov/effectcore/internal/model"
)

// Demo sources. Real deployments bring their own (progression trees,
// equipment, zone auras); the engine only ever sees the Provider
// contract.

func registerProviders(system *effect.System, arena *model.Arena) {
	system.RegisterProvider(progressionProvider(arena))
	system.RegisterProvider(equipmentProvider())
	system.RegisterProvider(rationBuffProvider(time.Now().Add(2 * time.Hour)))
}

// progressionProvider scales reductions with the entity's level. The
// level watcher registered in run() picks up level changes without an
// explicit MarkDirty.
func progressionProvider(arena *model.Arena) effect.Provider {
	return &effect.Func{
		Source: "progression",
		Prio:   10,
		Calculate: func(id model.EntityID) []effect.EffectValue {
			e := arena.Get(id)
			if e == nil {
				return nil
			}
			lvl := float64(e.Level())
			return []effect.EffectValue{
				{Name: "hunger_reduction", Value: 0.05 * lvl},
				{Name: "fatigue_reduction", Value: 0.04 * lvl},
				{Name: "stamina_regen", Value: 0.2 * lvl},
			}
		},
	}
}

// equipmentProvider is a static gear loadout.
func equipmentProvider() effect.Provider {
	return &effect.Func{
		Source: "equipment",
		Prio:   5,
		Calculate: func(id model.EntityID) []effect.EffectValue {
			return []effect.EffectValue{
				{Name: "hunger_reduction", Value: 0.15, Metadata: map[string]any{"item": "insulated belt"}},
				{Name: "carry_capacity", Value: 1.25},
				{Name: "health_decay_protection", Value: 0.5},
			}
		},
	}
}

// rationBuffProvider retracts itself when the ration wears off,
// exercising the clean-retraction path of the provider bridge.
func rationBuffProvider(until time.Time) effect.Provider {
	return &effect.Func{
		Source: "ration_buff",
		Prio:   20,
		Applies: func(id model.EntityID) bool {
			return time.Now().Before(until)
		},
		Calculate: func(id model.EntityID) []effect.EffectValue {
			return []effect.EffectValue{
				{Name: "hunger_reduction", Value: 0.3},
				{Name: "health_regen", Value: 0.5},
			}
		},
	}
}

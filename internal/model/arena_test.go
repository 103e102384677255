package model

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEntity(id EntityID, name string) *Entity {
	return NewEntity(id, name, map[string]float64{"hunger": 10, "stamina": 100})
}

func TestArena_AddGetRemove(t *testing.T) {
	a := NewArena()
	e := newTestEntity(1, "first")
	a.Add(e)

	require.Equal(t, e, a.Get(1))
	assert.Equal(t, 1, a.Len())

	a.Remove(1)
	assert.Nil(t, a.Get(1))
	assert.Equal(t, 0, a.Len())
}

func TestArena_RemoveFiresHooksOnce(t *testing.T) {
	a := NewArena()
	a.Add(newTestEntity(1, "first"))

	var removed []EntityID
	a.OnRemove(func(id EntityID) { removed = append(removed, id) })

	a.Remove(1)
	a.Remove(1) // second removal of a gone entity must not re-fire

	assert.Equal(t, []EntityID{1}, removed)
}

func TestArena_ActiveEntitiesSkipsDead(t *testing.T) {
	a := NewArena()
	a.Add(newTestEntity(1, "alive"))
	dead := newTestEntity(2, "dead")
	dead.Kill()
	a.Add(dead)

	assert.Equal(t, []EntityID{1}, a.ActiveEntities())
}

func TestArena_StatBounds(t *testing.T) {
	a := NewArena()
	a.SetBounds("hunger", 0, 100)

	min, max := a.StatBounds("hunger")
	assert.Equal(t, 0.0, min)
	assert.Equal(t, 100.0, max)

	min, max = a.StatBounds("undeclared")
	assert.True(t, math.IsInf(min, -1))
	assert.True(t, math.IsInf(max, 1))
}

func TestArena_StatAccess(t *testing.T) {
	a := NewArena()
	a.Add(newTestEntity(1, "first"))

	v, ok := a.Stat(1, "hunger")
	require.True(t, ok)
	assert.Equal(t, 10.0, v)

	_, ok = a.Stat(99, "hunger")
	assert.False(t, ok, "missing entity")
	_, ok = a.Stat(1, "mana")
	assert.False(t, ok, "undeclared stat")

	assert.True(t, a.SetStat(1, "hunger", 42))
	v, _ = a.Stat(1, "hunger")
	assert.Equal(t, 42.0, v)

	assert.False(t, a.SetStat(1, "mana", 1), "writes never create stats")
}

func TestEntity_AdjustStat(t *testing.T) {
	e := newTestEntity(1, "first")

	v, ok := e.AdjustStat("hunger", 5.5)
	require.True(t, ok)
	assert.Equal(t, 15.5, v)

	_, ok = e.AdjustStat("mana", 1)
	assert.False(t, ok)
}

func TestEntity_StatsIsACopy(t *testing.T) {
	e := newTestEntity(1, "first")
	snapshot := e.Stats()
	snapshot["hunger"] = 999

	v, _ := e.Stat("hunger")
	assert.Equal(t, 10.0, v)
}

func TestEntity_ConcurrentStatAccess(t *testing.T) {
	e := newTestEntity(1, "first")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 100 {
				e.AdjustStat("hunger", 1)
			}
		}()
		go func() {
			defer wg.Done()
			for range 100 {
				e.Stat("hunger")
			}
		}()
	}
	wg.Wait()

	v, _ := e.Stat("hunger")
	assert.Equal(t, 810.0, v)
}

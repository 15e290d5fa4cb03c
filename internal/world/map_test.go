package world

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/udisondev/realmkeep/internal/charmgr"
	"github.com/udisondev/realmkeep/internal/model"
)

func newSpawnedCharacter(id uint64, x, y float32) *model.Character {
	c := model.NewCharacter(id, int64(id), "char", 0)
	c.Pos = model.Position{X: x, Y: y}
	return c
}

func TestInterestEnterLeave(t *testing.T) {
	cm := charmgr.New()
	c1 := newSpawnedCharacter(1, 0, 0)
	c2 := newSpawnedCharacter(2, 4999, 0)
	cm.Add(c1)
	cm.Add(c2)

	m := NewMap(0)
	m.Push(1)
	m.Push(2)

	require.NoError(t, m.Tick(cm))

	_, c1SeesC2 := c1.InterestSet[2]
	_, c2SeesC1 := c2.InterestSet[1]
	require.True(t, c1SeesC2)
	require.True(t, c2SeesC1)

	hasCreateFor := func(c *model.Character, guid uint64) bool {
		for _, u := range c.PendingUpdates {
			if u.Kind == model.UpdateBlockCreate && u.GUID == guid {
				return true
			}
		}
		return false
	}
	require.True(t, hasCreateFor(c1, 2))
	require.True(t, hasCreateFor(c2, 1))

	c1.PendingUpdates = nil
	c2.PendingUpdates = nil

	c2.Pos.X = 5001
	require.NoError(t, m.Tick(cm))

	require.Empty(t, c1.InterestSet)
	require.Empty(t, c2.InterestSet)

	hasDestroyFor := func(c *model.Character, guid uint64) bool {
		for _, u := range c.PendingUpdates {
			if u.Kind == model.UpdateBlockDestroy && u.GUID == guid {
				return true
			}
		}
		return false
	}
	require.True(t, hasDestroyFor(c1, 2))
	require.True(t, hasDestroyFor(c2, 1))
}

func TestValuesUpdateClearsDirtyMask(t *testing.T) {
	cm := charmgr.New()
	c := newSpawnedCharacter(1, 0, 0)
	cm.Add(c)

	m := NewMap(0)
	m.Push(1)
	require.NoError(t, m.Tick(cm))

	c.Mask.MarkDirty(0, 42)
	require.True(t, c.Mask.HasAnyDirtyFields())

	require.NoError(t, m.Tick(cm))
	require.False(t, c.Mask.HasAnyDirtyFields())

	found := false
	for _, u := range c.PendingUpdates {
		if u.Kind == model.UpdateBlockValues {
			found = true
		}
	}
	require.True(t, found)
}

func TestSpatialIndexMatchesCharactersOnMapAfterTick(t *testing.T) {
	cm := charmgr.New()
	c1 := newSpawnedCharacter(1, 0, 0)
	c2 := newSpawnedCharacter(2, 100, 100)
	cm.Add(c1)
	cm.Add(c2)

	m := NewMap(0)
	m.Push(1)
	m.Push(2)
	require.NoError(t, m.Tick(cm))

	require.True(t, m.Contains(1))
	require.True(t, m.Contains(2))

	m.Remove(1)
	require.NoError(t, m.Tick(cm))
	require.False(t, m.Contains(1))
	require.True(t, m.Contains(2))
}

func TestUnspawnedCharacterSkipsInterestUpdate(t *testing.T) {
	cm := charmgr.New()
	c := model.NewCharacter(1, 1, "unspawned", 0)
	cm.Add(c)

	m := NewMap(0)
	// Not pushed, so HasSpawned() is false and Tick must not panic on the
	// missing position.
	require.NoError(t, m.Tick(cm))
	require.Empty(t, c.InterestSet)
}

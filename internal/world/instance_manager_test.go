package world

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/udisondev/realmkeep/internal/charmgr"
)

func TestGetOrCreateMapIsIdempotent(t *testing.T) {
	im := NewInstanceManager()
	a := im.GetOrCreateMap(0, 0)
	b := im.GetOrCreateMap(0, 0)
	require.Same(t, a, b)
}

func TestHandleClientDisconnectedEnqueuesRemoval(t *testing.T) {
	cm := charmgr.New()
	c := newSpawnedCharacter(1, 0, 0)
	cm.Add(c)

	im := NewInstanceManager()
	m := im.GetOrCreateMap(0, 0)
	m.Push(1)
	require.NoError(t, m.Tick(cm))
	require.True(t, m.Contains(1))

	require.NoError(t, im.HandleClientDisconnected(c))
	require.NoError(t, im.Tick(cm))
	require.False(t, m.Contains(1))
}

func TestEmptyMapIsReapedAfterTick(t *testing.T) {
	im := NewInstanceManager()
	cm := charmgr.New()

	im.GetOrCreateMap(5, 0) // created but never pushed to, empty from the start
	require.NoError(t, im.Tick(cm))

	_, stillThere := im.worldMaps[5]
	require.False(t, stillThere)
}

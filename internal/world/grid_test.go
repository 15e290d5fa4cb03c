package world

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGridWithinDistance(t *testing.T) {
	g := newGrid()
	g.insert(1, 0, 0)
	g.insert(2, 4999, 0)
	g.insert(3, 5001, 0)
	g.insert(4, 20000, 20000)

	near := g.withinDistance(0, 0, 5000)
	require.Contains(t, near, uint64(1))
	require.Contains(t, near, uint64(2))
	require.NotContains(t, near, uint64(3))
	require.NotContains(t, near, uint64(4))
}

func TestGridSpansCellBoundary(t *testing.T) {
	g := newGrid()
	// Two points close together but straddling a cell boundary must still
	// find each other.
	g.insert(1, -1, 0)
	g.insert(2, 1, 0)

	near := g.withinDistance(-1, 0, 5000)
	require.Contains(t, near, uint64(2))
}

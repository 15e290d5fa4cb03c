// Package world is the instance/map manager and map tick engine (C6/C7):
// spatial index rebuild, interest-set maintenance, object-update block
// composition, and fan-out to in-range observers.
package world

import (
	"math"

	"github.com/udisondev/realmkeep/internal/constants"
)

// grid is a bulk-rebuilt-every-tick spatial index over (x, y), bucketed
// into cells sized to VisibilityRange. A range query inspects every cell
// within ceil(radius/cellSize)+1 cells of the query point's cell, which for
// a VisibilityRange query is the 5x5 neighborhood. Grid-hash is the Go-
// idiomatic stand-in for an R-tree — no spatial-index library exists
// anywhere in the reference pack, and spec.md §9 names a grid-hash as the
// natural alternative.
type grid struct {
	cellSize float64
	cells    map[cellKey][]gridEntry
}

type cellKey struct{ cx, cy int64 }

type gridEntry struct {
	guid uint64
	x, y float64
}

func newGrid() *grid {
	return &grid{cellSize: constants.VisibilityRange, cells: make(map[cellKey][]gridEntry)}
}

func (g *grid) cellFor(x, y float64) cellKey {
	return cellKey{int64(math.Floor(x / g.cellSize)), int64(math.Floor(y / g.cellSize))}
}

func (g *grid) insert(guid uint64, x, y float64) {
	k := g.cellFor(x, y)
	g.cells[k] = append(g.cells[k], gridEntry{guid: guid, x: x, y: y})
}

// withinDistance returns every guid within radius of (x, y), including
// guid itself if it is among the entries (callers filter self-matches).
func (g *grid) withinDistance(x, y, radius float64) []uint64 {
	r2 := radius * radius
	cx, cy := g.cellFor(x, y)
	span := int64(math.Ceil(radius/g.cellSize)) + 1

	var out []uint64
	for dx := -span; dx <= span; dx++ {
		for dy := -span; dy <= span; dy++ {
			entries, ok := g.cells[cellKey{cx + dx, cy + dy}]
			if !ok {
				continue
			}
			for _, e := range entries {
				ddx := e.x - x
				ddy := e.y - y
				if ddx*ddx+ddy*ddy <= r2 {
					out = append(out, e.guid)
				}
			}
		}
	}
	return out
}

package world

import (
	"fmt"

	"github.com/udisondev/realmkeep/internal/charmgr"
	"github.com/udisondev/realmkeep/internal/constants"
	"github.com/udisondev/realmkeep/internal/model"
)

// Map is a shared persistent world map or a private instance copy (C6/C7).
// Invariant: between ticks the spatial index reflects exactly the ids in
// charactersOnMap using the last observed position (spec.md §3).
type Map struct {
	id uint32

	charactersOnMap map[uint64]struct{}
	index           *grid

	addQueue    []uint64
	removeQueue []uint64
}

// NewMap returns an empty map with id.
func NewMap(id uint32) *Map {
	return &Map{
		id:              id,
		charactersOnMap: make(map[uint64]struct{}),
		index:           newGrid(),
	}
}

// ID returns the map's id.
func (m *Map) ID() uint32 { return m.id }

// Push enqueues a character to be added to the map on the next tick.
func (m *Map) Push(guid uint64) {
	m.addQueue = append(m.addQueue, guid)
}

// Remove enqueues a character to be removed from the map on the next tick.
func (m *Map) Remove(guid uint64) {
	m.removeQueue = append(m.removeQueue, guid)
}

// Contains reports whether guid is currently on this map.
func (m *Map) Contains(guid uint64) bool {
	_, ok := m.charactersOnMap[guid]
	return ok
}

// ShouldShutdown reports whether this map is a shutdown candidate (no
// characters on it). The instance manager checks it right after ticking the
// map and removes an empty map in that same tick.
func (m *Map) ShouldShutdown() bool {
	return len(m.charactersOnMap) == 0
}

// Tick runs one pass of the tick sequence spec.md §4.6 describes: rebuild
// the spatial index, drain the remove queue, drain the add queue, then for
// every character on the map run the interest/values/out-of-range update
// steps. The resulting blocks are left on each character's PendingUpdates;
// sending them to the wire is up to the caller.
func (m *Map) Tick(cm *charmgr.Manager) error {
	m.rebuildIndex(cm)

	if err := m.drainRemoveQueue(cm); err != nil {
		return err
	}
	m.rebuildIndex(cm)

	if err := m.drainAddQueue(cm); err != nil {
		return err
	}

	for guid := range m.charactersOnMap {
		c, err := cm.Get(guid)
		if err != nil {
			return err
		}
		if !c.HasSpawned() {
			continue
		}
		if err := m.updateInterestSet(cm, c); err != nil {
			return err
		}
		if c.Mask.HasAnyDirtyFields() {
			m.flushValuesUpdate(cm, c)
		}
		if len(c.RecentlyRemoved) > 0 {
			flushOutOfRangeUpdate(c)
		}
	}
	return nil
}

func (m *Map) rebuildIndex(cm *charmgr.Manager) {
	m.index = newGrid()
	for guid := range m.charactersOnMap {
		c, ok := cm.Find(guid)
		if !ok || !c.HasSpawned() {
			continue
		}
		m.index.insert(guid, float64(c.Pos.X), float64(c.Pos.Y))
	}
}

func (m *Map) drainRemoveQueue(cm *charmgr.Manager) error {
	queue := m.removeQueue
	m.removeQueue = nil

	for _, guid := range queue {
		if _, ok := m.charactersOnMap[guid]; !ok {
			continue
		}
		c, err := cm.Get(guid)
		if err != nil {
			return err
		}
		for observer := range c.InterestSet {
			if oc, ok := cm.Find(observer); ok {
				oc.PendingUpdates = append(oc.PendingUpdates, model.UpdateBlock{Kind: model.UpdateBlockDestroy, GUID: guid})
				delete(oc.InterestSet, guid)
			}
		}
		c.InterestSet = make(map[uint64]struct{})
		delete(m.charactersOnMap, guid)
	}
	return nil
}

func (m *Map) drainAddQueue(cm *charmgr.Manager) error {
	queue := m.addQueue
	m.addQueue = nil

	for _, guid := range queue {
		c, err := cm.Get(guid)
		if err != nil {
			return err
		}
		c.OnPushedToMap = true
		m.charactersOnMap[guid] = struct{}{}
		m.index.insert(guid, float64(c.Pos.X), float64(c.Pos.Y))
	}
	return nil
}

func (m *Map) updateInterestSet(cm *charmgr.Manager, c *model.Character) error {
	neighbors := m.index.withinDistance(float64(c.Pos.X), float64(c.Pos.Y), constants.VisibilityRange)
	newSet := make(map[uint64]struct{}, len(neighbors))
	for _, g := range neighbors {
		if g == c.ID {
			continue
		}
		newSet[g] = struct{}{}
	}

	for old := range c.InterestSet {
		if _, stillIn := newSet[old]; !stillIn {
			c.PendingUpdates = append(c.PendingUpdates, model.UpdateBlock{Kind: model.UpdateBlockDestroy, GUID: old})
			delete(c.InterestSet, old)
		}
	}

	for g := range newSet {
		if _, already := c.InterestSet[g]; already {
			continue
		}
		other, err := cm.Get(g)
		if err != nil {
			return fmt.Errorf("world: interest-set neighbor: %w", err)
		}

		c.PendingUpdates = append(c.PendingUpdates, createBlock(other))
		c.InterestSet[g] = struct{}{}

		other.PendingUpdates = append(other.PendingUpdates, createBlock(c))
		other.InterestSet[c.ID] = struct{}{}
	}

	return nil
}

func (m *Map) flushValuesUpdate(cm *charmgr.Manager, c *model.Character) {
	block := valuesBlock(c)

	c.PendingUpdates = append(c.PendingUpdates, block)
	for observer := range c.InterestSet {
		if oc, ok := cm.Find(observer); ok {
			oc.PendingUpdates = append(oc.PendingUpdates, block)
		}
	}
	c.Mask.Clear()
}

func flushOutOfRangeUpdate(c *model.Character) {
	for _, guid := range c.RecentlyRemoved {
		c.PendingUpdates = append(c.PendingUpdates, model.UpdateBlock{Kind: model.UpdateBlockDestroy, GUID: guid})
	}
	c.RecentlyRemoved = nil
}

// createBlock builds the full field image of target, per spec.md §4.6:
// object type, guid, movement block, and a dense image of non-default
// fields. Movement/field schema encoding is delegated to the protocol
// library this module treats as an external collaborator; here the block
// carries the position as the dense field image.
func createBlock(target *model.Character) model.UpdateBlock {
	return model.UpdateBlock{
		Kind:   model.UpdateBlockCreate,
		GUID:   target.ID,
		Fields: []uint32{uint32(target.Pos.X), uint32(target.Pos.Y), uint32(target.Pos.Z)},
	}
}

func valuesBlock(c *model.Character) model.UpdateBlock {
	return model.UpdateBlock{
		Kind:   model.UpdateBlockValues,
		GUID:   c.ID,
		Mask:   c.Mask.DirtyBitmask(),
		Values: c.Mask.Values(),
	}
}

package world

import (
	"fmt"

	"github.com/udisondev/realmkeep/internal/charmgr"
	"github.com/udisondev/realmkeep/internal/model"
)

// InstanceManager owns two dictionaries: shared persistent world maps keyed
// by map id, and per-group private instance copies keyed by instance id
// (spec.md §4.7).
type InstanceManager struct {
	worldMaps map[uint32]*Map
	instances map[uint32]*Map
}

// NewInstanceManager returns an empty instance manager.
func NewInstanceManager() *InstanceManager {
	return &InstanceManager{
		worldMaps: make(map[uint32]*Map),
		instances: make(map[uint32]*Map),
	}
}

// IsInstance distinguishes private instance ids from shared world map ids.
// A stub pending DBC-derived instance data, as in the source this module is
// grounded on: it always reports false until static map data is wired in.
func (im *InstanceManager) IsInstance(mapID uint32) bool {
	return false
}

// GetOrCreateMap returns the correct map for (mapID, instanceID), creating
// it lazily.
func (im *InstanceManager) GetOrCreateMap(mapID, instanceID uint32) *Map {
	if im.IsInstance(mapID) {
		if m, ok := im.instances[instanceID]; ok {
			return m
		}
		m := NewMap(instanceID)
		im.instances[instanceID] = m
		return m
	}

	if m, ok := im.worldMaps[mapID]; ok {
		return m
	}
	m := NewMap(mapID)
	im.worldMaps[mapID] = m
	return m
}

// HandleClientDisconnected enqueues the character's removal from its
// current map.
func (im *InstanceManager) HandleClientDisconnected(c *model.Character) error {
	if !c.HasSpawned() {
		return nil
	}
	m := im.GetOrCreateMap(c.MapID, c.InstanceID)
	m.Remove(c.ID)
	return nil
}

// Tick advances every live map by one tick, then reaps maps left empty by
// that tick — a map created and pushed-to within the same cycle still gets
// its add_queue drained before the emptiness check runs.
func (im *InstanceManager) Tick(cm *charmgr.Manager) error {
	for id, m := range im.worldMaps {
		if err := m.Tick(cm); err != nil {
			return fmt.Errorf("world: ticking map %d: %w", id, err)
		}
		if m.ShouldShutdown() {
			delete(im.worldMaps, id)
		}
	}
	for id, m := range im.instances {
		if err := m.Tick(cm); err != nil {
			return fmt.Errorf("world: ticking instance %d: %w", id, err)
		}
		if m.ShouldShutdown() {
			delete(im.instances, id)
		}
	}
	return nil
}

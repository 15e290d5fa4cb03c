// Package charmgr is the character manager (C5): a plain keyed store over
// character id, with no locking of its own because all access is mediated
// by the realm session manager's single-task ownership (spec.md §4.5).
package charmgr

import (
	"fmt"
	"strings"

	"github.com/udisondev/realmkeep/internal/model"
)

// Manager is a lookup-by-id store of live character entities.
type Manager struct {
	characters map[uint64]*model.Character
}

// New returns an empty character manager.
func New() *Manager {
	return &Manager{characters: make(map[uint64]*model.Character)}
}

// Add registers a character.
func (m *Manager) Add(c *model.Character) {
	m.characters[c.ID] = c
}

// Get returns the character with id, or an error if it isn't present.
func (m *Manager) Get(id uint64) (*model.Character, error) {
	c, ok := m.characters[id]
	if !ok {
		return nil, fmt.Errorf("charmgr: character %d not found", id)
	}
	return c, nil
}

// Find returns the character with id and whether it was present, without
// constructing an error for the not-found case.
func (m *Manager) Find(id uint64) (*model.Character, bool) {
	c, ok := m.characters[id]
	return c, ok
}

// FindByName looks a character up case-insensitively, trimmed, matching
// the realm session manager's by-name lookup contract (spec.md §4.4).
func (m *Manager) FindByName(name string) (*model.Character, bool) {
	name = strings.TrimSpace(name)
	for _, c := range m.characters {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return nil, false
}

// Remove deletes a character from the manager.
func (m *Manager) Remove(id uint64) {
	delete(m.characters, id)
}

// Len returns the number of live characters.
func (m *Manager) Len() int {
	return len(m.characters)
}

package charmgr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/udisondev/realmkeep/internal/model"
)

func TestAddGetRemove(t *testing.T) {
	m := New()
	c := model.NewCharacter(1, 100, "Alice", 0)
	m.Add(c)

	got, err := m.Get(1)
	require.NoError(t, err)
	require.Equal(t, c, got)

	m.Remove(1)
	_, err = m.Get(1)
	require.Error(t, err)
}

func TestFindByNameCaseInsensitiveTrimmed(t *testing.T) {
	m := New()
	m.Add(model.NewCharacter(1, 100, "Alice", 0))

	c, ok := m.FindByName("  ALICE  ")
	require.True(t, ok)
	require.EqualValues(t, 1, c.ID)

	_, ok = m.FindByName("bob")
	require.False(t, ok)
}

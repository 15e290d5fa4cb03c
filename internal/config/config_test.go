package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAuthRequiresEnv(t *testing.T) {
	_, err := LoadAuth("/nonexistent/path.yaml")
	require.Error(t, err)
}

func TestLoadAuthAppliesEnv(t *testing.T) {
	t.Setenv("AUTH_DATABASE_URL", "postgres://x/auth")
	t.Setenv("DB_CONNECT_TIMEOUT_SECONDS", "5")

	cfg, err := LoadAuth("/nonexistent/path.yaml")
	require.NoError(t, err)
	require.Equal(t, "postgres://x/auth", cfg.DatabaseURL)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadRealmRequiresRealmID(t *testing.T) {
	t.Setenv("AUTH_DATABASE_URL", "postgres://x/auth")
	t.Setenv("REALM_DATABASE_URL", "postgres://x/realm")
	t.Setenv("GAME_DATABASE_URL", "postgres://x/game")
	t.Setenv("DB_CONNECT_TIMEOUT_SECONDS", "5")

	_, err := LoadRealm("/nonexistent/path.yaml")
	require.Error(t, err)

	t.Setenv("REALM_ID", "1")
	cfg, err := LoadRealm("/nonexistent/path.yaml")
	require.NoError(t, err)
	require.EqualValues(t, 1, cfg.RealmID)
}

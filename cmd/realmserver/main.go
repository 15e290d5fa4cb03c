// Command realmserver runs the realm/world service (spec.md §4.4-§4.8): it
// authenticates realm connections against the session key a successful
// auth-service logon left behind, then simulates the world at a fixed tick
// rate — interest management, object-update diffing, and the
// teleport/movement state machines.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/udisondev/realmkeep/internal/config"
	"github.com/udisondev/realmkeep/internal/db"
	"github.com/udisondev/realmkeep/internal/realm"
)

const configPathEnv = "REALMSERVER_CONFIG"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := "config/realmserver.yaml"
	if p := os.Getenv(configPathEnv); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadRealm(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	})))
	slog.Info("realm server starting", "bind", cfg.BindAddress, "port", cfg.Port, "realm_id", cfg.RealmID)

	connectCtx, cancelConnect := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancelConnect()

	authPool, err := db.Connect(connectCtx, cfg.AuthDatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to auth database: %w", err)
	}
	defer authPool.Close()

	realmPool, err := db.Connect(connectCtx, cfg.RealmDatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to realm database: %w", err)
	}
	defer realmPool.Close()

	gamePool, err := db.Connect(connectCtx, cfg.GameDatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to game database: %w", err)
	}
	defer gamePool.Close()
	slog.Info("database pools connected")

	// The realm server only reads the auth database (its own realms row
	// and session-key checks on CMSG_AUTH_SESSION); it never owns that
	// schema, so it does not migrate authPool.
	if err := db.RunMigrations(ctx, cfg.RealmDatabaseURL, "realm"); err != nil {
		return fmt.Errorf("running realm database migrations: %w", err)
	}
	if err := db.RunMigrations(ctx, cfg.GameDatabaseURL, "game"); err != nil {
		return fmt.Errorf("running game database migrations: %w", err)
	}
	slog.Info("database migrations applied")

	realmEntry, err := db.NewPostgresRealmRepository(authPool).GetRealm(ctx, cfg.RealmID)
	if err != nil {
		return fmt.Errorf("loading realm %d: %w", cfg.RealmID, err)
	}
	cfg.BindAddress = realmEntry.Address
	cfg.Port = realmEntry.Port
	slog.Info("realm bind address loaded", "bind", cfg.BindAddress, "port", cfg.Port)

	accounts := db.NewPostgresAccountRepository(authPool)
	characters := db.NewPostgresCharacterRepository(realmPool)
	items := db.NewPostgresItemRepository(gamePool)
	areaTriggerRepo := db.NewPostgresAreaTriggerRepository(gamePool)

	areaTriggers, err := areaTriggerRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("loading area triggers: %w", err)
	}
	slog.Info("area triggers loaded", "count", len(areaTriggers))

	debug := slog.Default().Enabled(ctx, slog.LevelDebug)
	server := realm.NewServer(cfg, accounts, characters, items, areaTriggers, debug, slog.Default())
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("running realm server: %w", err)
	}
	return nil
}

func logLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

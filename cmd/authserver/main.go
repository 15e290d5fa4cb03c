// Command authserver runs the SRP6 login and realm-list front end
// (spec.md §4.3): it authenticates accounts and hands back the realm list
// an authenticated client selects a world server from.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/udisondev/realmkeep/internal/auth"
	"github.com/udisondev/realmkeep/internal/config"
	"github.com/udisondev/realmkeep/internal/db"
)

const configPathEnv = "AUTHSERVER_CONFIG"

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
	cfgPath := "config/authserver.yaml"
	if p := os.Getenv(configPathEnv); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadAuth(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	})))
	slog.Info("auth server starting", "bind", cfg.BindAddress, "port", cfg.Port)

	connectCtx, cancelConnect := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancelConnect()
	pool, err := db.Connect(connectCtx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	if err := db.RunMigrations(ctx, cfg.DatabaseURL, "auth"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied")

	accounts := db.NewPostgresAccountRepository(pool)
	realms := db.NewPostgresRealmRepository(pool)

	server := auth.NewServer(cfg, accounts, realms, slog.Default())
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("running auth server: %w", err)
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

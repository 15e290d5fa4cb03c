package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/udisondev/realmkeep/internal/db/migrations"
)

var gooseOnce sync.Once

// RunMigrations applies the embedded goose migrations under set (one of
// "auth", "realm", "game") to the database at dsn. Each service calls this
// once per pool it owns, so a database only ever receives the schema its
// own tables belong to.
func RunMigrations(ctx context.Context, dsn, set string) error {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("db: opening migration connection: %w", err)
	}
	defer sqlDB.Close()

	var dialectErr error
	gooseOnce.Do(func() {
		goose.SetBaseFS(migrations.FS)
		dialectErr = goose.SetDialect("postgres")
	})
	if dialectErr != nil {
		return fmt.Errorf("db: setting goose dialect: %w", dialectErr)
	}
	if err := goose.UpContext(ctx, sqlDB, set); err != nil {
		return fmt.Errorf("db: running %s migrations: %w", set, err)
	}
	return nil
}

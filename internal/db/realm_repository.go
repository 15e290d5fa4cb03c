package db

import (
	"context"
	"fmt"
)

// RealmEntry is one row in the CMD_REALM_LIST reply.
type RealmEntry struct {
	ID      int64
	Name    string
	Address string
	Port    int
}

// RealmRepository serves the realm list a successful Authenticated account
// can request (spec.md §4.3's RealmList handler), and the bind address a
// realm service reads for itself at startup (spec.md §6).
type RealmRepository interface {
	ListRealms(ctx context.Context) ([]RealmEntry, error)
	GetRealm(ctx context.Context, id int64) (*RealmEntry, error)
}

// PostgresRealmRepository implements RealmRepository over the auth
// database pool (realms are advertised by the auth service).
type PostgresRealmRepository struct {
	pool *Pool
}

// NewPostgresRealmRepository wraps pool for realm-list access.
func NewPostgresRealmRepository(pool *Pool) *PostgresRealmRepository {
	return &PostgresRealmRepository{pool: pool}
}

// ListRealms returns every advertised realm.
func (r *PostgresRealmRepository) ListRealms(ctx context.Context) ([]RealmEntry, error) {
	rows, err := r.pool.Raw().Query(ctx, `SELECT id, name, address, port FROM realms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("db: listing realms: %w", err)
	}
	defer rows.Close()

	var out []RealmEntry
	for rows.Next() {
		var e RealmEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.Address, &e.Port); err != nil {
			return nil, fmt.Errorf("db: scanning realm row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: iterating realm rows: %w", err)
	}
	return out, nil
}

// GetRealm returns the realm bind address/port for id, used by the realm
// service to learn where it should listen (spec.md §6: "bind address is
// read from the auth DB row whose id is the REALM_ID env var").
func (r *PostgresRealmRepository) GetRealm(ctx context.Context, id int64) (*RealmEntry, error) {
	var e RealmEntry
	err := r.pool.Raw().QueryRow(ctx,
		`SELECT id, name, address, port FROM realms WHERE id = $1`, id,
	).Scan(&e.ID, &e.Name, &e.Address, &e.Port)
	if err != nil {
		return nil, fmt.Errorf("db: querying realm %d: %w", id, err)
	}
	return &e, nil
}

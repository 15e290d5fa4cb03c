package db

import (
	"context"
	"fmt"

	"github.com/udisondev/realmkeep/internal/model"
)

// ItemRepository is the item half of the persistence façade. Every row's
// object_guid is derived, never stored independently, preserving the
// item.object_guid == (character_id<<32|slot_id) invariant spec.md §8
// requires.
type ItemRepository interface {
	ListByOwner(ctx context.Context, ownerID int64) ([]model.Item, error)
	Save(ctx context.Context, item model.Item) error
}

// PostgresItemRepository implements ItemRepository over the game database
// pool.
type PostgresItemRepository struct {
	pool *Pool
}

// NewPostgresItemRepository wraps pool for item access.
func NewPostgresItemRepository(pool *Pool) *PostgresItemRepository {
	return &PostgresItemRepository{pool: pool}
}

// ListByOwner returns every item row owned by ownerID.
func (r *PostgresItemRepository) ListByOwner(ctx context.Context, ownerID int64) ([]model.Item, error) {
	rows, err := r.pool.Raw().Query(ctx,
		`SELECT owner_id, container, slot, entry, stack, durability, max_durability
		 FROM items WHERE owner_id = $1`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("db: listing items for owner %d: %w", ownerID, err)
	}
	defer rows.Close()

	var out []model.Item
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.Owner, &it.Container, &it.Slot, &it.Entry, &it.Stack, &it.Durability, &it.MaxDurability); err != nil {
			return nil, fmt.Errorf("db: scanning item row: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: iterating item rows: %w", err)
	}
	return out, nil
}

// Save upserts an item row, keyed by its derived object guid.
func (r *PostgresItemRepository) Save(ctx context.Context, item model.Item) error {
	_, err := r.pool.Raw().Exec(ctx,
		`INSERT INTO items (object_guid, owner_id, container, slot, entry, stack, durability, max_durability)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (object_guid) DO UPDATE SET
		   container = EXCLUDED.container, slot = EXCLUDED.slot, stack = EXCLUDED.stack,
		   durability = EXCLUDED.durability, max_durability = EXCLUDED.max_durability`,
		item.ObjectGUID(), item.Owner, item.Container, item.Slot, item.Entry, item.Stack, item.Durability, item.MaxDurability,
	)
	if err != nil {
		return fmt.Errorf("db: saving item %d: %w", item.ObjectGUID(), err)
	}
	return nil
}

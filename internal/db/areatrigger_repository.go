package db

import (
	"context"
	"fmt"

	"github.com/udisondev/realmkeep/internal/model"
)

// AreaTrigger is a static, DBC-derived teleport trigger volume: stepping
// inside it queues a far teleport to the paired destination (spec.md §4.8).
type AreaTrigger struct {
	ID     int64
	MapID  uint32
	Pos    model.Position
	Radius float32
	Target model.TeleportDistance
}

// AreaTriggerRepository loads the static area-trigger table once at
// startup; the data is treated as immutable thereafter (spec.md §5).
type AreaTriggerRepository interface {
	ListAll(ctx context.Context) ([]AreaTrigger, error)
}

// PostgresAreaTriggerRepository implements AreaTriggerRepository over the
// game database pool.
type PostgresAreaTriggerRepository struct {
	pool *Pool
}

// NewPostgresAreaTriggerRepository wraps pool for area-trigger access.
func NewPostgresAreaTriggerRepository(pool *Pool) *PostgresAreaTriggerRepository {
	return &PostgresAreaTriggerRepository{pool: pool}
}

// ListAll returns every area trigger.
func (r *PostgresAreaTriggerRepository) ListAll(ctx context.Context) ([]AreaTrigger, error) {
	rows, err := r.pool.Raw().Query(ctx,
		`SELECT id, map_id, pos_x, pos_y, pos_z, radius, target_map, target_x, target_y, target_z
		 FROM area_triggers`,
	)
	if err != nil {
		return nil, fmt.Errorf("db: listing area triggers: %w", err)
	}
	defer rows.Close()

	var out []AreaTrigger
	for rows.Next() {
		var t AreaTrigger
		t.Target.Kind = model.TeleportFar
		if err := rows.Scan(
			&t.ID, &t.MapID, &t.Pos.X, &t.Pos.Y, &t.Pos.Z, &t.Radius,
			&t.Target.Map, &t.Target.Pos.X, &t.Target.Pos.Y, &t.Target.Pos.Z,
		); err != nil {
			return nil, fmt.Errorf("db: scanning area trigger row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: iterating area trigger rows: %w", err)
	}
	return out, nil
}

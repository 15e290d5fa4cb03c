package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/udisondev/realmkeep/internal/model"
)

// CharacterRow is the persisted shape of a character, independent of the
// live in-memory model.Character the world manipulates per tick.
type CharacterRow struct {
	ID        int64
	AccountID int64
	Name      string
	MapID     uint32
	Pos       model.Position
}

// CharacterRepository is the character half of the persistence façade.
type CharacterRepository interface {
	ListByAccount(ctx context.Context, accountID int64) ([]CharacterRow, error)
	GetByName(ctx context.Context, name string) (*CharacterRow, error)
	Save(ctx context.Context, row CharacterRow) error
}

// PostgresCharacterRepository implements CharacterRepository over the
// realm database pool.
type PostgresCharacterRepository struct {
	pool *Pool
}

// NewPostgresCharacterRepository wraps pool for character access.
func NewPostgresCharacterRepository(pool *Pool) *PostgresCharacterRepository {
	return &PostgresCharacterRepository{pool: pool}
}

// ListByAccount returns every character belonging to accountID, for the
// character-selection screen.
func (r *PostgresCharacterRepository) ListByAccount(ctx context.Context, accountID int64) ([]CharacterRow, error) {
	rows, err := r.pool.Raw().Query(ctx,
		`SELECT id, account_id, name, map_id, pos_x, pos_y, pos_z, orientation
		 FROM characters WHERE account_id = $1 ORDER BY id`, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("db: listing characters for account %d: %w", accountID, err)
	}
	defer rows.Close()

	var out []CharacterRow
	for rows.Next() {
		var c CharacterRow
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Name, &c.MapID, &c.Pos.X, &c.Pos.Y, &c.Pos.Z, &c.Pos.Orientation); err != nil {
			return nil, fmt.Errorf("db: scanning character row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: iterating character rows: %w", err)
	}
	return out, nil
}

// GetByName looks a character up case-insensitively, matching the
// realm session manager's by-name lookup contract (spec.md §4.4).
func (r *PostgresCharacterRepository) GetByName(ctx context.Context, name string) (*CharacterRow, error) {
	var c CharacterRow
	err := r.pool.Raw().QueryRow(ctx,
		`SELECT id, account_id, name, map_id, pos_x, pos_y, pos_z, orientation
		 FROM characters WHERE lower(name) = lower($1)`, strings.TrimSpace(name),
	).Scan(&c.ID, &c.AccountID, &c.Name, &c.MapID, &c.Pos.X, &c.Pos.Y, &c.Pos.Z, &c.Pos.Orientation)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db: querying character %q: %w", name, err)
	}
	return &c, nil
}

// Save upserts a character's persisted state.
func (r *PostgresCharacterRepository) Save(ctx context.Context, row CharacterRow) error {
	_, err := r.pool.Raw().Exec(ctx,
		`INSERT INTO characters (id, account_id, name, map_id, pos_x, pos_y, pos_z, orientation)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   map_id = EXCLUDED.map_id, pos_x = EXCLUDED.pos_x, pos_y = EXCLUDED.pos_y,
		   pos_z = EXCLUDED.pos_z, orientation = EXCLUDED.orientation`,
		row.ID, row.AccountID, row.Name, row.MapID, row.Pos.X, row.Pos.Y, row.Pos.Z, row.Pos.Orientation,
	)
	if err != nil {
		return fmt.Errorf("db: saving character %d: %w", row.ID, err)
	}
	return nil
}

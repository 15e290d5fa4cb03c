package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/udisondev/realmkeep/internal/model"
)

// AccountRepository is the account half of the persistence façade. It is
// an interface so the auth session manager can be tested with a fake.
type AccountRepository interface {
	GetByUsername(ctx context.Context, username string) (*model.AccountRecord, error)
	SetSessionKey(ctx context.Context, username, sessionKeyHex string) error
	GetLastServer(ctx context.Context, accountID int64) (int, bool, error)
	SetLastServer(ctx context.Context, accountID int64, realmID int) error
}

// PostgresAccountRepository implements AccountRepository over the auth
// database pool.
type PostgresAccountRepository struct {
	pool *Pool
}

// NewPostgresAccountRepository wraps pool for account access.
func NewPostgresAccountRepository(pool *Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// GetByUsername returns the account row, or nil, nil if it doesn't exist.
func (r *PostgresAccountRepository) GetByUsername(ctx context.Context, username string) (*model.AccountRecord, error) {
	username = strings.ToLower(username)
	var acc model.AccountRecord
	err := r.pool.Raw().QueryRow(ctx,
		`SELECT id, username, v, s, session_key, banned FROM accounts WHERE username = $1`,
		username,
	).Scan(&acc.ID, &acc.Username, &acc.V, &acc.S, &acc.SessionKey, &acc.Banned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db: querying account %q: %w", username, err)
	}
	return &acc, nil
}

// SetSessionKey persists the session key derived from a successful
// LogonProof, per spec.md §4.3.
func (r *PostgresAccountRepository) SetSessionKey(ctx context.Context, username, sessionKeyHex string) error {
	_, err := r.pool.Raw().Exec(ctx,
		`UPDATE accounts SET session_key = $1 WHERE username = $2`,
		sessionKeyHex, strings.ToLower(username),
	)
	if err != nil {
		return fmt.Errorf("db: setting session key for %q: %w", username, err)
	}
	return nil
}

// GetLastServer returns the account's last-selected realm id, if any.
func (r *PostgresAccountRepository) GetLastServer(ctx context.Context, accountID int64) (int, bool, error) {
	var lastServer *int
	err := r.pool.Raw().QueryRow(ctx,
		`SELECT last_server FROM accounts WHERE id = $1`, accountID,
	).Scan(&lastServer)
	if err != nil {
		return 0, false, fmt.Errorf("db: querying last server for account %d: %w", accountID, err)
	}
	if lastServer == nil {
		return 0, false, nil
	}
	return *lastServer, true, nil
}

// SetLastServer records which realm the account most recently selected.
func (r *PostgresAccountRepository) SetLastServer(ctx context.Context, accountID int64, realmID int) error {
	_, err := r.pool.Raw().Exec(ctx,
		`UPDATE accounts SET last_server = $1 WHERE id = $2`, realmID, accountID,
	)
	if err != nil {
		return fmt.Errorf("db: setting last server for account %d: %w", accountID, err)
	}
	return nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predictarena/ledger/internal/domain"
)

// AccountStore implements domain.AccountStore using PostgreSQL. These are
// display reads; balance mutations go through the Ledger only.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates an AccountStore backed by the given connection pool.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

const accountSelectCols = `id, owner_id, arena_id, points, created_at, updated_at`

// Get retrieves the owner's account in the given arena ("" for global).
func (s *AccountStore) Get(ctx context.Context, ownerID, arenaID string) (domain.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountSelectCols+` FROM accounts WHERE owner_id = $1 AND arena_id = $2`,
		ownerID, arenaID)

	var a domain.Account
	err := row.Scan(&a.ID, &a.OwnerID, &a.ArenaID, &a.Points, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("postgres: get account %s/%s: %w", ownerID, arenaID, err)
	}
	return a, nil
}

// ListByArena returns all accounts in an arena ordered by balance descending,
// the standings view.
func (s *AccountStore) ListByArena(ctx context.Context, arenaID string) ([]domain.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+accountSelectCols+` FROM accounts WHERE arena_id = $1 ORDER BY points DESC, owner_id`,
		arenaID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list accounts for %s: %w", arenaID, err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.ArenaID, &a.Points, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

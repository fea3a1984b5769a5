package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predictarena/ledger/internal/domain"
)

// TransactionStore implements domain.TransactionStore using PostgreSQL. The
// trail is append-only; the only write here is DeleteBefore, used after a
// successful cold-storage export.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore creates a TransactionStore backed by the given pool.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

const txSelectCols = `id, tx_type, amount, from_user_id, to_user_id, market_id, arena_id, created_at`

func scanTransactionRows(rows pgx.Rows) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var txType string
		if err := rows.Scan(&t.ID, &txType, &t.Amount, &t.FromUserID, &t.ToUserID,
			&t.MarketID, &t.ArenaID, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Type = domain.TransactionType(txType)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// ListByUser returns ledger entries touching the user, newest first.
func (s *TransactionStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Transaction, error) {
	query := `SELECT ` + txSelectCols + ` FROM transactions
		 WHERE (from_user_id = $1 OR to_user_id = $1)`
	args := []any{userID}

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", len(args)+1)
		args = append(args, *opts.Since)
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions by user: %w", err)
	}
	defer rows.Close()

	txs, err := scanTransactionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan user transactions: %w", err)
	}
	return txs, nil
}

// ListByMarket returns every ledger entry attributed to a market.
func (s *TransactionStore) ListByMarket(ctx context.Context, marketID string) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+txSelectCols+` FROM transactions WHERE market_id = $1 ORDER BY created_at`,
		marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions by market: %w", err)
	}
	defer rows.Close()

	txs, err := scanTransactionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan market transactions: %w", err)
	}
	return txs, nil
}

// ListBefore returns all entries created strictly before the cutoff, oldest
// first, for archival export.
func (s *TransactionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+txSelectCols+` FROM transactions WHERE created_at < $1 ORDER BY created_at`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions before %s: %w", before, err)
	}
	defer rows.Close()

	txs, err := scanTransactionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan archived transactions: %w", err)
	}
	return txs, nil
}

// DeleteBefore removes entries created strictly before the cutoff. Call only
// after the export of the same range has been durably stored.
func (s *TransactionStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM transactions WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete transactions before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

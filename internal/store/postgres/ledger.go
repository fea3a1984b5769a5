package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predictarena/ledger/internal/domain"
)

// Ledger implements domain.Ledger on a pgx connection pool. Each InTx call is
// one ACID transaction; account and option rows are serialized with explicit
// row locks so concurrent economic events never interleave into a negative
// balance or a shared pre-bet price.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger creates a Ledger backed by the given connection pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// InTx runs fn inside a single database transaction, committing only when fn
// returns nil. Any error rolls back every write fn performed.
func (l *Ledger) InTx(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin ledger tx: %w", err)
	}

	if err := fn(&ledgerTx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit ledger tx: %w", err)
	}
	return nil
}

// ledgerTx implements domain.LedgerTx on one open pgx transaction.
type ledgerTx struct {
	tx pgx.Tx
}

func (t *ledgerTx) AccountForUpdate(ctx context.Context, ownerID, arenaID string) (domain.Account, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, owner_id, arena_id, points, created_at, updated_at
		  FROM accounts
		 WHERE owner_id = $1 AND arena_id = $2
		 FOR UPDATE`, ownerID, arenaID)

	var a domain.Account
	err := row.Scan(&a.ID, &a.OwnerID, &a.ArenaID, &a.Points, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("postgres: lock account %s/%s: %w", ownerID, arenaID, err)
	}
	return a, nil
}

func (t *ledgerTx) Debit(ctx context.Context, accountID string, amount int64) error {
	// The conditional update plus the CHECK constraint make a negative
	// balance impossible even if a caller skips AccountForUpdate.
	tag, err := t.tx.Exec(ctx, `
		UPDATE accounts
		   SET points = points - $2, updated_at = NOW()
		 WHERE id = $1 AND points >= $2`, accountID, amount)
	if err != nil {
		return fmt.Errorf("postgres: debit account %s: %w", accountID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := t.tx.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)", accountID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: debit account %s: %w", accountID, err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrInsufficientFunds
	}
	return nil
}

func (t *ledgerTx) Credit(ctx context.Context, accountID string, amount int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE accounts
		   SET points = points + $2, updated_at = NOW()
		 WHERE id = $1`, accountID, amount)
	if err != nil {
		return fmt.Errorf("postgres: credit account %s: %w", accountID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *ledgerTx) SetBalance(ctx context.Context, accountID string, points int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE accounts
		   SET points = $2, updated_at = NOW()
		 WHERE id = $1`, accountID, points)
	if err != nil {
		return fmt.Errorf("postgres: set balance %s: %w", accountID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *ledgerTx) Record(ctx context.Context, tr domain.Transaction) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO transactions (tx_type, amount, from_user_id, to_user_id, market_id, arena_id)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(tr.Type), tr.Amount, tr.FromUserID, tr.ToUserID, tr.MarketID, tr.ArenaID,
	)
	if err != nil {
		return fmt.Errorf("postgres: record %s transaction: %w", tr.Type, err)
	}
	return nil
}

func (t *ledgerTx) MarketForUpdate(ctx context.Context, marketID string) (domain.Market, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+marketSelectCols+`
		  FROM markets
		 WHERE id = $1
		 FOR UPDATE`, marketID)

	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: lock market %s: %w", marketID, err)
	}
	return m, nil
}

func (t *ledgerTx) OptionsForUpdate(ctx context.Context, marketID string) ([]domain.Option, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, market_id, text, liquidity
		  FROM options
		 WHERE market_id = $1
		 ORDER BY id
		 FOR UPDATE`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: lock options for %s: %w", marketID, err)
	}
	defer rows.Close()

	opts, err := scanOptionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan locked options: %w", err)
	}
	return opts, nil
}

func (t *ledgerTx) AddLiquidity(ctx context.Context, optionID string, delta float64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE options SET liquidity = liquidity + $2 WHERE id = $1`,
		optionID, delta)
	if err != nil {
		return fmt.Errorf("postgres: add liquidity to %s: %w", optionID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *ledgerTx) CreateBet(ctx context.Context, b domain.Bet) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO bets (id, user_id, market_id, option_id, numeric_value,
		                  amount, fee, shares, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.UserID, b.MarketID, b.OptionID, b.NumericValue,
		b.Amount, b.Fee, b.Shares, b.IdempotencyKey, b.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create bet %s: %w", b.ID, err)
	}
	return nil
}

func (t *ledgerTx) BetByIdempotencyKey(ctx context.Context, userID, marketID, key string) (domain.Bet, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+betSelectCols+`
		  FROM bets
		 WHERE user_id = $1 AND market_id = $2 AND idempotency_key = $3`,
		userID, marketID, key)

	b, err := scanBet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: bet by idempotency key: %w", err)
	}
	return b, nil
}

func (t *ledgerTx) BetsByMarket(ctx context.Context, marketID string) ([]domain.Bet, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+betSelectCols+`
		  FROM bets
		 WHERE market_id = $1
		 ORDER BY created_at`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: bets by market %s: %w", marketID, err)
	}
	defer rows.Close()

	bets, err := scanBetRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan market bets: %w", err)
	}
	return bets, nil
}

func (t *ledgerTx) MarkResolved(ctx context.Context, marketID string, winningOptionID *string, winningValue *float64, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE markets
		   SET status = $2, winning_option_id = $3, winning_value = $4, resolved_at = $5
		 WHERE id = $1`,
		marketID, string(domain.MarketStatusResolved), winningOptionID, winningValue, at)
	if err != nil {
		return fmt.Errorf("postgres: mark market %s resolved: %w", marketID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *ledgerTx) MarkCancelled(ctx context.Context, marketID string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE markets SET status = $2 WHERE id = $1`,
		marketID, string(domain.MarketStatusCancelled))
	if err != nil {
		return fmt.Errorf("postgres: mark market %s cancelled: %w", marketID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *ledgerTx) PayoutsByMarket(ctx context.Context, marketID string) (map[string]int64, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT to_user_id, SUM(amount)
		  FROM transactions
		 WHERE market_id = $1 AND tx_type = $2 AND to_user_id IS NOT NULL
		 GROUP BY to_user_id`,
		marketID, string(domain.TxWinPayout))
	if err != nil {
		return nil, fmt.Errorf("postgres: payouts by market %s: %w", marketID, err)
	}
	defer rows.Close()

	payouts := make(map[string]int64)
	for rows.Next() {
		var userID string
		var amount int64
		if err := rows.Scan(&userID, &amount); err != nil {
			return nil, fmt.Errorf("postgres: scan payout row: %w", err)
		}
		payouts[userID] = amount
	}
	return payouts, rows.Err()
}

func (t *ledgerTx) AccountsByArenaForUpdate(ctx context.Context, arenaID string) ([]domain.Account, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, owner_id, arena_id, points, created_at, updated_at
		  FROM accounts
		 WHERE arena_id = $1
		 ORDER BY owner_id
		 FOR UPDATE`, arenaID)
	if err != nil {
		return nil, fmt.Errorf("postgres: lock arena accounts %s: %w", arenaID, err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.ArenaID, &a.Points, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan arena account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (t *ledgerTx) NetProfitByArena(ctx context.Context, arenaID string, since time.Time) (map[string]int64, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT user_id, SUM(delta) FROM (
			SELECT to_user_id AS user_id, amount AS delta
			  FROM transactions
			 WHERE arena_id = $1 AND created_at >= $2
			   AND tx_type <> $3 AND to_user_id IS NOT NULL
			UNION ALL
			SELECT from_user_id, -amount
			  FROM transactions
			 WHERE arena_id = $1 AND created_at >= $2
			   AND tx_type <> $3 AND from_user_id IS NOT NULL
		) deltas
		GROUP BY user_id`,
		arenaID, since, string(domain.TxMonthlyReset))
	if err != nil {
		return nil, fmt.Errorf("postgres: net profit by arena %s: %w", arenaID, err)
	}
	defer rows.Close()

	profit := make(map[string]int64)
	for rows.Next() {
		var userID string
		var delta int64
		if err := rows.Scan(&userID, &delta); err != nil {
			return nil, fmt.Errorf("postgres: scan net profit row: %w", err)
		}
		profit[userID] = delta
	}
	return profit, rows.Err()
}

func (t *ledgerTx) SetNextReset(ctx context.Context, arenaID string, next *time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE arenas SET next_reset_at = $2 WHERE id = $1`, arenaID, next)
	if err != nil {
		return fmt.Errorf("postgres: set next reset for %s: %w", arenaID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Compile-time interface checks.
var (
	_ domain.Ledger   = (*Ledger)(nil)
	_ domain.LedgerTx = (*ledgerTx)(nil)
)

package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// Ledger is the transaction boundary for every economic event. Services run
// all reads and writes of one event inside a single InTx call; the store
// guarantees that either everything commits or nothing does. No service may
// issue two top-level transactions for what is logically one event.
type Ledger interface {
	// InTx runs fn inside one ACID transaction and commits iff fn returns nil.
	InTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LedgerTx exposes the ledger's read-modify-write primitives within one
// transaction. Rows returned by the ForUpdate methods are locked until the
// transaction ends, so concurrent events against the same account or option
// serialize instead of interleaving.
type LedgerTx interface {
	// AccountForUpdate locks and returns the owner's account in the arena.
	AccountForUpdate(ctx context.Context, ownerID, arenaID string) (Account, error)

	// Debit decreases the account balance. It fails with ErrInsufficientFunds
	// when the balance would go negative, leaving the row untouched.
	Debit(ctx context.Context, accountID string, amount int64) error

	// Credit increases the account balance.
	Credit(ctx context.Context, accountID string, amount int64) error

	// SetBalance overwrites the account balance (cycle resets only).
	SetBalance(ctx context.Context, accountID string, points int64) error

	// Record appends exactly one transaction row for the current event.
	Record(ctx context.Context, t Transaction) error

	// MarketForUpdate locks and returns the market row.
	MarketForUpdate(ctx context.Context, marketID string) (Market, error)

	// OptionsForUpdate locks and returns all options of the market, keeping
	// concurrent bettors from being quoted the same pre-bet price.
	OptionsForUpdate(ctx context.Context, marketID string) ([]Option, error)

	// AddLiquidity adds delta to the option's pool depth.
	AddLiquidity(ctx context.Context, optionID string, delta float64) error

	// CreateBet inserts an immutable bet row.
	CreateBet(ctx context.Context, b Bet) error

	// BetByIdempotencyKey returns a previously created bet for the key, or
	// ErrNotFound.
	BetByIdempotencyKey(ctx context.Context, userID, marketID, key string) (Bet, error)

	// BetsByMarket returns every bet on the market.
	BetsByMarket(ctx context.Context, marketID string) ([]Bet, error)

	// MarkResolved persists the winning outcome and flips the status to
	// RESOLVED.
	MarkResolved(ctx context.Context, marketID string, winningOptionID *string, winningValue *float64, at time.Time) error

	// MarkCancelled flips the status to CANCELLED.
	MarkCancelled(ctx context.Context, marketID string) error

	// PayoutsByMarket rebuilds userID -> credited amount from WIN_PAYOUT rows,
	// used to replay the result of an already-resolved market.
	PayoutsByMarket(ctx context.Context, marketID string) (map[string]int64, error)

	// AccountsByArenaForUpdate locks and returns every member account in the
	// arena, ordered by owner id.
	AccountsByArenaForUpdate(ctx context.Context, arenaID string) ([]Account, error)

	// NetProfitByArena sums signed non-reset transaction amounts per user
	// since the given time.
	NetProfitByArena(ctx context.Context, arenaID string, since time.Time) (map[string]int64, error)

	// SetNextReset updates the arena's next-reset timestamp (nil clears it).
	SetNextReset(ctx context.Context, arenaID string, next *time.Time) error
}

// MarketStore reads market state outside the transaction boundary. Quote
// serving uses snapshot reads; anything that mutates goes through Ledger.
type MarketStore interface {
	GetByID(ctx context.Context, id string) (Market, error)
	Options(ctx context.Context, marketID string) ([]Option, error)
	ListOpen(ctx context.Context, arenaID string, opts ListOpts) ([]Market, error)
}

// AccountStore reads balances for display and history endpoints.
type AccountStore interface {
	Get(ctx context.Context, ownerID, arenaID string) (Account, error)
	ListByArena(ctx context.Context, arenaID string) ([]Account, error)
}

// TransactionStore reads the append-only audit trail.
type TransactionStore interface {
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Transaction, error)
	ListByMarket(ctx context.Context, marketID string) ([]Transaction, error)
	ListBefore(ctx context.Context, before time.Time) ([]Transaction, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// BetStore reads bets for history endpoints.
type BetStore interface {
	GetByID(ctx context.Context, id string) (Bet, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Bet, error)
	ListByMarket(ctx context.Context, marketID string) ([]Bet, error)
}

// SettingsStore reads arena policy and membership data.
type SettingsStore interface {
	Get(ctx context.Context, arenaID string) (ArenaSettings, error)
	ListDue(ctx context.Context, now time.Time) ([]ArenaSettings, error)
	Role(ctx context.Context, arenaID, userID string) (MemberRole, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	Members(ctx context.Context, arenaID string) ([]Member, error)
}

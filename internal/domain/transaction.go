package domain

import "time"

// TransactionType tags a ledger entry with the economic event that produced it.
type TransactionType string

const (
	TxBetPlaced    TransactionType = "BET_PLACED"
	TxWinPayout    TransactionType = "WIN_PAYOUT"
	TxBetRefund    TransactionType = "BET_REFUND"
	TxUserTransfer TransactionType = "USER_TRANSFER"
	TxMonthlyReset TransactionType = "MONTHLY_RESET"
)

// Transaction is one append-only audit row. Every balance mutation writes
// exactly one of these in the same database transaction. Amount is always
// positive; direction is carried by FromUserID/ToUserID:
//
//	BET_PLACED     from=bettor           (debit)
//	WIN_PAYOUT     to=winner, market set (credit)
//	BET_REFUND     to=bettor, market set (credit)
//	USER_TRANSFER  from=sender, to=receiver
//	MONTHLY_RESET  to=member, arena set  (allocation; exempt from conservation)
type Transaction struct {
	ID         int64
	Type       TransactionType
	Amount     int64
	FromUserID *string
	ToUserID   *string
	MarketID   *string
	ArenaID    *string
	CreatedAt  time.Time
}

// Signed returns the net effect of the entry on the given user's balance.
func (t Transaction) Signed(userID string) int64 {
	var v int64
	if t.ToUserID != nil && *t.ToUserID == userID {
		v += t.Amount
	}
	if t.FromUserID != nil && *t.FromUserID == userID {
		v -= t.Amount
	}
	return v
}

package domain

import "time"

// Bet is a single immutable wager. Amount is the gross stake debited from the
// bettor; Fee is the portion withheld at placement; Shares is the bettor's
// redemption claim on the winning pool, fixed at the pool state the bet
// executed against.
type Bet struct {
	ID             string
	UserID         string
	MarketID       string
	OptionID       *string
	NumericValue   *float64
	Amount         int64
	Fee            int64
	Shares         float64
	IdempotencyKey *string
	CreatedAt      time.Time
}

// NetStake returns the portion of the stake that entered the pool.
func (b Bet) NetStake() int64 {
	return b.Amount - b.Fee
}

// PlaceBetRequest carries the inputs for a single wager. UserID comes from
// the auth collaborator; IdempotencyKey is client-supplied so an ambiguous
// retry never double-charges.
type PlaceBetRequest struct {
	UserID         string
	MarketID       string
	OptionID       *string
	NumericValue   *float64
	Amount         int64
	IdempotencyKey *string
}

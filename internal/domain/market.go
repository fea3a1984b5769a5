package domain

import "time"

// MarketType distinguishes how a market is quoted and resolved.
type MarketType string

const (
	MarketTypeBinary         MarketType = "BINARY"
	MarketTypeMultipleChoice MarketType = "MULTIPLE_CHOICE"
	MarketTypeNumericRange   MarketType = "NUMERIC_RANGE"
)

// MarketStatus tracks the market lifecycle. Transitions are one-directional:
// OPEN -> PENDING_RESOLUTION -> RESOLVED, or OPEN -> CANCELLED.
type MarketStatus string

const (
	MarketStatusOpen              MarketStatus = "OPEN"
	MarketStatusPendingResolution MarketStatus = "PENDING_RESOLUTION"
	MarketStatusResolved          MarketStatus = "RESOLVED"
	MarketStatusCancelled         MarketStatus = "CANCELLED"
)

// Market is a question users stake points on. Once RESOLVED it is immutable
// except for dispute metadata handled outside this service.
type Market struct {
	ID              string
	ArenaID         string
	CreatorID       string
	Question        string
	Type            MarketType
	Status          MarketStatus
	ResolutionDate  time.Time
	MinBet          *int64
	MaxBet          *int64
	WinningOptionID *string
	WinningValue    *float64
	CreatedAt       time.Time
	ResolvedAt      *time.Time
}

// Open reports whether the market still accepts bets at the given time.
func (m Market) Open(now time.Time) bool {
	return m.Status == MarketStatusOpen && now.Before(m.ResolutionDate)
}

// Option is one outcome of a BINARY or MULTIPLE_CHOICE market. Liquidity is
// the AMM pool depth for that outcome; it is seeded at market creation and
// never drops below the arena's configured floor.
type Option struct {
	ID        string
	MarketID  string
	Text      string
	Liquidity float64
}

package domain

import "time"

// EventType identifies a fire-and-forget domain event consumed by the
// notification collaborator and the WebSocket feed.
type EventType string

const (
	EventWinPayout       EventType = "WIN_PAYOUT"
	EventMarketResolved  EventType = "MARKET_RESOLVED"
	EventMarketCancelled EventType = "MARKET_CANCELLED"
	EventMonthlyWinner   EventType = "MONTHLY_WINNER"
	EventPriceUpdate     EventType = "PRICE_UPDATE"
)

// Event is the envelope delivered to out-of-scope collaborators. Delivery
// failures are logged and swallowed; they never roll back the economic
// operation that produced the event.
type Event struct {
	Type      EventType      `json:"type"`
	UserID    string         `json:"user_id,omitempty"`
	MarketID  string         `json:"market_id,omitempty"`
	ArenaID   string         `json:"arena_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Resolution is the result of settling a market. Replays of an already
// resolved market return the original result with Replayed set.
type Resolution struct {
	MarketID        string
	ArenaID         string
	Status          MarketStatus
	WinningOptionID *string
	WinningValue    *float64
	Payouts         map[string]int64
	TotalPool       int64
	Residual        int64
	Replayed        bool
}

// CycleResult summarizes one arena's completed cycle reset.
type CycleResult struct {
	ArenaID     string
	WinnerID    string
	WinnerScore int64
	Members     int
	ResetAt     time.Time
	NextResetAt *time.Time
}

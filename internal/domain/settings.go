package domain

import "time"

// ResetFrequency is the cadence of an arena's cycle reset.
type ResetFrequency string

const (
	ResetWeekly  ResetFrequency = "WEEKLY"
	ResetMonthly ResetFrequency = "MONTHLY"
	ResetCustom  ResetFrequency = "CUSTOM"
	ResetManual  ResetFrequency = "MANUAL"
)

// WinnerRule selects how the cycle winner is determined at reset time.
type WinnerRule string

const (
	WinnerHighestBalance WinnerRule = "HIGHEST_BALANCE"
	WinnerNetProfit      WinnerRule = "NET_PROFIT"
)

// ArenaSettings is the per-arena policy read by the bet, transfer, settlement
// and reset services. It is owned and mutated by an external admin
// collaborator; the ledger treats it as read-only input.
type ArenaSettings struct {
	ArenaID           string
	TradingFeePercent float64
	SeedLiquidity     float64
	LiquidityFloor    float64
	AllowTransfers    bool
	TransferLimit     *int64
	MonthlyAllocation int64
	AllowCarryover    bool
	ResetFrequency    ResetFrequency
	CustomResetDays   int
	WinnerRule        WinnerRule
	NextResetAt       *time.Time
}

// ResetDue reports whether the arena is due for a cycle reset at now. MANUAL
// arenas are never due; a nil NextResetAt on an automatic cadence is treated
// as due so newly configured arenas get their first cycle scheduled.
func (s ArenaSettings) ResetDue(now time.Time) bool {
	if s.ResetFrequency == ResetManual {
		return false
	}
	if s.NextResetAt == nil {
		return true
	}
	return !now.Before(*s.NextResetAt)
}

// NextReset computes the reset timestamp following from. MANUAL returns nil.
func (s ArenaSettings) NextReset(from time.Time) *time.Time {
	var next time.Time
	switch s.ResetFrequency {
	case ResetWeekly:
		next = from.AddDate(0, 0, 7)
	case ResetMonthly:
		next = from.AddDate(0, 1, 0)
	case ResetCustom:
		days := s.CustomResetDays
		if days <= 0 {
			days = 30
		}
		next = from.AddDate(0, 0, days)
	default:
		return nil
	}
	return &next
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/predictarena/ledger/internal/domain"
	"github.com/predictarena/ledger/internal/metrics"
)

// SettlementService resolves and cancels markets. Both operations run as one
// ledger transaction per market and are idempotent: re-invoking on a market
// that already reached its terminal status replays the prior result instead
// of paying out again.
type SettlementService struct {
	ledger     domain.Ledger
	settings   domain.SettingsStore
	dispatcher EventDispatcher
	logger     *slog.Logger
}

// NewSettlementService creates a SettlementService.
func NewSettlementService(
	ledger domain.Ledger,
	settings domain.SettingsStore,
	dispatcher EventDispatcher,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		ledger:     ledger,
		settings:   settings,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// ResolveMarket settles the market with the given winning outcome and
// disburses payouts. The caller must be the market creator or an arena admin.
// Exactly one of winningOptionID or winningValue must be set, matching the
// market type. Rounding dust from floor division stays unallocated and is
// reported as Residual.
func (s *SettlementService) ResolveMarket(ctx context.Context, callerID, marketID string, winningOptionID *string, winningValue *float64) (domain.Resolution, error) {
	var res domain.Resolution

	err := s.ledger.InTx(ctx, func(tx domain.LedgerTx) error {
		m, err := tx.MarketForUpdate(ctx, marketID)
		if err != nil {
			return err
		}

		// Authorization comes first: even the replay of a settled market
		// discloses its payout map.
		if err := s.authorize(ctx, m, callerID); err != nil {
			return err
		}

		if m.Status == domain.MarketStatusResolved {
			payouts, err := tx.PayoutsByMarket(ctx, marketID)
			if err != nil {
				return err
			}
			res = domain.Resolution{
				MarketID:        marketID,
				Status:          m.Status,
				WinningOptionID: m.WinningOptionID,
				WinningValue:    m.WinningValue,
				Payouts:         payouts,
				Replayed:        true,
			}
			return nil
		}
		if m.Status == domain.MarketStatusCancelled {
			return fmt.Errorf("market %s is cancelled: %w", marketID, domain.ErrInvalidResolution)
		}

		var winners func(domain.Bet) bool
		switch m.Type {
		case domain.MarketTypeBinary, domain.MarketTypeMultipleChoice:
			if winningOptionID == nil || winningValue != nil {
				return fmt.Errorf("market %s needs a winning option: %w", marketID, domain.ErrInvalidResolution)
			}
			options, err := tx.OptionsForUpdate(ctx, marketID)
			if err != nil {
				return err
			}
			known := false
			for _, o := range options {
				if o.ID == *winningOptionID {
					known = true
					break
				}
			}
			if !known {
				return fmt.Errorf("option %s is not on market %s: %w", *winningOptionID, marketID, domain.ErrInvalidResolution)
			}
			winners = func(b domain.Bet) bool {
				return b.OptionID != nil && *b.OptionID == *winningOptionID
			}
		case domain.MarketTypeNumericRange:
			if winningValue == nil || winningOptionID != nil {
				return fmt.Errorf("market %s needs a winning value: %w", marketID, domain.ErrInvalidResolution)
			}
		default:
			return fmt.Errorf("market %s has unknown type %s: %w", marketID, m.Type, domain.ErrInvalidResolution)
		}

		bets, err := tx.BetsByMarket(ctx, marketID)
		if err != nil {
			return err
		}
		if m.Type == domain.MarketTypeNumericRange {
			winners = closestGuess(bets, *winningValue)
		}

		// totalPool is every stake on the market net of fees already
		// withheld at placement.
		var totalPool int64
		var sharesSum float64
		for _, b := range bets {
			totalPool += b.NetStake()
			if winners(b) {
				sharesSum += b.Shares
			}
		}

		payouts := make(map[string]int64)
		var disbursed int64
		if sharesSum > 0 {
			for _, b := range bets {
				if !winners(b) {
					continue
				}
				p := int64(math.Floor(b.Shares / sharesSum * float64(totalPool)))
				if p > 0 {
					payouts[b.UserID] += p
					disbursed += p
				}
			}
		}

		for userID, amount := range payouts {
			acct, err := tx.AccountForUpdate(ctx, userID, m.ArenaID)
			if err != nil {
				return err
			}
			if err := tx.Credit(ctx, acct.ID, amount); err != nil {
				return err
			}
			uid := userID
			if err := tx.Record(ctx, domain.Transaction{
				Type:     domain.TxWinPayout,
				Amount:   amount,
				ToUserID: &uid,
				MarketID: &m.ID,
				ArenaID:  &m.ArenaID,
			}); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if err := tx.MarkResolved(ctx, marketID, winningOptionID, winningValue, now); err != nil {
			return err
		}

		res = domain.Resolution{
			MarketID:        marketID,
			ArenaID:         m.ArenaID,
			Status:          domain.MarketStatusResolved,
			WinningOptionID: winningOptionID,
			WinningValue:    winningValue,
			Payouts:         payouts,
			TotalPool:       totalPool,
			Residual:        totalPool - disbursed,
		}
		return nil
	})
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("settlement_service: resolve market %q: %w", marketID, err)
	}

	if res.Replayed {
		s.logger.InfoContext(ctx, "settlement_service: idempotent replay",
			slog.String("market_id", marketID),
		)
		return res, nil
	}

	metrics.MarketsResolved.WithLabelValues(string(domain.MarketStatusResolved)).Inc()
	var paid int64
	for _, amount := range res.Payouts {
		paid += amount
	}
	metrics.PointsPaidOut.Add(float64(paid))

	s.emit(ctx, res)

	s.logger.InfoContext(ctx, "settlement_service: market resolved",
		slog.String("market_id", marketID),
		slog.Int("winners", len(res.Payouts)),
		slog.Int64("total_pool", res.TotalPool),
		slog.Int64("residual", res.Residual),
	)
	return res, nil
}

// CancelMarket voids the market and refunds every bettor their full stake,
// fee included. Re-invoking on an already cancelled market is a no-op.
func (s *SettlementService) CancelMarket(ctx context.Context, callerID, marketID string) (domain.Resolution, error) {
	var res domain.Resolution

	err := s.ledger.InTx(ctx, func(tx domain.LedgerTx) error {
		m, err := tx.MarketForUpdate(ctx, marketID)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, m, callerID); err != nil {
			return err
		}

		if m.Status == domain.MarketStatusCancelled {
			res = domain.Resolution{
				MarketID: marketID,
				Status:   m.Status,
				Replayed: true,
			}
			return nil
		}
		if m.Status == domain.MarketStatusResolved {
			return fmt.Errorf("market %s is resolved: %w", marketID, domain.ErrAlreadyResolved)
		}

		bets, err := tx.BetsByMarket(ctx, marketID)
		if err != nil {
			return err
		}

		refunds := make(map[string]int64)
		for _, b := range bets {
			refunds[b.UserID] += b.Amount
		}

		for userID, amount := range refunds {
			acct, err := tx.AccountForUpdate(ctx, userID, m.ArenaID)
			if err != nil {
				return err
			}
			if err := tx.Credit(ctx, acct.ID, amount); err != nil {
				return err
			}
			uid := userID
			if err := tx.Record(ctx, domain.Transaction{
				Type:     domain.TxBetRefund,
				Amount:   amount,
				ToUserID: &uid,
				MarketID: &m.ID,
				ArenaID:  &m.ArenaID,
			}); err != nil {
				return err
			}
		}

		if err := tx.MarkCancelled(ctx, marketID); err != nil {
			return err
		}

		res = domain.Resolution{
			MarketID: marketID,
			ArenaID:  m.ArenaID,
			Status:   domain.MarketStatusCancelled,
			Payouts:  refunds,
		}
		return nil
	})
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("settlement_service: cancel market %q: %w", marketID, err)
	}

	if res.Replayed {
		return res, nil
	}

	metrics.MarketsResolved.WithLabelValues(string(domain.MarketStatusCancelled)).Inc()

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, domain.Event{
			Type:     domain.EventMarketCancelled,
			MarketID: marketID,
			ArenaID:  res.ArenaID,
			Payload: map[string]any{
				"refunded_users": len(res.Payouts),
			},
		})
	}

	s.logger.InfoContext(ctx, "settlement_service: market cancelled",
		slog.String("market_id", marketID),
		slog.Int("refunded_users", len(res.Payouts)),
	)
	return res, nil
}

// authorize permits the market creator and arena admins.
func (s *SettlementService) authorize(ctx context.Context, m domain.Market, callerID string) error {
	if callerID == m.CreatorID {
		return nil
	}
	role, err := s.settings.Role(ctx, m.ArenaID, callerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("user %s may not settle market %s: %w", callerID, m.ID, domain.ErrUnauthorized)
		}
		return err
	}
	if role != domain.RoleAdmin {
		return fmt.Errorf("user %s may not settle market %s: %w", callerID, m.ID, domain.ErrUnauthorized)
	}
	return nil
}

func (s *SettlementService) emit(ctx context.Context, res domain.Resolution) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Dispatch(ctx, domain.Event{
		Type:     domain.EventMarketResolved,
		MarketID: res.MarketID,
		ArenaID:  res.ArenaID,
		Payload: map[string]any{
			"winners":    len(res.Payouts),
			"total_pool": res.TotalPool,
			"residual":   res.Residual,
		},
	})
	for userID, amount := range res.Payouts {
		s.dispatcher.Dispatch(ctx, domain.Event{
			Type:     domain.EventWinPayout,
			UserID:   userID,
			MarketID: res.MarketID,
			ArenaID:  res.ArenaID,
			Payload: map[string]any{
				"amount": amount,
			},
		})
	}
}

// closestGuess resolves a numeric market: the bets whose guess is nearest the
// winning value win, with ties splitting the pool.
func closestGuess(bets []domain.Bet, winningValue float64) func(domain.Bet) bool {
	best := math.Inf(1)
	for _, b := range bets {
		if b.NumericValue == nil {
			continue
		}
		if d := math.Abs(*b.NumericValue - winningValue); d < best {
			best = d
		}
	}
	return func(b domain.Bet) bool {
		if b.NumericValue == nil || math.IsInf(best, 1) {
			return false
		}
		return math.Abs(*b.NumericValue-winningValue) == best
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/predictarena/ledger/internal/domain"
	"github.com/predictarena/ledger/internal/metrics"
	"github.com/predictarena/ledger/internal/pricing"
)

// EventDispatcher delivers fire-and-forget domain events. Implementations
// must never fail the caller; see the notify package.
type EventDispatcher interface {
	Dispatch(ctx context.Context, evt domain.Event)
}

// Bet placement throttle per user.
const (
	betRateLimit  = 10
	betRateWindow = time.Second
)

// BetService validates and executes wagers. Every placement runs as one
// ledger transaction: debit, transaction row, bet row, and the AMM pool
// update commit together or not at all.
type BetService struct {
	ledger     domain.Ledger
	settings   domain.SettingsStore
	limiter    domain.RateLimiter
	dispatcher EventDispatcher
	logger     *slog.Logger
}

// NewBetService creates a BetService with all required dependencies.
func NewBetService(
	ledger domain.Ledger,
	settings domain.SettingsStore,
	limiter domain.RateLimiter,
	dispatcher EventDispatcher,
	logger *slog.Logger,
) *BetService {
	return &BetService{
		ledger:     ledger,
		settings:   settings,
		limiter:    limiter,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// PlaceBet executes a single wager. When an idempotency key is supplied and a
// bet already exists for (user, market, key), the existing bet is returned
// unchanged so client retries after an ambiguous timeout never double-charge.
func (s *BetService) PlaceBet(ctx context.Context, req domain.PlaceBetRequest) (domain.Bet, error) {
	if req.UserID == "" || req.MarketID == "" {
		return domain.Bet{}, fmt.Errorf("bet_service: missing user or market: %w", domain.ErrInvalidInput)
	}
	if req.Amount <= 0 {
		return domain.Bet{}, fmt.Errorf("bet_service: amount %d: %w", req.Amount, domain.ErrInvalidInput)
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, "bets:"+req.UserID, betRateLimit, betRateWindow)
		if err != nil {
			return domain.Bet{}, fmt.Errorf("bet_service: rate limiter: %w", err)
		}
		if !allowed {
			metrics.BetsRejected.WithLabelValues("rate_limited").Inc()
			return domain.Bet{}, fmt.Errorf("bet_service: user %s: %w", req.UserID, domain.ErrRateLimited)
		}
	}

	var (
		bet    domain.Bet
		market domain.Market
		prices map[string]float64
		replay bool
	)

	run := func(tx domain.LedgerTx) error {
		replay = false
		if req.IdempotencyKey != nil {
			existing, err := tx.BetByIdempotencyKey(ctx, req.UserID, req.MarketID, *req.IdempotencyKey)
			if err == nil {
				bet = existing
				replay = true
				return nil
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		}

		m, err := tx.MarketForUpdate(ctx, req.MarketID)
		if err != nil {
			return err
		}
		market = m

		now := time.Now().UTC()
		if m.Status != domain.MarketStatusOpen {
			return fmt.Errorf("market %s is %s: %w", m.ID, m.Status, domain.ErrMarketClosed)
		}
		if !now.Before(m.ResolutionDate) {
			return fmt.Errorf("market %s closed at %s: %w", m.ID, m.ResolutionDate, domain.ErrMarketExpired)
		}
		if m.MinBet != nil && req.Amount < *m.MinBet {
			return fmt.Errorf("amount %d below minimum %d: %w", req.Amount, *m.MinBet, domain.ErrBetLimit)
		}
		if m.MaxBet != nil && req.Amount > *m.MaxBet {
			return fmt.Errorf("amount %d above maximum %d: %w", req.Amount, *m.MaxBet, domain.ErrBetLimit)
		}

		settings, err := s.settings.Get(ctx, m.ArenaID)
		if err != nil {
			return fmt.Errorf("arena settings for %s: %w", m.ArenaID, err)
		}

		bet = domain.Bet{
			ID:             uuid.NewString(),
			UserID:         req.UserID,
			MarketID:       req.MarketID,
			OptionID:       req.OptionID,
			NumericValue:   req.NumericValue,
			Amount:         req.Amount,
			IdempotencyKey: req.IdempotencyKey,
			CreatedAt:      now,
		}
		prices = nil

		switch m.Type {
		case domain.MarketTypeBinary, domain.MarketTypeMultipleChoice:
			if req.OptionID == nil {
				return fmt.Errorf("market %s requires an option: %w", m.ID, domain.ErrInvalidOption)
			}
			// Locking the option rows pins the pool state this bet is
			// priced against until commit.
			options, err := tx.OptionsForUpdate(ctx, m.ID)
			if err != nil {
				return err
			}
			quote, err := pricing.NewQuote(options, *req.OptionID, req.Amount, settings.TradingFeePercent)
			if err != nil {
				return err
			}
			bet.Fee = quote.Fee
			bet.Shares = float64(quote.Payout)

			// The quote validated the option against this market's own
			// rows; only then may the stake deepen its pool.
			if err := tx.AddLiquidity(ctx, *req.OptionID, float64(quote.NetStake)); err != nil {
				return err
			}

			for i := range options {
				if options[i].ID == *req.OptionID {
					options[i].Liquidity += float64(quote.NetStake)
				}
			}
			if prices, err = pricing.Probabilities(options); err != nil {
				return err
			}
		case domain.MarketTypeNumericRange:
			if req.OptionID != nil {
				return fmt.Errorf("market %s takes numeric guesses, not options: %w", m.ID, domain.ErrInvalidInput)
			}
			if req.NumericValue == nil {
				return fmt.Errorf("market %s requires a numeric guess: %w", m.ID, domain.ErrInvalidInput)
			}
			bet.Fee = int64(math.Floor(float64(req.Amount) * settings.TradingFeePercent))
			bet.Shares = float64(req.Amount - bet.Fee)
		default:
			return fmt.Errorf("market %s has unknown type %s: %w", m.ID, m.Type, domain.ErrInvalidInput)
		}

		acct, err := tx.AccountForUpdate(ctx, req.UserID, m.ArenaID)
		if err != nil {
			return err
		}
		if acct.Points < req.Amount {
			return fmt.Errorf("balance %d, stake %d: %w", acct.Points, req.Amount, domain.ErrInsufficientFunds)
		}
		if err := tx.Debit(ctx, acct.ID, req.Amount); err != nil {
			return err
		}
		if err := tx.Record(ctx, domain.Transaction{
			Type:       domain.TxBetPlaced,
			Amount:     req.Amount,
			FromUserID: &req.UserID,
			MarketID:   &m.ID,
			ArenaID:    &m.ArenaID,
		}); err != nil {
			return err
		}
		if err := tx.CreateBet(ctx, bet); err != nil {
			return err
		}
		return nil
	}

	err := s.ledger.InTx(ctx, run)
	if errors.Is(err, domain.ErrAlreadyExists) && req.IdempotencyKey != nil {
		// A concurrent request with the same key won the insert race. The
		// whole transaction is retried once so the pre-check finds the
		// committed bet and returns it unchanged.
		err = s.ledger.InTx(ctx, run)
	}
	if err != nil {
		s.countRejection(err)
		return domain.Bet{}, fmt.Errorf("bet_service: place bet: %w", err)
	}

	if replay {
		s.logger.InfoContext(ctx, "bet_service: idempotent replay",
			slog.String("bet_id", bet.ID),
			slog.String("user_id", req.UserID),
			slog.String("market_id", req.MarketID),
		)
		return bet, nil
	}

	metrics.BetsPlaced.WithLabelValues(string(market.Type)).Inc()
	metrics.PointsStaked.Add(float64(bet.Amount))

	if s.dispatcher != nil && prices != nil {
		payload := make(map[string]any, len(prices))
		for id, p := range prices {
			payload[id] = p
		}
		s.dispatcher.Dispatch(ctx, domain.Event{
			Type:     domain.EventPriceUpdate,
			MarketID: market.ID,
			ArenaID:  market.ArenaID,
			Payload:  payload,
		})
	}

	s.logger.InfoContext(ctx, "bet_service: bet placed",
		slog.String("bet_id", bet.ID),
		slog.String("user_id", req.UserID),
		slog.String("market_id", req.MarketID),
		slog.Int64("amount", bet.Amount),
		slog.Int64("fee", bet.Fee),
		slog.Float64("shares", bet.Shares),
	)
	return bet, nil
}

func (s *BetService) countRejection(err error) {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		metrics.BetsRejected.WithLabelValues("insufficient_funds").Inc()
	case errors.Is(err, domain.ErrMarketClosed), errors.Is(err, domain.ErrMarketExpired):
		metrics.BetsRejected.WithLabelValues("market_closed").Inc()
	case errors.Is(err, domain.ErrBetLimit):
		metrics.BetsRejected.WithLabelValues("bet_limit").Inc()
	case errors.Is(err, domain.ErrInvalidOption), errors.Is(err, domain.ErrInvalidInput):
		metrics.BetsRejected.WithLabelValues("invalid_input").Inc()
	case errors.Is(err, domain.ErrNotFound):
		metrics.BetsRejected.WithLabelValues("not_found").Inc()
	default:
		metrics.BetsRejected.WithLabelValues("internal").Inc()
	}
}

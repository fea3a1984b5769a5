package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/predictarena/ledger/internal/domain"
	"github.com/predictarena/ledger/internal/pricing"
)

// MarketService serves read-only market views: listings, implied
// probabilities, and payout quotes. Quotes served here are advisory snapshot
// reads; the price a bet actually executes at is re-derived under row locks
// inside the placement transaction.
type MarketService struct {
	markets  domain.MarketStore
	settings domain.SettingsStore
	logger   *slog.Logger
}

// NewMarketService creates a MarketService.
func NewMarketService(markets domain.MarketStore, settings domain.SettingsStore, logger *slog.Logger) *MarketService {
	return &MarketService{
		markets:  markets,
		settings: settings,
		logger:   logger,
	}
}

// GetMarket returns one market with its options.
func (s *MarketService) GetMarket(ctx context.Context, marketID string) (domain.Market, []domain.Option, error) {
	m, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.Market{}, nil, fmt.Errorf("market_service: get market %q: %w", marketID, err)
	}
	options, err := s.markets.Options(ctx, marketID)
	if err != nil {
		return domain.Market{}, nil, fmt.Errorf("market_service: options for %q: %w", marketID, err)
	}
	return m, options, nil
}

// ListOpen returns open markets in the arena.
func (s *MarketService) ListOpen(ctx context.Context, arenaID string, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := s.markets.ListOpen(ctx, arenaID, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list open for %q: %w", arenaID, err)
	}
	return markets, nil
}

// Prices returns the implied probability of every option on the market.
func (s *MarketService) Prices(ctx context.Context, marketID string) (map[string]float64, error) {
	options, err := s.markets.Options(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("market_service: options for %q: %w", marketID, err)
	}
	probs, err := pricing.Probabilities(options)
	if err != nil {
		return nil, fmt.Errorf("market_service: prices for %q: %w", marketID, err)
	}
	return probs, nil
}

// GetQuote prices a prospective bet at the current pool state using the
// arena's trading fee.
func (s *MarketService) GetQuote(ctx context.Context, marketID, optionID string, amount int64) (pricing.Quote, error) {
	m, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return pricing.Quote{}, fmt.Errorf("market_service: get market %q: %w", marketID, err)
	}
	if !m.Open(time.Now().UTC()) {
		return pricing.Quote{}, fmt.Errorf("market_service: market %q: %w", marketID, domain.ErrMarketClosed)
	}

	options, err := s.markets.Options(ctx, marketID)
	if err != nil {
		return pricing.Quote{}, fmt.Errorf("market_service: options for %q: %w", marketID, err)
	}
	settings, err := s.settings.Get(ctx, m.ArenaID)
	if err != nil {
		return pricing.Quote{}, fmt.Errorf("market_service: settings for %q: %w", m.ArenaID, err)
	}

	quote, err := pricing.NewQuote(options, optionID, amount, settings.TradingFeePercent)
	if err != nil {
		return pricing.Quote{}, fmt.Errorf("market_service: quote: %w", err)
	}

	s.logger.DebugContext(ctx, "market_service: quote served",
		slog.String("market_id", marketID),
		slog.String("option_id", optionID),
		slog.Int64("amount", amount),
		slog.Int64("payout", quote.Payout),
	)
	return quote, nil
}

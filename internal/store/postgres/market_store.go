package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predictarena/ledger/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL. Reads here are
// snapshot reads for quoting and display; mutations stay on the Ledger.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketSelectCols = `id, arena_id, creator_id, question, market_type, status,
	resolution_date, min_bet, max_bet, winning_option_id, winning_value,
	created_at, resolved_at`

func scanMarket(scanner interface{ Scan(dest ...any) error }) (domain.Market, error) {
	var m domain.Market
	var mType, status string

	err := scanner.Scan(
		&m.ID, &m.ArenaID, &m.CreatorID, &m.Question, &mType, &status,
		&m.ResolutionDate, &m.MinBet, &m.MaxBet, &m.WinningOptionID, &m.WinningValue,
		&m.CreatedAt, &m.ResolvedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}

	m.Type = domain.MarketType(mType)
	m.Status = domain.MarketStatus(status)
	return m, nil
}

func scanOptionRows(rows pgx.Rows) ([]domain.Option, error) {
	var options []domain.Option
	for rows.Next() {
		var o domain.Option
		if err := rows.Scan(&o.ID, &o.MarketID, &o.Text, &o.Liquidity); err != nil {
			return nil, err
		}
		options = append(options, o)
	}
	return options, rows.Err()
}

// GetByID retrieves a single market by ID.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketSelectCols+` FROM markets WHERE id = $1`, id)

	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// Options returns the market's options ordered by id.
func (s *MarketStore) Options(ctx context.Context, marketID string) ([]domain.Option, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, market_id, text, liquidity
		  FROM options
		 WHERE market_id = $1
		 ORDER BY id`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: options for %s: %w", marketID, err)
	}
	defer rows.Close()

	options, err := scanOptionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan options: %w", err)
	}
	return options, nil
}

// ListOpen returns OPEN markets in an arena with pagination.
func (s *MarketStore) ListOpen(ctx context.Context, arenaID string, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketSelectCols + ` FROM markets WHERE arena_id = $1 AND status = $2
		 ORDER BY resolution_date`
	args := []any{arenaID, string(domain.MarketStatusOpen)}

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

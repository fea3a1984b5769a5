package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predictarena/ledger/internal/domain"
)

// SettingsStore implements domain.SettingsStore using PostgreSQL. Arena
// policy and membership are owned by an external admin collaborator; the
// ledger only reads them.
type SettingsStore struct {
	pool *pgxpool.Pool
}

// NewSettingsStore creates a SettingsStore backed by the given pool.
func NewSettingsStore(pool *pgxpool.Pool) *SettingsStore {
	return &SettingsStore{pool: pool}
}

const settingsSelectCols = `id, trading_fee_percent, seed_liquidity, liquidity_floor,
	allow_transfers, transfer_limit, monthly_allocation, allow_carryover,
	reset_frequency, custom_reset_days, winner_rule, next_reset_at`

func scanSettings(scanner interface{ Scan(dest ...any) error }) (domain.ArenaSettings, error) {
	var s domain.ArenaSettings
	var freq, rule string

	err := scanner.Scan(
		&s.ArenaID, &s.TradingFeePercent, &s.SeedLiquidity, &s.LiquidityFloor,
		&s.AllowTransfers, &s.TransferLimit, &s.MonthlyAllocation, &s.AllowCarryover,
		&freq, &s.CustomResetDays, &rule, &s.NextResetAt,
	)
	if err != nil {
		return domain.ArenaSettings{}, err
	}

	s.ResetFrequency = domain.ResetFrequency(freq)
	s.WinnerRule = domain.WinnerRule(rule)
	return s, nil
}

// Get retrieves the policy settings for an arena.
func (s *SettingsStore) Get(ctx context.Context, arenaID string) (domain.ArenaSettings, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+settingsSelectCols+` FROM arenas WHERE id = $1`, arenaID)

	settings, err := scanSettings(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ArenaSettings{}, domain.ErrNotFound
		}
		return domain.ArenaSettings{}, fmt.Errorf("postgres: get arena settings %s: %w", arenaID, err)
	}
	return settings, nil
}

// ListDue returns arenas whose automatic next-reset timestamp has elapsed.
// MANUAL arenas never appear; a NULL next_reset_at on an automatic cadence
// counts as due so new arenas get their first cycle scheduled.
func (s *SettingsStore) ListDue(ctx context.Context, now time.Time) ([]domain.ArenaSettings, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+settingsSelectCols+`
		  FROM arenas
		 WHERE reset_frequency <> $1
		   AND (next_reset_at IS NULL OR next_reset_at <= $2)
		 ORDER BY id`,
		string(domain.ResetManual), now)
	if err != nil {
		return nil, fmt.Errorf("postgres: list due arenas: %w", err)
	}
	defer rows.Close()

	var due []domain.ArenaSettings
	for rows.Next() {
		settings, err := scanSettings(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan due arena: %w", err)
		}
		due = append(due, settings)
	}
	return due, rows.Err()
}

// Role returns the user's role in the arena, or ErrNotFound when the user is
// not a member.
func (s *SettingsStore) Role(ctx context.Context, arenaID, userID string) (domain.MemberRole, error) {
	var role string
	err := s.pool.QueryRow(ctx,
		`SELECT role FROM arena_members WHERE arena_id = $1 AND user_id = $2`,
		arenaID, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("postgres: member role %s/%s: %w", arenaID, userID, err)
	}
	return domain.MemberRole(role), nil
}

// UserByEmail resolves a user id from an email address.
func (s *SettingsStore) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email FROM users WHERE email = $1`, email).Scan(&u.ID, &u.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: user by email: %w", err)
	}
	return u, nil
}

// Members returns all members of an arena.
func (s *SettingsStore) Members(ctx context.Context, arenaID string) ([]domain.Member, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT arena_id, user_id, role, joined_at FROM arena_members WHERE arena_id = $1 ORDER BY user_id`,
		arenaID)
	if err != nil {
		return nil, fmt.Errorf("postgres: members of %s: %w", arenaID, err)
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		var role string
		if err := rows.Scan(&m.ArenaID, &m.UserID, &role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan member: %w", err)
		}
		m.Role = domain.MemberRole(role)
		members = append(members, m)
	}
	return members, rows.Err()
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/predictarena/ledger/internal/blob/s3"
	"github.com/predictarena/ledger/internal/domain"
	"github.com/predictarena/ledger/internal/metrics"
)

// CycleArchiver persists cycle snapshots and sweeps aged transaction rows to
// cold storage. See the s3blob package.
type CycleArchiver interface {
	ArchiveCycle(ctx context.Context, snap s3blob.CycleSnapshot) error
	ArchiveTransactions(ctx context.Context, before time.Time) (int64, error)
}

// resetLockTTL bounds how long a crashed run can block an arena's reset.
const resetLockTTL = 5 * time.Minute

// ResetService runs the periodic cycle reset: per due arena it determines the
// cycle winner, snapshots the standings, reallocates balances, and advances
// the next-reset timestamp. Arenas are processed independently, each in its
// own transaction under a distributed lock, so one arena's failure never
// rolls back another's reset.
type ResetService struct {
	ledger     domain.Ledger
	settings   domain.SettingsStore
	locks      domain.LockManager
	archiver   CycleArchiver
	dispatcher EventDispatcher
	logger     *slog.Logger

	interval  time.Duration
	retention time.Duration
}

// NewResetService creates a ResetService. archiver may be nil (snapshots and
// the archival sweep disabled); retention zero disables the sweep.
func NewResetService(
	ledger domain.Ledger,
	settings domain.SettingsStore,
	locks domain.LockManager,
	archiver CycleArchiver,
	dispatcher EventDispatcher,
	logger *slog.Logger,
	interval, retention time.Duration,
) *ResetService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ResetService{
		ledger:     ledger,
		settings:   settings,
		locks:      locks,
		archiver:   archiver,
		dispatcher: dispatcher,
		logger:     logger,
		interval:   interval,
		retention:  retention,
	}
}

// Run ticks until the context is cancelled.
func (s *ResetService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "reset_service: started",
		slog.Duration("interval", s.interval),
	)
	for {
		if err := s.RunOnce(ctx, time.Now().UTC()); err != nil {
			s.logger.ErrorContext(ctx, "reset_service: run failed",
				slog.String("error", err.Error()),
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce resets every arena whose next-reset timestamp has elapsed, then
// sweeps aged transaction rows when a retention window is configured. A
// failing arena is logged and skipped; the first such error is returned
// after all arenas were attempted.
func (s *ResetService) RunOnce(ctx context.Context, now time.Time) error {
	due, err := s.settings.ListDue(ctx, now)
	if err != nil {
		return fmt.Errorf("reset_service: list due arenas: %w", err)
	}

	var firstErr error
	for _, arena := range due {
		result, performed, err := s.resetArena(ctx, arena.ArenaID, now)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				// Another instance owns this arena's reset.
				continue
			}
			metrics.CycleResetFailures.Inc()
			s.logger.ErrorContext(ctx, "reset_service: arena reset failed",
				slog.String("arena_id", arena.ArenaID),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if performed {
			s.finishReset(ctx, result)
		}
	}

	if s.archiver != nil && s.retention > 0 {
		if _, err := s.archiver.ArchiveTransactions(ctx, now.Add(-s.retention)); err != nil {
			s.logger.WarnContext(ctx, "reset_service: transaction archive failed",
				slog.String("error", err.Error()),
			)
		}
	}
	return firstErr
}

// resetArena performs one arena's reset under a distributed lock. The
// returned bool reports whether a reset actually ran; it is false when the
// arena turned out not to be due after the lock was taken.
func (s *ResetService) resetArena(ctx context.Context, arenaID string, now time.Time) (domain.CycleResult, bool, error) {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, "cycle-reset:"+arenaID, resetLockTTL)
		if err != nil {
			return domain.CycleResult{}, false, err
		}
		defer unlock()
	}

	// Re-read under the lock; a concurrent run may have already advanced
	// the reset timestamp.
	settings, err := s.settings.Get(ctx, arenaID)
	if err != nil {
		return domain.CycleResult{}, false, err
	}
	if !settings.ResetDue(now) {
		return domain.CycleResult{}, false, nil
	}

	var (
		result   domain.CycleResult
		snapshot s3blob.CycleSnapshot
	)
	err = s.ledger.InTx(ctx, func(tx domain.LedgerTx) error {
		accounts, err := tx.AccountsByArenaForUpdate(ctx, arenaID)
		if err != nil {
			return err
		}

		scores, err := s.scores(ctx, tx, settings, accounts, now)
		if err != nil {
			return err
		}

		snapshot = s3blob.CycleSnapshot{
			ArenaID:    arenaID,
			TakenAt:    now,
			WinnerRule: string(settings.WinnerRule),
			Standings:  make([]s3blob.CycleStanding, 0, len(accounts)),
		}
		result = domain.CycleResult{
			ArenaID: arenaID,
			Members: len(accounts),
			ResetAt: now,
		}
		for i, acct := range accounts {
			score := scores[acct.OwnerID]
			snapshot.Standings = append(snapshot.Standings, s3blob.CycleStanding{
				UserID: acct.OwnerID,
				Points: acct.Points,
				Score:  score,
			})
			// Accounts arrive ordered by owner id; strict > makes the
			// tie-break deterministic.
			if i == 0 || score > result.WinnerScore {
				result.WinnerID = acct.OwnerID
				result.WinnerScore = score
			}
		}
		snapshot.WinnerID = result.WinnerID

		for _, acct := range accounts {
			owner := acct.OwnerID
			if settings.AllowCarryover {
				if settings.MonthlyAllocation <= 0 {
					continue
				}
				if err := tx.Credit(ctx, acct.ID, settings.MonthlyAllocation); err != nil {
					return err
				}
			} else {
				if err := tx.SetBalance(ctx, acct.ID, settings.MonthlyAllocation); err != nil {
					return err
				}
				// A reset-to-zero arena wipes balances without an
				// allocation row; the audit trail only takes positive
				// amounts.
				if settings.MonthlyAllocation <= 0 {
					continue
				}
			}
			if err := tx.Record(ctx, domain.Transaction{
				Type:     domain.TxMonthlyReset,
				Amount:   settings.MonthlyAllocation,
				ToUserID: &owner,
				ArenaID:  &arenaID,
			}); err != nil {
				return err
			}
		}

		next := settings.NextReset(now)
		result.NextResetAt = next
		return tx.SetNextReset(ctx, arenaID, next)
	})
	if err != nil {
		return domain.CycleResult{}, false, fmt.Errorf("reset arena %q: %w", arenaID, err)
	}

	if s.archiver != nil {
		if err := s.archiver.ArchiveCycle(ctx, snapshot); err != nil {
			// The reset is committed; a lost snapshot is not worth failing it.
			s.logger.WarnContext(ctx, "reset_service: cycle snapshot failed",
				slog.String("arena_id", arenaID),
				slog.String("error", err.Error()),
			)
		}
	}
	return result, true, nil
}

// scores computes each member's standing under the arena's winner rule.
func (s *ResetService) scores(ctx context.Context, tx domain.LedgerTx, settings domain.ArenaSettings, accounts []domain.Account, now time.Time) (map[string]int64, error) {
	scores := make(map[string]int64, len(accounts))
	switch settings.WinnerRule {
	case domain.WinnerNetProfit:
		profits, err := tx.NetProfitByArena(ctx, settings.ArenaID, cycleStart(settings, now))
		if err != nil {
			return nil, err
		}
		for _, acct := range accounts {
			scores[acct.OwnerID] = profits[acct.OwnerID]
		}
	default:
		for _, acct := range accounts {
			scores[acct.OwnerID] = acct.Points
		}
	}
	return scores, nil
}

func (s *ResetService) finishReset(ctx context.Context, result domain.CycleResult) {
	metrics.CycleResets.Inc()

	if s.dispatcher != nil && result.WinnerID != "" {
		s.dispatcher.Dispatch(ctx, domain.Event{
			Type:    domain.EventMonthlyWinner,
			UserID:  result.WinnerID,
			ArenaID: result.ArenaID,
			Payload: map[string]any{
				"score":   result.WinnerScore,
				"members": result.Members,
			},
		})
	}

	s.logger.InfoContext(ctx, "reset_service: arena reset",
		slog.String("arena_id", result.ArenaID),
		slog.String("winner_id", result.WinnerID),
		slog.Int64("winner_score", result.WinnerScore),
		slog.Int("members", result.Members),
	)
}

// cycleStart is the beginning of the cycle that ends at now, one cadence
// period back. Profit-based winner scoring counts transactions from here.
func cycleStart(s domain.ArenaSettings, now time.Time) time.Time {
	switch s.ResetFrequency {
	case domain.ResetWeekly:
		return now.AddDate(0, 0, -7)
	case domain.ResetMonthly:
		return now.AddDate(0, -1, 0)
	case domain.ResetCustom:
		days := s.CustomResetDays
		if days <= 0 {
			days = 30
		}
		return now.AddDate(0, 0, -days)
	default:
		return time.Time{}
	}
}

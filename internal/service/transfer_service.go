package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/predictarena/ledger/internal/domain"
	"github.com/predictarena/ledger/internal/metrics"
)

// TransferService moves points between two members of the same arena. The
// debit, credit, and audit row commit in one ledger transaction subject to
// the arena's transfer policy.
type TransferService struct {
	ledger   domain.Ledger
	settings domain.SettingsStore
	logger   *slog.Logger
}

// NewTransferService creates a TransferService.
func NewTransferService(ledger domain.Ledger, settings domain.SettingsStore, logger *slog.Logger) *TransferService {
	return &TransferService{
		ledger:   ledger,
		settings: settings,
		logger:   logger,
	}
}

// Transfer moves amount points from the sender to the member identified by
// email within the arena.
func (s *TransferService) Transfer(ctx context.Context, fromUserID, toEmail string, amount int64, arenaID string) error {
	if fromUserID == "" || toEmail == "" || arenaID == "" {
		return s.reject("invalid_input", fmt.Errorf("transfer_service: missing sender, receiver or arena: %w", domain.ErrInvalidInput))
	}
	if amount <= 0 {
		return s.reject("invalid_input", fmt.Errorf("transfer_service: amount %d: %w", amount, domain.ErrInvalidInput))
	}

	settings, err := s.settings.Get(ctx, arenaID)
	if err != nil {
		return fmt.Errorf("transfer_service: settings for %q: %w", arenaID, err)
	}
	if !settings.AllowTransfers {
		return s.reject("disabled", fmt.Errorf("transfer_service: arena %s: %w", arenaID, domain.ErrTransfersDisabled))
	}
	if settings.TransferLimit != nil && amount > *settings.TransferLimit {
		return s.reject("limit", fmt.Errorf("transfer_service: amount %d over limit %d: %w",
			amount, *settings.TransferLimit, domain.ErrTransferLimit))
	}

	receiver, err := s.settings.UserByEmail(ctx, toEmail)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.reject("receiver_not_found", fmt.Errorf("transfer_service: receiver %q: %w", toEmail, domain.ErrReceiverNotFound))
		}
		return fmt.Errorf("transfer_service: lookup receiver: %w", err)
	}
	if receiver.ID == fromUserID {
		return s.reject("self", fmt.Errorf("transfer_service: user %s: %w", fromUserID, domain.ErrSelfTransfer))
	}
	if _, err := s.settings.Role(ctx, arenaID, receiver.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.reject("receiver_not_member", fmt.Errorf("transfer_service: user %s in arena %s: %w",
				receiver.ID, arenaID, domain.ErrReceiverNotMember))
		}
		return fmt.Errorf("transfer_service: receiver membership: %w", err)
	}

	err = s.ledger.InTx(ctx, func(tx domain.LedgerTx) error {
		// Lock the two accounts in a stable order so opposite concurrent
		// transfers between the same pair cannot deadlock.
		first, second := fromUserID, receiver.ID
		if second < first {
			first, second = second, first
		}
		accounts := make(map[string]domain.Account, 2)
		for _, ownerID := range []string{first, second} {
			acct, err := tx.AccountForUpdate(ctx, ownerID, arenaID)
			if err != nil {
				return err
			}
			accounts[ownerID] = acct
		}

		sender := accounts[fromUserID]
		if sender.Points < amount {
			return fmt.Errorf("balance %d, transfer %d: %w", sender.Points, amount, domain.ErrInsufficientFunds)
		}
		if err := tx.Debit(ctx, sender.ID, amount); err != nil {
			return err
		}
		if err := tx.Credit(ctx, accounts[receiver.ID].ID, amount); err != nil {
			return err
		}
		return tx.Record(ctx, domain.Transaction{
			Type:       domain.TxUserTransfer,
			Amount:     amount,
			FromUserID: &fromUserID,
			ToUserID:   &receiver.ID,
			ArenaID:    &arenaID,
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			metrics.TransfersRejected.WithLabelValues("insufficient_funds").Inc()
		} else {
			metrics.TransfersRejected.WithLabelValues("internal").Inc()
		}
		return fmt.Errorf("transfer_service: transfer: %w", err)
	}

	metrics.Transfers.Inc()
	s.logger.InfoContext(ctx, "transfer_service: transfer completed",
		slog.String("from", fromUserID),
		slog.String("to", receiver.ID),
		slog.String("arena_id", arenaID),
		slog.Int64("amount", amount),
	)
	return nil
}

func (s *TransferService) reject(reason string, err error) error {
	metrics.TransfersRejected.WithLabelValues(reason).Inc()
	return err
}

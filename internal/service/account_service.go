package service

import (
	"context"
	"fmt"

	"github.com/predictarena/ledger/internal/domain"
)

// AccountService serves balance and history views over the read stores.
type AccountService struct {
	accounts domain.AccountStore
	txs      domain.TransactionStore
	bets     domain.BetStore
}

// NewAccountService creates an AccountService.
func NewAccountService(accounts domain.AccountStore, txs domain.TransactionStore, bets domain.BetStore) *AccountService {
	return &AccountService{
		accounts: accounts,
		txs:      txs,
		bets:     bets,
	}
}

// Get returns the user's account in the arena.
func (s *AccountService) Get(ctx context.Context, ownerID, arenaID string) (domain.Account, error) {
	acct, err := s.accounts.Get(ctx, ownerID, arenaID)
	if err != nil {
		return domain.Account{}, fmt.Errorf("account_service: get account: %w", err)
	}
	return acct, nil
}

// Standings returns the arena's accounts ordered by balance, highest first.
func (s *AccountService) Standings(ctx context.Context, arenaID string) ([]domain.Account, error) {
	accounts, err := s.accounts.ListByArena(ctx, arenaID)
	if err != nil {
		return nil, fmt.Errorf("account_service: standings for %q: %w", arenaID, err)
	}
	return accounts, nil
}

// Transactions returns the user's ledger history, newest first.
func (s *AccountService) Transactions(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Transaction, error) {
	txs, err := s.txs.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("account_service: transactions for %q: %w", userID, err)
	}
	return txs, nil
}

// Bets returns the user's bets, newest first.
func (s *AccountService) Bets(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Bet, error) {
	bets, err := s.bets.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("account_service: bets for %q: %w", userID, err)
	}
	return bets, nil
}

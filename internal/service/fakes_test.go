package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/predictarena/ledger/internal/domain"
)

// fakeStore is a single in-memory world shared by the fake ledger and the
// fake settings store. InTx snapshots the world and restores it when the
// callback fails, mirroring the rollback guarantee of the real store.
// Accounts are keyed by "owner|arena", options by market id, and roles by
// "arena|user".
type fakeStore struct {
	mu           sync.Mutex
	accounts     map[string]*domain.Account
	markets      map[string]*domain.Market
	options      map[string][]domain.Option
	bets         []domain.Bet
	txs          []domain.Transaction
	settings     map[string]domain.ArenaSettings
	usersByEmail map[string]domain.User
	roles        map[string]domain.MemberRole
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:     make(map[string]*domain.Account),
		markets:      make(map[string]*domain.Market),
		options:      make(map[string][]domain.Option),
		settings:     make(map[string]domain.ArenaSettings),
		usersByEmail: make(map[string]domain.User),
		roles:        make(map[string]domain.MemberRole),
	}
}

func (f *fakeStore) addAccount(ownerID, arenaID string, points int64) {
	f.accounts[ownerID+"|"+arenaID] = &domain.Account{
		ID:      ownerID + "|" + arenaID,
		OwnerID: ownerID,
		ArenaID: arenaID,
		Points:  points,
	}
}

func (f *fakeStore) addMarket(m domain.Market, options ...domain.Option) {
	cp := m
	f.markets[m.ID] = &cp
	f.options[m.ID] = append([]domain.Option(nil), options...)
}

func (f *fakeStore) addMember(arenaID, userID, email string, role domain.MemberRole) {
	f.usersByEmail[email] = domain.User{ID: userID, Email: email}
	f.roles[arenaID+"|"+userID] = role
}

func (f *fakeStore) balance(ownerID, arenaID string) int64 {
	return f.accounts[ownerID+"|"+arenaID].Points
}

// snapshot deep-copies the mutable state touched by transactions.
func (f *fakeStore) snapshot() *fakeStore {
	s := newFakeStore()
	for k, v := range f.accounts {
		cp := *v
		s.accounts[k] = &cp
	}
	for k, v := range f.markets {
		cp := *v
		s.markets[k] = &cp
	}
	for k, v := range f.options {
		s.options[k] = append([]domain.Option(nil), v...)
	}
	s.bets = append([]domain.Bet(nil), f.bets...)
	s.txs = append([]domain.Transaction(nil), f.txs...)
	for k, v := range f.settings {
		s.settings[k] = v
	}
	return s
}

func (f *fakeStore) restore(s *fakeStore) {
	f.accounts = s.accounts
	f.markets = s.markets
	f.options = s.options
	f.bets = s.bets
	f.txs = s.txs
	f.settings = s.settings
}

// signedSum is the conservation probe: the net effect of all non-reset
// transactions on the given user.
func (f *fakeStore) signedSum(userID string) int64 {
	var sum int64
	for _, t := range f.txs {
		if t.Type == domain.TxMonthlyReset {
			continue
		}
		sum += t.Signed(userID)
	}
	return sum
}

// fakeLedger implements domain.Ledger over a fakeStore.
type fakeLedger struct {
	store *fakeStore
}

func (l *fakeLedger) InTx(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()

	snap := l.store.snapshot()
	if err := fn(&fakeTx{store: l.store}); err != nil {
		l.store.restore(snap)
		return err
	}
	return nil
}

type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) AccountForUpdate(_ context.Context, ownerID, arenaID string) (domain.Account, error) {
	acct, ok := t.store.accounts[ownerID+"|"+arenaID]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return *acct, nil
}

func (t *fakeTx) Debit(_ context.Context, accountID string, amount int64) error {
	acct, ok := t.store.accounts[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	if acct.Points < amount {
		return domain.ErrInsufficientFunds
	}
	acct.Points -= amount
	return nil
}

func (t *fakeTx) Credit(_ context.Context, accountID string, amount int64) error {
	acct, ok := t.store.accounts[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	acct.Points += amount
	return nil
}

func (t *fakeTx) SetBalance(_ context.Context, accountID string, points int64) error {
	acct, ok := t.store.accounts[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	acct.Points = points
	return nil
}

func (t *fakeTx) Record(_ context.Context, tr domain.Transaction) error {
	// The transactions table rejects non-positive amounts.
	if tr.Amount <= 0 {
		return fmt.Errorf("record amount %d: %w", tr.Amount, domain.ErrInvalidInput)
	}
	tr.ID = int64(len(t.store.txs) + 1)
	tr.CreatedAt = time.Now().UTC()
	t.store.txs = append(t.store.txs, tr)
	return nil
}

func (t *fakeTx) MarketForUpdate(_ context.Context, marketID string) (domain.Market, error) {
	m, ok := t.store.markets[marketID]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return *m, nil
}

func (t *fakeTx) OptionsForUpdate(_ context.Context, marketID string) ([]domain.Option, error) {
	return append([]domain.Option(nil), t.store.options[marketID]...), nil
}

func (t *fakeTx) AddLiquidity(_ context.Context, optionID string, delta float64) error {
	for _, opts := range t.store.options {
		for i := range opts {
			if opts[i].ID == optionID {
				opts[i].Liquidity += delta
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

func (t *fakeTx) CreateBet(_ context.Context, b domain.Bet) error {
	if b.IdempotencyKey != nil {
		for _, existing := range t.store.bets {
			if existing.UserID == b.UserID && existing.MarketID == b.MarketID &&
				existing.IdempotencyKey != nil && *existing.IdempotencyKey == *b.IdempotencyKey {
				return domain.ErrAlreadyExists
			}
		}
	}
	t.store.bets = append(t.store.bets, b)
	return nil
}

func (t *fakeTx) BetByIdempotencyKey(_ context.Context, userID, marketID, key string) (domain.Bet, error) {
	for _, b := range t.store.bets {
		if b.UserID == userID && b.MarketID == marketID &&
			b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			return b, nil
		}
	}
	return domain.Bet{}, domain.ErrNotFound
}

func (t *fakeTx) BetsByMarket(_ context.Context, marketID string) ([]domain.Bet, error) {
	var out []domain.Bet
	for _, b := range t.store.bets {
		if b.MarketID == marketID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (t *fakeTx) MarkResolved(_ context.Context, marketID string, winningOptionID *string, winningValue *float64, at time.Time) error {
	m, ok := t.store.markets[marketID]
	if !ok {
		return domain.ErrNotFound
	}
	m.Status = domain.MarketStatusResolved
	m.WinningOptionID = winningOptionID
	m.WinningValue = winningValue
	m.ResolvedAt = &at
	return nil
}

func (t *fakeTx) MarkCancelled(_ context.Context, marketID string) error {
	m, ok := t.store.markets[marketID]
	if !ok {
		return domain.ErrNotFound
	}
	m.Status = domain.MarketStatusCancelled
	return nil
}

func (t *fakeTx) PayoutsByMarket(_ context.Context, marketID string) (map[string]int64, error) {
	payouts := make(map[string]int64)
	for _, tr := range t.store.txs {
		if tr.Type == domain.TxWinPayout && tr.MarketID != nil && *tr.MarketID == marketID && tr.ToUserID != nil {
			payouts[*tr.ToUserID] += tr.Amount
		}
	}
	return payouts, nil
}

func (t *fakeTx) AccountsByArenaForUpdate(_ context.Context, arenaID string) ([]domain.Account, error) {
	var out []domain.Account
	for _, acct := range t.store.accounts {
		if acct.ArenaID == arenaID {
			out = append(out, *acct)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OwnerID < out[j].OwnerID })
	return out, nil
}

func (t *fakeTx) NetProfitByArena(_ context.Context, arenaID string, since time.Time) (map[string]int64, error) {
	profits := make(map[string]int64)
	for _, tr := range t.store.txs {
		if tr.Type == domain.TxMonthlyReset || tr.CreatedAt.Before(since) {
			continue
		}
		if tr.ArenaID == nil || *tr.ArenaID != arenaID {
			continue
		}
		if tr.ToUserID != nil {
			profits[*tr.ToUserID] += tr.Amount
		}
		if tr.FromUserID != nil {
			profits[*tr.FromUserID] -= tr.Amount
		}
	}
	return profits, nil
}

func (t *fakeTx) SetNextReset(_ context.Context, arenaID string, next *time.Time) error {
	s, ok := t.store.settings[arenaID]
	if !ok {
		return domain.ErrNotFound
	}
	s.NextResetAt = next
	t.store.settings[arenaID] = s
	return nil
}

// fakeSettings implements domain.SettingsStore over the same fakeStore.
type fakeSettings struct {
	store *fakeStore
}

func (f *fakeSettings) Get(_ context.Context, arenaID string) (domain.ArenaSettings, error) {
	s, ok := f.store.settings[arenaID]
	if !ok {
		return domain.ArenaSettings{}, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeSettings) ListDue(_ context.Context, now time.Time) ([]domain.ArenaSettings, error) {
	var out []domain.ArenaSettings
	for _, s := range f.store.settings {
		if s.ResetDue(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArenaID < out[j].ArenaID })
	return out, nil
}

func (f *fakeSettings) Role(_ context.Context, arenaID, userID string) (domain.MemberRole, error) {
	role, ok := f.store.roles[arenaID+"|"+userID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return role, nil
}

func (f *fakeSettings) UserByEmail(_ context.Context, email string) (domain.User, error) {
	u, ok := f.store.usersByEmail[email]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeSettings) Members(_ context.Context, arenaID string) ([]domain.Member, error) {
	var out []domain.Member
	for key, role := range f.store.roles {
		if len(key) > len(arenaID) && key[:len(arenaID)] == arenaID {
			out = append(out, domain.Member{ArenaID: arenaID, UserID: key[len(arenaID)+1:], Role: role})
		}
	}
	return out, nil
}

// fakeLimiter always answers with its configured verdict.
type fakeLimiter struct {
	allow bool
	err   error
}

func (f *fakeLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return f.allow, f.err
}

// fakeDispatcher records dispatched events.
type fakeDispatcher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (f *fakeDispatcher) Dispatch(_ context.Context, evt domain.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
}

func (f *fakeDispatcher) byType(t domain.EventType) []domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Event
	for _, e := range f.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// fakeLocks hands out locks unconditionally, or refuses when held is set.
type fakeLocks struct {
	held bool
}

func (f *fakeLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	if f.held {
		return nil, domain.ErrLockHeld
	}
	return func() {}, nil
}

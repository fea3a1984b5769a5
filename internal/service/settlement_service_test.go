package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictarena/ledger/internal/domain"
)

// settlementWorld builds an arena with a creator, an admin, a plain member,
// and an open binary market.
func settlementWorld() *fakeStore {
	store := newFakeStore()
	store.settings["arena-1"] = domain.ArenaSettings{
		ArenaID:           "arena-1",
		TradingFeePercent: 0.05,
	}
	store.addMember("arena-1", "carol", "carol@example.com", domain.RoleMember)
	store.addMember("arena-1", "admin", "admin@example.com", domain.RoleAdmin)
	store.addMember("arena-1", "mallory", "mallory@example.com", domain.RoleMember)
	store.addAccount("alice", "arena-1", 900)
	store.addAccount("bob", "arena-1", 900)
	store.addMarket(domain.Market{
		ID:             "mkt-1",
		ArenaID:        "arena-1",
		CreatorID:      "carol",
		Type:           domain.MarketTypeBinary,
		Status:         domain.MarketStatusOpen,
		ResolutionDate: time.Now().Add(24 * time.Hour),
	},
		domain.Option{ID: "opt-yes", MarketID: "mkt-1", Text: "Yes", Liquidity: 100},
		domain.Option{ID: "opt-no", MarketID: "mkt-1", Text: "No", Liquidity: 100},
	)
	return store
}

func addBet(store *fakeStore, b domain.Bet) {
	store.bets = append(store.bets, b)
}

func newSettlementService(store *fakeStore) (*SettlementService, *fakeDispatcher) {
	dispatcher := &fakeDispatcher{}
	svc := NewSettlementService(
		&fakeLedger{store: store},
		&fakeSettings{store: store},
		dispatcher,
		testLogger(),
	)
	return svc, dispatcher
}

func TestResolveMarket_PayoutsAndConservation(t *testing.T) {
	store := settlementWorld()
	// Alice staked 100 net on Yes at even odds (200 shares); Bob staked 100
	// net on No. Pool is 200.
	addBet(store, domain.Bet{ID: "b1", UserID: "alice", MarketID: "mkt-1", OptionID: strPtr("opt-yes"), Amount: 100, Shares: 200})
	addBet(store, domain.Bet{ID: "b2", UserID: "bob", MarketID: "mkt-1", OptionID: strPtr("opt-no"), Amount: 100, Shares: 150})
	svc, dispatcher := newSettlementService(store)

	res, err := svc.ResolveMarket(context.Background(), "carol", "mkt-1", strPtr("opt-yes"), nil)
	require.NoError(t, err)

	assert.False(t, res.Replayed)
	assert.Equal(t, int64(200), res.TotalPool)
	// Alice holds all winning shares: floor(200/200 * 200) = 200, no dust.
	assert.Equal(t, int64(200), res.Payouts["alice"])
	assert.Equal(t, int64(0), res.Residual)
	assert.NotContains(t, res.Payouts, "bob")

	assert.Equal(t, int64(1100), store.balance("alice", "arena-1"))
	assert.Equal(t, int64(900), store.balance("bob", "arena-1"))
	assert.Equal(t, domain.MarketStatusResolved, store.markets["mkt-1"].Status)

	// Disbursed never exceeds the pool.
	var paid int64
	for _, p := range res.Payouts {
		paid += p
	}
	assert.LessOrEqual(t, paid, res.TotalPool)

	resolved := dispatcher.byType(domain.EventMarketResolved)
	require.Len(t, resolved, 1)
	payoutEvents := dispatcher.byType(domain.EventWinPayout)
	require.Len(t, payoutEvents, 1)
	assert.Equal(t, "alice", payoutEvents[0].UserID)
}

func TestResolveMarket_ResidualDust(t *testing.T) {
	store := settlementWorld()
	store.addAccount("carl", "arena-1", 0)
	// Three equal winners over a pool of 100: each gets floor(100/3) = 33
	// and one point of dust stays unallocated.
	addBet(store, domain.Bet{ID: "b1", UserID: "alice", MarketID: "mkt-1", OptionID: strPtr("opt-yes"), Amount: 34, Shares: 10})
	addBet(store, domain.Bet{ID: "b2", UserID: "bob", MarketID: "mkt-1", OptionID: strPtr("opt-yes"), Amount: 33, Shares: 10})
	addBet(store, domain.Bet{ID: "b3", UserID: "carl", MarketID: "mkt-1", OptionID: strPtr("opt-yes"), Amount: 33, Shares: 10})
	svc, _ := newSettlementService(store)

	res, err := svc.ResolveMarket(context.Background(), "carol", "mkt-1", strPtr("opt-yes"), nil)
	require.NoError(t, err)

	assert.Equal(t, int64(100), res.TotalPool)
	assert.Equal(t, int64(33), res.Payouts["alice"])
	assert.Equal(t, int64(33), res.Payouts["bob"])
	assert.Equal(t, int64(33), res.Payouts["carl"])
	assert.Equal(t, int64(1), res.Residual)
}

func TestResolveMarket_Idempotent(t *testing.T) {
	store := settlementWorld()
	addBet(store, domain.Bet{ID: "b1", UserID: "alice", MarketID: "mkt-1", OptionID: strPtr("opt-yes"), Amount: 100, Shares: 200})
	svc, _ := newSettlementService(store)

	first, err := svc.ResolveMarket(context.Background(), "carol", "mkt-1", strPtr("opt-yes"), nil)
	require.NoError(t, err)
	balanceAfterFirst := store.balance("alice", "arena-1")
	txsAfterFirst := len(store.txs)

	second, err := svc.ResolveMarket(context.Background(), "carol", "mkt-1", strPtr("opt-yes"), nil)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Payouts, second.Payouts)
	// The replay credited nothing and wrote no rows.
	assert.Equal(t, balanceAfterFirst, store.balance("alice", "arena-1"))
	assert.Len(t, store.txs, txsAfterFirst)
}

func TestResolveMarket_NumericClosestGuessTies(t *testing.T) {
	store := settlementWorld()
	store.addMarket(domain.Market{
		ID:             "mkt-num",
		ArenaID:        "arena-1",
		CreatorID:      "carol",
		Type:           domain.MarketTypeNumericRange,
		Status:         domain.MarketStatusOpen,
		ResolutionDate: time.Now().Add(24 * time.Hour),
	})
	store.addAccount("carl", "arena-1", 0)
	// Guesses 10 and 14 are both 2 away from 12 and split the pool; 30 is
	// out of the running. Pool is 60, shares are net stakes.
	addBet(store, domain.Bet{ID: "b1", UserID: "alice", MarketID: "mkt-num", NumericValue: f64Ptr(10), Amount: 20, Shares: 20})
	addBet(store, domain.Bet{ID: "b2", UserID: "bob", MarketID: "mkt-num", NumericValue: f64Ptr(14), Amount: 20, Shares: 20})
	addBet(store, domain.Bet{ID: "b3", UserID: "carl", MarketID: "mkt-num", NumericValue: f64Ptr(30), Amount: 20, Shares: 20})
	svc, _ := newSettlementService(store)

	res, err := svc.ResolveMarket(context.Background(), "carol", "mkt-num", nil, f64Ptr(12))
	require.NoError(t, err)

	assert.Equal(t, int64(30), res.Payouts["alice"])
	assert.Equal(t, int64(30), res.Payouts["bob"])
	assert.NotContains(t, res.Payouts, "carl")
	assert.Equal(t, int64(0), res.Residual)
}

func TestResolveMarket_Authorization(t *testing.T) {
	store := settlementWorld()
	svc, _ := newSettlementService(store)

	_, err := svc.ResolveMarket(context.Background(), "mallory", "mkt-1", strPtr("opt-yes"), nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, domain.MarketStatusOpen, store.markets["mkt-1"].Status)

	// Arena admins may settle markets they did not create.
	_, err = svc.ResolveMarket(context.Background(), "admin", "mkt-1", strPtr("opt-yes"), nil)
	assert.NoError(t, err)
}

func TestResolveMarket_ReplayRequiresAuthorization(t *testing.T) {
	store := settlementWorld()
	addBet(store, domain.Bet{ID: "b1", UserID: "alice", MarketID: "mkt-1", OptionID: strPtr("opt-yes"), Amount: 100, Shares: 200})
	svc, _ := newSettlementService(store)

	_, err := svc.ResolveMarket(context.Background(), "carol", "mkt-1", strPtr("opt-yes"), nil)
	require.NoError(t, err)

	// A settled market's payout map is not readable through the replay
	// path by arbitrary members.
	res, err := svc.ResolveMarket(context.Background(), "mallory", "mkt-1", strPtr("opt-yes"), nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Empty(t, res.Payouts)

	_, err = svc.CancelMarket(context.Background(), "mallory", "mkt-1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestResolveMarket_ResolutionMatchesType(t *testing.T) {
	store := settlementWorld()
	svc, _ := newSettlementService(store)

	// A binary market cannot be resolved with a numeric value.
	_, err := svc.ResolveMarket(context.Background(), "carol", "mkt-1", nil, f64Ptr(3))
	assert.ErrorIs(t, err, domain.ErrInvalidResolution)

	// Nor with an option that belongs to another market.
	_, err = svc.ResolveMarket(context.Background(), "carol", "mkt-1", strPtr("opt-elsewhere"), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidResolution)
}

func TestCancelMarket_RefundsFullStake(t *testing.T) {
	store := settlementWorld()
	// Fees come back on cancellation: refunds use the gross amount.
	addBet(store, domain.Bet{ID: "b1", UserID: "alice", MarketID: "mkt-1", OptionID: strPtr("opt-yes"), Amount: 100, Fee: 5, Shares: 190})
	addBet(store, domain.Bet{ID: "b2", UserID: "alice", MarketID: "mkt-1", OptionID: strPtr("opt-no"), Amount: 50, Fee: 2, Shares: 70})
	svc, dispatcher := newSettlementService(store)

	res, err := svc.CancelMarket(context.Background(), "carol", "mkt-1")
	require.NoError(t, err)

	assert.Equal(t, int64(150), res.Payouts["alice"])
	assert.Equal(t, int64(1050), store.balance("alice", "arena-1"))
	assert.Equal(t, domain.MarketStatusCancelled, store.markets["mkt-1"].Status)

	// One aggregated refund row per user.
	var refunds int
	for _, tr := range store.txs {
		if tr.Type == domain.TxBetRefund {
			refunds++
			assert.Equal(t, int64(150), tr.Amount)
		}
	}
	assert.Equal(t, 1, refunds)
	assert.Len(t, dispatcher.byType(domain.EventMarketCancelled), 1)
}

func TestCancelMarket_Idempotent(t *testing.T) {
	store := settlementWorld()
	addBet(store, domain.Bet{ID: "b1", UserID: "alice", MarketID: "mkt-1", OptionID: strPtr("opt-yes"), Amount: 100, Shares: 200})
	svc, _ := newSettlementService(store)

	_, err := svc.CancelMarket(context.Background(), "carol", "mkt-1")
	require.NoError(t, err)
	balance := store.balance("alice", "arena-1")

	res, err := svc.CancelMarket(context.Background(), "carol", "mkt-1")
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Empty(t, res.Payouts)
	assert.Equal(t, balance, store.balance("alice", "arena-1"))
}

func TestCancelMarket_ResolvedMarketRefused(t *testing.T) {
	store := settlementWorld()
	store.markets["mkt-1"].Status = domain.MarketStatusResolved
	svc, _ := newSettlementService(store)

	_, err := svc.CancelMarket(context.Background(), "carol", "mkt-1")
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
}

func TestResolveMarket_CancelledMarketRefused(t *testing.T) {
	store := settlementWorld()
	store.markets["mkt-1"].Status = domain.MarketStatusCancelled
	svc, _ := newSettlementService(store)

	_, err := svc.ResolveMarket(context.Background(), "carol", "mkt-1", strPtr("opt-yes"), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidResolution)
}

// TestBetThenResolve_Conservation runs a full bet-and-settle round trip and
// checks that points only moved, never appeared.
func TestBetThenResolve_Conservation(t *testing.T) {
	store := settlementWorld()
	betSvc, _ := newBetService(store)
	setSvc, _ := newSettlementService(store)

	_, err := betSvc.PlaceBet(context.Background(), domain.PlaceBetRequest{
		UserID: "alice", MarketID: "mkt-1", OptionID: strPtr("opt-yes"), Amount: 100,
	})
	require.NoError(t, err)
	_, err = betSvc.PlaceBet(context.Background(), domain.PlaceBetRequest{
		UserID: "bob", MarketID: "mkt-1", OptionID: strPtr("opt-no"), Amount: 100,
	})
	require.NoError(t, err)

	res, err := setSvc.ResolveMarket(context.Background(), "carol", "mkt-1", strPtr("opt-yes"), nil)
	require.NoError(t, err)

	var paid int64
	for _, p := range res.Payouts {
		paid += p
	}
	assert.LessOrEqual(t, paid, res.TotalPool)
	assert.Equal(t, res.TotalPool-paid, res.Residual)

	// Every balance equals its audit trail.
	for _, user := range []string{"alice", "bob"} {
		assert.Equal(t, int64(900)+store.signedSum(user), store.balance(user, "arena-1"), user)
	}
}

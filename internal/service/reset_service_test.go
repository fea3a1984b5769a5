package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3blob "github.com/predictarena/ledger/internal/blob/s3"
	"github.com/predictarena/ledger/internal/domain"
)

type fakeArchiver struct {
	cycles []s3blob.CycleSnapshot
	sweeps []time.Time
}

func (f *fakeArchiver) ArchiveCycle(_ context.Context, snap s3blob.CycleSnapshot) error {
	f.cycles = append(f.cycles, snap)
	return nil
}

func (f *fakeArchiver) ArchiveTransactions(_ context.Context, before time.Time) (int64, error) {
	f.sweeps = append(f.sweeps, before)
	return 0, nil
}

// resetWorld builds one monthly arena that is due now, with three members on
// uneven balances.
func resetWorld(allowCarryover bool) *fakeStore {
	store := newFakeStore()
	due := time.Now().Add(-time.Hour)
	store.settings["arena-1"] = domain.ArenaSettings{
		ArenaID:           "arena-1",
		MonthlyAllocation: 1000,
		AllowCarryover:    allowCarryover,
		ResetFrequency:    domain.ResetMonthly,
		WinnerRule:        domain.WinnerHighestBalance,
		NextResetAt:       &due,
	}
	store.addAccount("alice", "arena-1", 2500)
	store.addAccount("bob", "arena-1", 400)
	store.addAccount("carl", "arena-1", 900)
	return store
}

func newResetService(store *fakeStore, locks domain.LockManager, archiver CycleArchiver, retention time.Duration) (*ResetService, *fakeDispatcher) {
	dispatcher := &fakeDispatcher{}
	svc := NewResetService(
		&fakeLedger{store: store},
		&fakeSettings{store: store},
		locks,
		archiver,
		dispatcher,
		testLogger(),
		time.Minute,
		retention,
	)
	return svc, dispatcher
}

func TestRunOnce_ResetWithoutCarryover(t *testing.T) {
	store := resetWorld(false)
	archiver := &fakeArchiver{}
	svc, dispatcher := newResetService(store, &fakeLocks{}, archiver, 0)

	now := time.Now().UTC()
	require.NoError(t, svc.RunOnce(context.Background(), now))

	// Every balance is set back to the allocation.
	for _, user := range []string{"alice", "bob", "carl"} {
		assert.Equal(t, int64(1000), store.balance(user, "arena-1"), user)
	}

	// One reset row per member, exempt from conservation.
	var resets int
	for _, tr := range store.txs {
		if tr.Type == domain.TxMonthlyReset {
			resets++
			assert.Equal(t, int64(1000), tr.Amount)
		}
	}
	assert.Equal(t, 3, resets)

	// The next cycle is scheduled one month out.
	next := store.settings["arena-1"].NextResetAt
	require.NotNil(t, next)
	assert.WithinDuration(t, now.AddDate(0, 1, 0), *next, time.Minute)

	// Alice led the standings.
	winners := dispatcher.byType(domain.EventMonthlyWinner)
	require.Len(t, winners, 1)
	assert.Equal(t, "alice", winners[0].UserID)

	// The pre-reset standings were snapshotted.
	require.Len(t, archiver.cycles, 1)
	snap := archiver.cycles[0]
	assert.Equal(t, "arena-1", snap.ArenaID)
	assert.Equal(t, "alice", snap.WinnerID)
	require.Len(t, snap.Standings, 3)
	assert.Equal(t, int64(2500), snap.Standings[0].Points)
}

func TestRunOnce_ResetWithCarryover(t *testing.T) {
	store := resetWorld(true)
	svc, _ := newResetService(store, &fakeLocks{}, nil, 0)

	require.NoError(t, svc.RunOnce(context.Background(), time.Now().UTC()))

	// Carryover adds the allocation on top of the kept balance.
	assert.Equal(t, int64(3500), store.balance("alice", "arena-1"))
	assert.Equal(t, int64(1400), store.balance("bob", "arena-1"))
	assert.Equal(t, int64(1900), store.balance("carl", "arena-1"))
}

func TestRunOnce_NetProfitWinner(t *testing.T) {
	store := resetWorld(false)
	s := store.settings["arena-1"]
	s.WinnerRule = domain.WinnerNetProfit
	store.settings["arena-1"] = s

	// Bob is poorest on balance but made the most this cycle.
	arena := "arena-1"
	bob, alice := "bob", "alice"
	store.txs = append(store.txs,
		domain.Transaction{ID: 1, Type: domain.TxWinPayout, Amount: 600, ToUserID: &bob, ArenaID: &arena, CreatedAt: time.Now().Add(-48 * time.Hour)},
		domain.Transaction{ID: 2, Type: domain.TxBetPlaced, Amount: 300, FromUserID: &alice, ArenaID: &arena, CreatedAt: time.Now().Add(-48 * time.Hour)},
	)

	svc, dispatcher := newResetService(store, &fakeLocks{}, nil, 0)
	require.NoError(t, svc.RunOnce(context.Background(), time.Now().UTC()))

	winners := dispatcher.byType(domain.EventMonthlyWinner)
	require.Len(t, winners, 1)
	assert.Equal(t, "bob", winners[0].UserID)
	assert.Equal(t, int64(600), winners[0].Payload["score"])
}

func TestRunOnce_ZeroAllocationResetsToZero(t *testing.T) {
	store := resetWorld(false)
	s := store.settings["arena-1"]
	s.MonthlyAllocation = 0
	store.settings["arena-1"] = s

	svc, _ := newResetService(store, &fakeLocks{}, nil, 0)
	now := time.Now().UTC()
	require.NoError(t, svc.RunOnce(context.Background(), now))

	// Balances are wiped; no allocation rows are written, so the reset
	// commits instead of tripping over the positive-amount constraint.
	for _, user := range []string{"alice", "bob", "carl"} {
		assert.Equal(t, int64(0), store.balance(user, "arena-1"), user)
	}
	assert.Empty(t, store.txs)

	// The arena is no longer due.
	next := store.settings["arena-1"].NextResetAt
	require.NotNil(t, next)
	assert.False(t, store.settings["arena-1"].ResetDue(now.Add(time.Minute)))
}

func TestRunOnce_SkipsArenasNotDue(t *testing.T) {
	store := resetWorld(false)
	future := time.Now().Add(24 * time.Hour)
	s := store.settings["arena-1"]
	s.NextResetAt = &future
	store.settings["arena-1"] = s

	svc, dispatcher := newResetService(store, &fakeLocks{}, nil, 0)
	require.NoError(t, svc.RunOnce(context.Background(), time.Now().UTC()))

	assert.Equal(t, int64(2500), store.balance("alice", "arena-1"))
	assert.Empty(t, dispatcher.events)
}

func TestRunOnce_ManualArenaNeverDue(t *testing.T) {
	store := resetWorld(false)
	s := store.settings["arena-1"]
	s.ResetFrequency = domain.ResetManual
	s.NextResetAt = nil
	store.settings["arena-1"] = s

	svc, _ := newResetService(store, &fakeLocks{}, nil, 0)
	require.NoError(t, svc.RunOnce(context.Background(), time.Now().UTC()))

	assert.Equal(t, int64(2500), store.balance("alice", "arena-1"))
	assert.Empty(t, store.txs)
}

func TestRunOnce_LockHeldSkipsSilently(t *testing.T) {
	store := resetWorld(false)
	svc, _ := newResetService(store, &fakeLocks{held: true}, nil, 0)

	// Another instance holds the arena lock: no reset, no error.
	require.NoError(t, svc.RunOnce(context.Background(), time.Now().UTC()))
	assert.Equal(t, int64(2500), store.balance("alice", "arena-1"))
}

func TestRunOnce_ArchivesAgedTransactions(t *testing.T) {
	store := resetWorld(false)
	archiver := &fakeArchiver{}
	retention := 90 * 24 * time.Hour
	svc, _ := newResetService(store, &fakeLocks{}, archiver, retention)

	now := time.Now().UTC()
	require.NoError(t, svc.RunOnce(context.Background(), now))

	require.Len(t, archiver.sweeps, 1)
	assert.Equal(t, now.Add(-retention), archiver.sweeps[0])
}

func TestRunOnce_FirstCycleWithNilNextReset(t *testing.T) {
	store := resetWorld(false)
	s := store.settings["arena-1"]
	s.NextResetAt = nil
	store.settings["arena-1"] = s

	svc, _ := newResetService(store, &fakeLocks{}, nil, 0)
	require.NoError(t, svc.RunOnce(context.Background(), time.Now().UTC()))

	// A newly configured arena gets its first cycle scheduled immediately.
	assert.NotNil(t, store.settings["arena-1"].NextResetAt)
	assert.Equal(t, int64(1000), store.balance("alice", "arena-1"))
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictarena/ledger/internal/domain"
)

func transferWorld() *fakeStore {
	store := newFakeStore()
	store.settings["arena-1"] = domain.ArenaSettings{
		ArenaID:        "arena-1",
		AllowTransfers: true,
		TransferLimit:  i64Ptr(500),
	}
	store.addMember("arena-1", "alice", "alice@example.com", domain.RoleMember)
	store.addMember("arena-1", "bob", "bob@example.com", domain.RoleMember)
	store.addAccount("alice", "arena-1", 1000)
	store.addAccount("bob", "arena-1", 200)
	return store
}

func newTransferService(store *fakeStore) *TransferService {
	return NewTransferService(&fakeLedger{store: store}, &fakeSettings{store: store}, testLogger())
}

func TestTransfer_MovesPoints(t *testing.T) {
	store := transferWorld()
	svc := newTransferService(store)

	err := svc.Transfer(context.Background(), "alice", "bob@example.com", 300, "arena-1")
	require.NoError(t, err)

	assert.Equal(t, int64(700), store.balance("alice", "arena-1"))
	assert.Equal(t, int64(500), store.balance("bob", "arena-1"))

	require.Len(t, store.txs, 1)
	tr := store.txs[0]
	assert.Equal(t, domain.TxUserTransfer, tr.Type)
	assert.Equal(t, int64(300), tr.Amount)
	assert.Equal(t, "alice", *tr.FromUserID)
	assert.Equal(t, "bob", *tr.ToUserID)
	assert.Equal(t, "arena-1", *tr.ArenaID)
}

func TestTransfer_OverLimit(t *testing.T) {
	store := transferWorld()
	svc := newTransferService(store)

	err := svc.Transfer(context.Background(), "alice", "bob@example.com", 501, "arena-1")
	assert.ErrorIs(t, err, domain.ErrTransferLimit)
	assert.Equal(t, int64(1000), store.balance("alice", "arena-1"))
	assert.Empty(t, store.txs)
}

func TestTransfer_Disabled(t *testing.T) {
	store := transferWorld()
	s := store.settings["arena-1"]
	s.AllowTransfers = false
	store.settings["arena-1"] = s
	svc := newTransferService(store)

	err := svc.Transfer(context.Background(), "alice", "bob@example.com", 100, "arena-1")
	assert.ErrorIs(t, err, domain.ErrTransfersDisabled)
}

func TestTransfer_Self(t *testing.T) {
	store := transferWorld()
	svc := newTransferService(store)

	err := svc.Transfer(context.Background(), "alice", "alice@example.com", 100, "arena-1")
	assert.ErrorIs(t, err, domain.ErrSelfTransfer)
	assert.Equal(t, int64(1000), store.balance("alice", "arena-1"))
}

func TestTransfer_ReceiverUnknown(t *testing.T) {
	store := transferWorld()
	svc := newTransferService(store)

	err := svc.Transfer(context.Background(), "alice", "nobody@example.com", 100, "arena-1")
	assert.ErrorIs(t, err, domain.ErrReceiverNotFound)
}

func TestTransfer_ReceiverNotMember(t *testing.T) {
	store := transferWorld()
	// eve exists but never joined the arena.
	store.usersByEmail["eve@example.com"] = domain.User{ID: "eve", Email: "eve@example.com"}
	svc := newTransferService(store)

	err := svc.Transfer(context.Background(), "alice", "eve@example.com", 100, "arena-1")
	assert.ErrorIs(t, err, domain.ErrReceiverNotMember)
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	store := transferWorld()
	svc := newTransferService(store)

	err := svc.Transfer(context.Background(), "bob", "alice@example.com", 300, "arena-1")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// The failed transaction rolled back both sides.
	assert.Equal(t, int64(200), store.balance("bob", "arena-1"))
	assert.Equal(t, int64(1000), store.balance("alice", "arena-1"))
	assert.Empty(t, store.txs)
}

func TestTransfer_InvalidAmount(t *testing.T) {
	store := transferWorld()
	svc := newTransferService(store)

	err := svc.Transfer(context.Background(), "alice", "bob@example.com", 0, "arena-1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = svc.Transfer(context.Background(), "alice", "bob@example.com", -5, "arena-1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

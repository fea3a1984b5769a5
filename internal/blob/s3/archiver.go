package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/predictarena/ledger/internal/domain"
)

// TransactionArchiveStore is the narrow read/delete surface the archiver
// needs from the transaction store.
type TransactionArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Transaction, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// BlobWriter is the narrow write surface the archiver needs from the S3
// writer.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver exports ledger data to cold storage: per-cycle arena standings
// snapshots taken before a reset, and aged transaction rows swept out of the
// hot table once durably stored.
type Archiver struct {
	writer BlobWriter
	txs    TransactionArchiveStore
	logger *slog.Logger
}

// NewArchiver creates an Archiver that writes through the given blob writer.
func NewArchiver(writer BlobWriter, txs TransactionArchiveStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		txs:    txs,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// CycleSnapshot is the standings record persisted for one arena cycle.
type CycleSnapshot struct {
	ArenaID    string          `json:"arena_id"`
	TakenAt    time.Time       `json:"taken_at"`
	WinnerID   string          `json:"winner_id,omitempty"`
	WinnerRule string          `json:"winner_rule,omitempty"`
	Standings  []CycleStanding `json:"standings"`
}

// CycleStanding is one member's position in a cycle snapshot.
type CycleStanding struct {
	UserID string `json:"user_id"`
	Points int64  `json:"points"`
	Score  int64  `json:"score"`
}

// ArchiveCycle uploads the snapshot under
// cycles/<arena>/<timestamp>.json.
func (a *Archiver) ArchiveCycle(ctx context.Context, snap CycleSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal cycle snapshot: %w", err)
	}

	key := fmt.Sprintf("cycles/%s/%s.json", snap.ArenaID, snap.TakenAt.UTC().Format("2006-01-02T15-04-05"))
	if err := a.writer.Put(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("s3blob: upload cycle snapshot: %w", err)
	}

	a.logger.InfoContext(ctx, "cycle snapshot archived",
		slog.String("arena_id", snap.ArenaID),
		slog.String("key", key),
		slog.Int("members", len(snap.Standings)),
	)
	return nil
}

// ArchiveTransactions exports all transaction rows older than the cutoff to
// transactions/<cutoff>.json and deletes them from the hot table only after
// the upload succeeds. A cutoff with no rows is a no-op.
func (a *Archiver) ArchiveTransactions(ctx context.Context, before time.Time) (int64, error) {
	rows, err := a.txs.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: list transactions for archive: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	data, err := json.Marshal(rows)
	if err != nil {
		return 0, fmt.Errorf("s3blob: marshal transaction export: %w", err)
	}

	key := fmt.Sprintf("transactions/%s.json", before.UTC().Format("2006-01-02"))
	if err := a.writer.Put(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return 0, fmt.Errorf("s3blob: upload transaction export: %w", err)
	}

	deleted, err := a.txs.DeleteBefore(ctx, before)
	if err != nil {
		// The export exists; the sweep can be retried on the next run.
		return 0, fmt.Errorf("s3blob: sweep archived transactions: %w", err)
	}

	a.logger.InfoContext(ctx, "transactions archived",
		slog.String("key", key),
		slog.Int64("rows", deleted),
	)
	return deleted, nil
}

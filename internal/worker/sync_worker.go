package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"potrosnja/internal/amqp"
	"potrosnja/internal/core"
	"potrosnja/internal/sheets"
	"potrosnja/internal/storage"
)

// SnapshotStore is the local side of the sync: the SQLite snapshot and its
// bookkeeping.
type SnapshotStore interface {
	Load(ctx context.Context) ([]core.Record, error)
	SyncState(ctx context.Context) (storage.SyncState, error)
	MarkSynced(ctx context.Context, version int64) error
	MarkSyncError(ctx context.Context, version int64, cause error) error
}

// SyncWorker pushes local snapshots from SQLite to Google Sheets
type SyncWorker struct {
	storage SnapshotStore
	remote  sheets.RecordSaver

	// serializes pushes coming from AMQP and from the periodic check
	mu sync.Mutex
}

func NewSyncWorker(storage SnapshotStore, remote sheets.RecordSaver) *SyncWorker {
	return &SyncWorker{
		storage: storage,
		remote:  remote,
	}
}

// HandleSyncMessage processes a single snapshot sync message from AMQP.
// Messages for versions that already reached the remote store are dropped.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.SnapshotSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"version", msg.Version,
		"records", msg.Records)

	state, err := w.storage.SyncState(ctx)
	if err != nil {
		return fmt.Errorf("get sync state: %w", err)
	}
	if msg.Version <= state.SyncedVersion {
		slog.DebugContext(ctx, "Snapshot already synced, skipping",
			"version", msg.Version,
			"synced_version", state.SyncedVersion)
		return nil
	}

	_, err = w.push(ctx)
	return err
}

// ProcessPending pushes the snapshot when the remote copy lags behind.
// This is a backup mechanism in case AMQP messages are lost.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	state, err := w.storage.SyncState(ctx)
	if err != nil {
		return fmt.Errorf("get sync state: %w", err)
	}
	if !state.Pending() {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending snapshot",
		"version", state.Version,
		"synced_version", state.SyncedVersion)
	_, err = w.push(ctx)
	return err
}

// StartupSyncCheck recovers from missed AMQP messages or worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	state, err := w.storage.SyncState(ctx)
	if err != nil {
		return fmt.Errorf("get sync state for startup check: %w", err)
	}
	if !state.Pending() {
		slog.InfoContext(ctx, "No pending snapshot found on startup",
			"version", state.Version)
		return nil
	}

	slog.InfoContext(ctx, "Found pending snapshot on startup, processing...",
		"version", state.Version,
		"synced_version", state.SyncedVersion,
		"previous_errors", state.ErrorCount)

	version, err := w.push(ctx)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Startup sync completed", "version", version)
	return nil
}

// RunPeriodic calls ProcessPending every interval until ctx is done.
func (w *SyncWorker) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ProcessPending(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic sync failed", "error", err)
			}
		}
	}
}

// push copies the current snapshot to the remote store and returns the
// version it covers.
func (w *SyncWorker) push(ctx context.Context) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// read the version first: a snapshot saved after this point keeps the
	// state pending and is pushed on the next round
	state, err := w.storage.SyncState(ctx)
	if err != nil {
		return 0, fmt.Errorf("get sync state: %w", err)
	}
	if !state.Pending() {
		return state.SyncedVersion, nil
	}

	records, err := w.storage.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load snapshot from storage: %w", err)
	}

	start := time.Now()
	if err := w.remote.Save(ctx, records); err != nil {
		if markErr := w.storage.MarkSyncError(ctx, state.Version, err); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "version", state.Version, "error", markErr)
		}
		return 0, fmt.Errorf("save snapshot to sheets: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, state.Version); err != nil {
		// the push itself worked; the next round will only repeat it
		slog.ErrorContext(ctx, "Failed to mark as synced", "version", state.Version, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced snapshot",
		"version", state.Version,
		"records", len(records),
		"duration_ms", time.Since(start).Milliseconds())
	return state.Version, nil
}

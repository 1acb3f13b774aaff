package adapters

import (
	"context"
	"log/slog"

	"potrosnja/internal/core"
	"potrosnja/internal/sheets"
	"potrosnja/internal/storage"
)

// SyncPublisher announces a new local snapshot to the sync worker.
type SyncPublisher interface {
	PublishSnapshotSync(ctx context.Context, version int64, records int) error
}

// SQLiteAdapter makes the SQLite snapshot the primary store and hands the push
// to Google Sheets off to the worker through AMQP. The service sees a plain
// sheets.RecordStore either way.
type SQLiteAdapter struct {
	storage   *storage.SQLiteRepository
	publisher SyncPublisher
}

var _ sheets.RecordStore = (*SQLiteAdapter)(nil)

// NewSQLiteAdapter wires the repository to an optional publisher (nil disables sync).
func NewSQLiteAdapter(storage *storage.SQLiteRepository, publisher SyncPublisher) *SQLiteAdapter {
	return &SQLiteAdapter{
		storage:   storage,
		publisher: publisher,
	}
}

// Load implements sheets.RecordLoader
func (a *SQLiteAdapter) Load(ctx context.Context) ([]core.Record, error) {
	return a.storage.Load(ctx)
}

// Save implements sheets.RecordSaver. The snapshot is committed locally first;
// a failed publish is only logged since the worker also polls for pending
// snapshots.
func (a *SQLiteAdapter) Save(ctx context.Context, records []core.Record) error {
	version, err := a.storage.SaveSnapshot(ctx, records)
	if err != nil {
		return err
	}
	if a.publisher == nil {
		return nil
	}
	if err := a.publisher.PublishSnapshotSync(ctx, version, len(records)); err != nil {
		slog.WarnContext(ctx, "Failed to publish snapshot sync message",
			"version", version,
			"error", err)
	}
	return nil
}

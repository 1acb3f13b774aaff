package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"potrosnja/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository keeps a local snapshot of the record set plus the bookkeeping
// needed to push that snapshot to the remote store later.
type SQLiteRepository struct {
	db *sql.DB
}

// SyncState describes how far the remote store lags behind the local snapshot.
type SyncState struct {
	Version       int64 // bumped on every saved snapshot
	SyncedVersion int64 // last version pushed to the remote store
	UpdatedAt     time.Time
	LastSyncedAt  time.Time
	LastError     string
	ErrorCount    int64
}

// Pending reports whether the local snapshot is newer than the remote copy.
func (s SyncState) Pending() bool {
	return s.Version > s.SyncedVersion
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// a single writer keeps snapshot replacement serialized
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", "component", "storage", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Load returns the stored records in the order they were saved.
func (r *SQLiteRepository) Load(ctx context.Context) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, year, month, household_state, household_consumption,
		       car_state, car_consumption, bojler_consumption, total_consumption
		FROM records
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		var rec core.Record
		if err := rows.Scan(&rec.ID, &rec.Year, &rec.Month,
			&rec.HouseholdState, &rec.HouseholdConsumption,
			&rec.CarState, &rec.CarConsumption,
			&rec.BojlerConsumption, &rec.TotalConsumption); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// Save implements sheets.RecordSaver.
func (r *SQLiteRepository) Save(ctx context.Context, records []core.Record) error {
	_, err := r.SaveSnapshot(ctx, records)
	return err
}

// SaveSnapshot replaces the stored records in one transaction and returns the
// new snapshot version.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, records []core.Record) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return 0, fmt.Errorf("clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (id, position, year, month, household_state, household_consumption,
		                     car_state, car_consumption, bojler_consumption, total_consumption)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.ID, i, rec.Year, rec.Month,
			rec.HouseholdState, rec.HouseholdConsumption,
			rec.CarState, rec.CarConsumption,
			rec.BojlerConsumption, rec.TotalConsumption); err != nil {
			return 0, fmt.Errorf("insert record %s: %w", rec.ID, err)
		}
	}

	var version int64
	err = tx.QueryRowContext(ctx, `
		UPDATE sync_state SET version = version + 1, updated_at = ?
		WHERE id = 1
		RETURNING version`, time.Now().UnixMilli()).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("bump snapshot version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot saved to SQLite",
		"records", len(records),
		"version", version)
	return version, nil
}

// SyncState returns the current sync bookkeeping.
func (r *SQLiteRepository) SyncState(ctx context.Context) (SyncState, error) {
	var (
		s                     SyncState
		updatedAt, lastSynced int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT version, synced_version, updated_at, last_synced_at, last_error, error_count
		FROM sync_state WHERE id = 1`).
		Scan(&s.Version, &s.SyncedVersion, &updatedAt, &lastSynced, &s.LastError, &s.ErrorCount)
	if err != nil {
		return SyncState{}, fmt.Errorf("get sync state: %w", err)
	}
	s.UpdatedAt = fromMillis(updatedAt)
	s.LastSyncedAt = fromMillis(lastSynced)
	return s, nil
}

// MarkSynced records that the snapshot with the given version reached the
// remote store. Older versions never move the marker backwards.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, version int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_state
		SET synced_version = MAX(synced_version, ?), last_synced_at = ?, last_error = '', error_count = 0
		WHERE id = 1`, version, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("mark snapshot synced: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot marked as synced", "version", version)
	return nil
}

// MarkSyncError records a failed push attempt.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, version int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_state SET last_error = ?, error_count = error_count + 1
		WHERE id = 1`, msg)
	if err != nil {
		return fmt.Errorf("mark snapshot sync error: %w", err)
	}

	slog.WarnContext(ctx, "Snapshot marked with sync error", "version", version, "error", msg)
	return nil
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

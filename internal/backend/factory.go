package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"potrosnja/internal/adapters"
	"potrosnja/internal/amqp"
	"potrosnja/internal/core"
	gsheet "potrosnja/internal/sheets/google"
	"potrosnja/internal/sheets/memory"
	"potrosnja/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
	years  core.YearRange
}

// NewFactory creates a new backend factory. years bounds the records accepted
// from a memory seed file.
func NewFactory(logger *slog.Logger, years core.YearRange) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
		years:  years,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// AMQP is optional; without it the worker's periodic check still picks up
	// pending snapshots
	var (
		amqpClient *amqp.Client
		publisher  adapters.SyncPublisher
	)
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
			amqpClient = nil
		} else {
			publisher = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	adapter := adapters.NewSQLiteAdapter(sqliteRepo, publisher)

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", amqpClient != nil)

	return &BackendResult{
		Primary: adapter,
		Cleanup: func() error {
			var errs []error
			if amqpClient != nil {
				errs = append(errs, amqpClient.Close())
			}
			errs = append(errs, sqliteRepo.Close())
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	result := &BackendResult{Primary: cli}
	if config.CacheDBPath != "" {
		cacheRepo, err := storage.NewSQLiteRepository(config.CacheDBPath)
		if err != nil {
			// the service still works without a last-known-good snapshot
			f.logger.Warn("Failed to open local cache, continuing without it",
				"db_path", config.CacheDBPath, "error", err)
		} else {
			result.Cache = cacheRepo
			result.Cleanup = cacheRepo.Close
		}
	}

	f.logger.Info("Initialized Google Sheets backend",
		"sheet", config.GoogleSheetName,
		"cache_enabled", result.Cache != nil)

	return result, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store, err := memory.NewFromFile(config.SeedFile, f.years)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)

	return &BackendResult{Primary: store}, nil
}

package sheets

import (
	"context"

	"potrosnja/internal/core"
)

// Ports for outbound adapters.
type (
	// RecordLoader fetches the full record set.
	RecordLoader interface {
		Load(ctx context.Context) ([]core.Record, error)
	}

	// RecordSaver replaces the full durable record set.
	RecordSaver interface {
		Save(ctx context.Context, records []core.Record) error
	}

	RecordStore interface {
		RecordLoader
		RecordSaver
	}
)

package log

import (
	"context"
	"log/slog"
	"net/http"
)

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogHTTPStart logs the start of an HTTP request
func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)

	sl.logger.InfoContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// LogHTTPEnd logs the completion of an HTTP request
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)

	sl.logger.Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogRecordSaved logs a successful insert, merge or update
func (sl *StructuredLogger) LogRecordSaved(ctx context.Context, op, id string, year, month int, total float64, syncState string) {
	fields := NewFields().
		WithRecord(id, year, month).
		WithOperation(op).
		WithComponent(ComponentRecords).
		ToSlice()

	fields = append(fields, FieldTotal, total, FieldSyncState, syncState)

	sl.logger.InfoContext(ctx, "Record saved", fields...)
}

// LogSyncFailure logs a store operation that degraded to a non-fatal state
func (sl *StructuredLogger) LogSyncFailure(ctx context.Context, store, op string, records int, err error) {
	fields := NewFields().
		WithStore(store, records).
		WithOperation(op).
		WithError(err).
		WithComponent(ComponentRecords)

	sl.logger.WarnContext(ctx, "Store operation failed, continuing with in-memory data", fields.ToSlice()...)
}

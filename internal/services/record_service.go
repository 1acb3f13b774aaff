package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"potrosnja/internal/core"
	applog "potrosnja/internal/log"
	"potrosnja/internal/metrics"
	"potrosnja/internal/sheets"
	"potrosnja/internal/transfer"
)

// SyncState summarises whether the durable store matches memory.
type SyncState string

const (
	SyncOK      SyncState = "ok"      // last load or save reached the primary store
	SyncStale   SyncState = "stale"   // primary unreachable; memory or cache is ahead of it
	SyncOffline SyncState = "offline" // nothing could be loaded at startup
)

var syncStates = []string{string(SyncOK), string(SyncStale), string(SyncOffline)}

// ErrPrimaryNotLoaded is reported for writes made before the primary store
// was ever read. They stay in memory and the cache until a load succeeds.
var ErrPrimaryNotLoaded = errors.New("primary store not loaded, write kept locally")

// SyncStatus is the advisory status shown next to every write.
type SyncStatus struct {
	State      SyncState `json:"state"`
	Source     string    `json:"source"` // where the in-memory set came from: primary, cache or none
	LastError  string    `json:"lastError,omitempty"`
	LastLoaded time.Time `json:"lastLoaded,omitempty"`
	LastSaved  time.Time `json:"lastSaved,omitempty"`
}

// Result is returned by every mutator.
type Result struct {
	Record core.Record `json:"record"`
	Merged bool        `json:"merged"`
	Status SyncStatus  `json:"status"`
}

// Notifier is told about committed writes. Failures are logged and ignored.
type Notifier interface {
	RecordSaved(ctx context.Context, r core.Record) error
	RecordDeleted(ctx context.Context, r core.Record) error
}

// Options configures a RecordService. Primary is required.
type Options struct {
	Primary  sheets.RecordStore
	Cache    sheets.RecordStore // last-known-good snapshot, optional
	Years    core.YearRange
	NewID    func() string
	Notifier Notifier
	Metrics  *metrics.Metrics
	Logger   *applog.Logger
}

// RecordService owns the in-memory record set. Its mutators are the only
// write paths: each one runs to completion (including persistence) before the
// next is accepted, and swaps in a freshly built slice.
type RecordService struct {
	primary  sheets.RecordStore
	cache    sheets.RecordStore
	years    core.YearRange
	newID    func() string
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *applog.Logger
	events   *applog.StructuredLogger

	writeMu   sync.Mutex // serializes mutators
	localOnly bool       // writes since an empty start that never reached the primary; guarded by writeMu

	mu      sync.RWMutex // guards the fields below
	records []core.Record
	status  SyncStatus
	version uint64
}

func NewRecordService(opts Options) *RecordService {
	if opts.Years == (core.YearRange{}) {
		opts.Years = core.DefaultYearRange
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = applog.Default(applog.ComponentRecords)
	}
	return &RecordService{
		primary:  opts.Primary,
		cache:    opts.Cache,
		years:    opts.Years,
		newID:    opts.NewID,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		events:   applog.NewStructuredLogger(opts.Logger),
		status:   SyncStatus{State: SyncOffline, Source: "none"},
	}
}

// Years returns the supported year range.
func (s *RecordService) Years() core.YearRange {
	return s.years
}

// Load replaces memory with the primary store's records. When the primary
// fails the cache is used instead, and when both fail the service starts
// empty. None of these outcomes is an error; the returned status tells them apart.
//
// Writes accepted while nothing was loaded are laid over the primary's
// records once it answers, and pushed back to it.
func (s *RecordService) Load(ctx context.Context) SyncStatus {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.load(ctx)
}

// load must be called with writeMu held.
func (s *RecordService) load(ctx context.Context) SyncStatus {
	now := time.Now()
	records, err := s.primary.Load(ctx)
	if err == nil {
		records = s.normalize(ctx, "primary", records)
		status := SyncStatus{State: SyncOK, Source: "primary", LastLoaded: now}
		if s.localOnly {
			local := s.Records()
			records = core.MergeByPeriod(records, local)
			s.localOnly = false
			s.commit(records, status)
			s.logger.InfoContext(ctx, "Local writes merged into primary records",
				applog.FieldRecords, len(records),
				applog.FieldLocal, len(local))
			status = s.persist(ctx, records)
			s.setStatus(status)
			return status
		}
		s.commit(records, status)
		s.logger.InfoContext(ctx, "Records loaded", applog.FieldStore, "primary", applog.FieldRecords, len(records))
		if s.cache != nil {
			// refresh the last-known-good snapshot
			if cerr := s.cache.Save(ctx, records); cerr != nil {
				s.metrics.StoreFailure("cache", applog.OpSave)
				s.events.LogSyncFailure(ctx, "cache", applog.OpSave, len(records), cerr)
			}
		}
		return status
	}

	s.metrics.StoreFailure("primary", applog.OpLoad)
	s.events.LogSyncFailure(ctx, "primary", applog.OpLoad, 0, err)

	if s.localOnly {
		// the cache holds nothing but the local writes; keep memory as is
		prev := s.Status()
		status := SyncStatus{State: SyncStale, Source: "none", LastError: err.Error(), LastLoaded: prev.LastLoaded, LastSaved: prev.LastSaved}
		s.setStatus(status)
		return status
	}

	if s.cache != nil {
		// an empty snapshot cannot be told apart from one never written
		cached, cerr := s.cache.Load(ctx)
		if cerr == nil && len(cached) > 0 {
			cached = s.normalize(ctx, "cache", cached)
			status := SyncStatus{State: SyncStale, Source: "cache", LastError: err.Error(), LastLoaded: now}
			s.commit(cached, status)
			s.logger.WarnContext(ctx, "Serving records from local cache", applog.FieldRecords, len(cached))
			return status
		}
		if cerr != nil {
			s.metrics.StoreFailure("cache", applog.OpLoad)
			s.events.LogSyncFailure(ctx, "cache", applog.OpLoad, 0, cerr)
			err = errors.Join(err, cerr)
		}
	}

	status := SyncStatus{State: SyncOffline, Source: "none", LastError: err.Error(), LastLoaded: now}
	s.commit(nil, status)
	s.logger.WarnContext(ctx, "No records could be loaded, starting empty", applog.FieldError, err)
	return status
}

// reattach retries the load before a write when nothing has been loaded yet,
// so the write is reconciled against the stored history. Must be called with
// writeMu held.
func (s *RecordService) reattach(ctx context.Context) {
	if s.Status().Source != "none" {
		return
	}
	s.load(ctx)
}

// Records returns a copy of the set in insertion order.
func (s *RecordService) Records() []core.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Record(nil), s.records...)
}

// Chronological returns a copy of the set ordered by period.
func (s *RecordService) Chronological() []core.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.SortChronologically(s.records)
}

// Get returns the record with the given id.
func (s *RecordService) Get(id string) (core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := core.FindByID(s.records, id)
	if !ok {
		return core.Record{}, fmt.Errorf("%w: %s", core.ErrRecordNotFound, id)
	}
	return r, nil
}

// Latest returns the chronologically last record.
func (s *RecordService) Latest() (core.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.Latest(s.records)
}

// Status returns the current sync status.
func (s *RecordService) Status() SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Version increases on every committed change. Callers use it to key caches.
func (s *RecordService) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// AnnualTotals aggregates the current set per year.
func (s *RecordService) AnnualTotals() []core.AnnualTotal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.AnnualTotals(s.records)
}

// MonthlyComparison lines up field across the two most recent years.
func (s *RecordService) MonthlyComparison(field core.Field) core.Comparison {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.MonthlyComparison(s.records, field)
}

// Submit inserts or merges a submission for its period.
func (s *RecordService) Submit(ctx context.Context, in core.Submission) (Result, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.reattach(ctx)
	out, err := core.Reconcile(s.Records(), in, s.years, s.newID)
	if err != nil {
		return Result{}, err
	}
	op := applog.OpInsert
	if out.Merged {
		op = applog.OpMerge
	}
	status := s.apply(ctx, op, out.Records)
	s.events.LogRecordSaved(ctx, op, out.Record.ID, out.Record.Year, out.Record.Month, out.Record.TotalConsumption, string(status.State))
	s.notifySaved(ctx, out.Record)
	return Result{Record: out.Record, Merged: out.Merged, Status: status}, nil
}

// Update replaces every value of the record with the given id.
func (s *RecordService) Update(ctx context.Context, id string, in core.Submission) (Result, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.reattach(ctx)
	out, err := core.ApplyUpdate(s.Records(), id, in, s.years)
	if err != nil {
		return Result{}, err
	}
	status := s.apply(ctx, applog.OpUpdate, out.Records)
	s.events.LogRecordSaved(ctx, applog.OpUpdate, out.Record.ID, out.Record.Year, out.Record.Month, out.Record.TotalConsumption, string(status.State))
	s.notifySaved(ctx, out.Record)
	return Result{Record: out.Record, Status: status}, nil
}

// Delete removes the record with the given id.
func (s *RecordService) Delete(ctx context.Context, id string) (Result, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.reattach(ctx)
	records, removed, err := core.RemoveRecord(s.Records(), id)
	if err != nil {
		return Result{}, err
	}
	status := s.apply(ctx, applog.OpDelete, records)
	s.logger.InfoContext(ctx, "Record deleted",
		applog.FieldRecordID, removed.ID,
		applog.FieldYear, removed.Year,
		applog.FieldMonth, removed.Month,
		applog.FieldSyncState, status.State)
	if s.notifier != nil {
		if err := s.notifier.RecordDeleted(ctx, removed); err != nil {
			s.logger.WarnContext(ctx, "Notifier failed", applog.FieldRecordID, removed.ID, applog.FieldError, err)
		}
	}
	return Result{Record: removed, Status: status}, nil
}

// Import replaces the whole set with the records of a document. The document
// is decoded and validated completely before anything changes.
func (s *RecordService) Import(ctx context.Context, r io.Reader, format transfer.Format) (int, SyncStatus, error) {
	records, err := transfer.Decode(r, format, s.years)
	if err != nil {
		return 0, s.Status(), err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.reattach(ctx)
	status := s.apply(ctx, applog.OpImport, records)
	s.logger.InfoContext(ctx, "Records imported",
		applog.FieldRecords, len(records),
		applog.FieldExportFormat, format,
		applog.FieldSyncState, status.State)
	return len(records), status, nil
}

// Export writes the set, in insertion order, as a document.
func (s *RecordService) Export(w io.Writer, format transfer.Format) error {
	return transfer.Encode(w, s.Records(), format)
}

// apply commits records to memory and then persists them. Must be called
// with writeMu held.
func (s *RecordService) apply(ctx context.Context, op string, records []core.Record) SyncStatus {
	s.mu.Lock()
	s.records = records
	s.version++
	s.mu.Unlock()

	s.metrics.RecordMutation(op)
	s.metrics.SetRecords(len(records))

	status := s.persist(ctx, records)

	s.setStatus(status)
	return status
}

// persist writes the cache snapshot first and then the primary store. A
// failing primary does not roll back memory: the status turns stale. Before
// the primary was ever loaded only the cache is written.
func (s *RecordService) persist(ctx context.Context, records []core.Record) SyncStatus {
	prev := s.Status()
	status := SyncStatus{State: SyncOK, Source: prev.Source, LastLoaded: prev.LastLoaded, LastSaved: prev.LastSaved}

	if s.cache != nil {
		start := time.Now()
		if err := s.cache.Save(ctx, records); err != nil {
			s.metrics.StoreFailure("cache", applog.OpSave)
			s.events.LogSyncFailure(ctx, "cache", applog.OpSave, len(records), err)
		}
		s.metrics.ObserveSave("cache", time.Since(start))
	}

	if status.Source == "none" {
		s.localOnly = true
		status.State = SyncStale
		status.LastError = ErrPrimaryNotLoaded.Error()
		s.logger.WarnContext(ctx, "Primary store not loaded, keeping write locally", applog.FieldRecords, len(records))
		return status
	}

	start := time.Now()
	err := s.primary.Save(ctx, records)
	s.metrics.ObserveSave("primary", time.Since(start))
	if err != nil {
		s.metrics.StoreFailure("primary", applog.OpSave)
		s.events.LogSyncFailure(ctx, "primary", applog.OpSave, len(records), err)
		status.State = SyncStale
		status.LastError = err.Error()
		return status
	}
	status.LastSaved = time.Now()
	return status
}

func (s *RecordService) commit(records []core.Record, status SyncStatus) {
	s.mu.Lock()
	s.records = append([]core.Record(nil), records...)
	s.status = status
	s.version++
	n := len(s.records)
	s.mu.Unlock()

	s.metrics.SetRecords(n)
	s.metrics.SetSyncState(string(status.State), syncStates...)
}

func (s *RecordService) notifySaved(ctx context.Context, r core.Record) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.RecordSaved(ctx, r); err != nil {
		s.logger.WarnContext(ctx, "Notifier failed", applog.FieldRecordID, r.ID, applog.FieldError, err)
	}
}

func (s *RecordService) setStatus(status SyncStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	s.metrics.SetSyncState(string(status.State), syncStates...)
}

// normalize repairs loaded data (totals, duplicate periods) and reports what
// still breaks the record invariants. The rest is kept as is; the next write
// persists whatever the user corrects.
func (s *RecordService) normalize(ctx context.Context, store string, records []core.Record) []core.Record {
	out, repaired := core.Normalize(records)
	if repaired > 0 {
		s.logger.WarnContext(ctx, "Loaded records repaired",
			applog.FieldStore, store,
			applog.FieldRepaired, repaired,
			applog.FieldRecords, len(out))
	}
	if err := transfer.Validate(out, s.years); err != nil {
		s.logger.WarnContext(ctx, "Loaded records fail validation",
			applog.FieldStore, store,
			applog.FieldError, err)
	}
	return out
}

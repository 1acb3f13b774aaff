package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"potrosnja/internal/core"
	"potrosnja/internal/transfer"
)

// Store keeps the record set in process memory. It backs the memory data
// backend and doubles as the fake store in tests.
type Store struct {
	mu      sync.Mutex
	records []core.Record
	saves   int
	failure error
}

func New(records ...core.Record) *Store {
	return &Store{records: append([]core.Record(nil), records...)}
}

// NewFromFile seeds the store from a JSON export. A missing file yields an empty store.
func NewFromFile(path string, years core.YearRange) (*Store, error) {
	if path == "" {
		return New(), nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	records, err := transfer.Decode(f, transfer.FormatJSON, years)
	if err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	return New(records...), nil
}

// Load returns a copy of the stored records.
func (s *Store) Load(_ context.Context) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return nil, s.failure
	}
	return append([]core.Record(nil), s.records...), nil
}

// Save replaces the stored records.
func (s *Store) Save(_ context.Context, records []core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	s.records = append([]core.Record(nil), records...)
	s.saves++
	return nil
}

// Fail makes every subsequent Load and Save return err. A nil err heals the store.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// Saves reports how many successful saves happened.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

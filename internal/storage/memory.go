package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is the in-memory reference Store. It serializes all access, so
// insert-then-get from the same submitter always observes the insert. Used
// when no database is configured and as the fixture implementation in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]ExecutionRecord
	order   []string // insertion order for listings
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]ExecutionRecord),
	}
}

func (s *MemoryStore) Insert(_ context.Context, rec *ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return fmt.Errorf("record %s already exists", rec.ID)
	}
	s.records[rec.ID] = *rec
	s.order = append(s.order, rec.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) Update(_ context.Context, rec *ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; !ok {
		return ErrNotFound
	}
	s.records[rec.ID] = *rec
	return nil
}

func (s *MemoryStore) ListBySubmitter(_ context.Context, submitterID string) ([]ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []ExecutionRecord{}
	for _, id := range s.order {
		rec := s.records[id]
		if rec.SubmitterID == submitterID && submitterID != "" {
			results = append(results, rec)
		}
	}
	return results, nil
}

func (s *MemoryStore) ListStalePending(_ context.Context, before time.Time) ([]ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []ExecutionRecord
	for _, id := range s.order {
		rec := s.records[id]
		if rec.Status == StatusPending && rec.CreatedAt.Before(before) {
			results = append(results, rec)
		}
	}
	return results, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Package memory provides an in-process AgentStore, useful for tests and
// single-binary deployments without persistence requirements.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/agents-forge/forge/store"
)

// Store keeps agent records in a map guarded by a mutex.
type Store struct {
	mu      sync.RWMutex
	records map[string]*store.AgentRecord
}

var _ store.AgentStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{records: make(map[string]*store.AgentRecord)}
}

func (s *Store) Save(_ context.Context, record *store.AgentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	s.records[record.ID] = &clone
	return nil
}

func (s *Store) Load(_ context.Context, id string) (*store.AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *Store) List(_ context.Context) ([]*store.AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]*store.AgentRecord, 0, len(s.records))
	for _, record := range s.records {
		clone := *record
		records = append(records, &clone)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *Store) Close() error { return nil }

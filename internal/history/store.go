// Package history keeps the append-only log of improvement runs: an
// in-memory list for fast introspection, written through to SQLite when a
// database is attached. Cleared only by reset.
package history

import (
	"fmt"
	"sync"
)

type Store struct {
	mu      sync.RWMutex
	records []Record
	db      *DB // nil means memory-only
}

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// Load hydrates the in-memory list from the database, if one is attached.
func (s *Store) Load() error {
	if s.db == nil {
		return nil
	}
	records, err := s.db.LoadRecords()
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	return nil
}

func (s *Store) Append(rec Record) error {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()

	if s.db != nil {
		if err := s.db.SaveRecord(rec); err != nil {
			return fmt.Errorf("persisting record %s: %w", rec.ID, err)
		}
	}
	return nil
}

// Update replaces a stored record by id (used to attach the final step
// log after the record has been persisted mid-run).
func (s *Store) Update(rec Record) error {
	s.mu.Lock()
	for i := range s.records {
		if s.records[i].ID == rec.ID {
			s.records[i] = rec
			break
		}
	}
	s.mu.Unlock()

	if s.db != nil {
		if err := s.db.SaveRecord(rec); err != nil {
			return fmt.Errorf("persisting record %s: %w", rec.ID, err)
		}
	}
	return nil
}

func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) ByOutcome(outcomeID string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, rec := range s.records {
		if rec.OutcomeID == outcomeID {
			out = append(out, rec)
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) Clear() error {
	s.mu.Lock()
	s.records = nil
	s.mu.Unlock()

	if s.db != nil {
		if err := s.db.ClearRecords(); err != nil {
			return fmt.Errorf("clearing history: %w", err)
		}
	}
	return nil
}

package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tabulahq/tabula/model"
)

type memRecord struct {
	fields    model.Record
	createdAt time.Time
}

// MemoryStore is an in-memory Store for tests and single-process deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]*memRecord    // table → record ID → record
	audits  map[string][]model.TransitionRecord // table → audit entries, append order
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]map[string]*memRecord),
		audits:  make(map[string][]model.TransitionRecord),
	}
}

// Put inserts or replaces a record with the given creation time.
func (s *MemoryStore) Put(table, recordID string, fields model.Record, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records[table] == nil {
		s.records[table] = make(map[string]*memRecord)
	}
	copied := make(model.Record, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	s.records[table][recordID] = &memRecord{fields: copied, createdAt: createdAt}
}

// ReadRecord retrieves a record as an opaque field map.
func (s *MemoryStore) ReadRecord(_ context.Context, table, recordID string) (model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[table][recordID]
	if !ok {
		return nil, model.NewRecordNotFoundError(
			fmt.Sprintf("record %q not found in table %q", recordID, table),
		)
	}

	copied := make(model.Record, len(rec.fields))
	for k, v := range rec.fields {
		copied[k] = v
	}
	return copied, nil
}

// ApplyTransition swaps the record's status and appends the audit entry under
// one lock acquisition, so the two are atomic with respect to every other
// store operation.
func (s *MemoryStore) ApplyTransition(_ context.Context, table, recordID, expected, next string, entry model.TransitionRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[table][recordID]
	if !ok {
		return false, nil
	}
	if rec.fields.Status() != expected {
		return false, nil
	}

	rec.fields[model.StatusField] = next
	s.audits[table] = append(s.audits[table], entry)
	return true, nil
}

// ScanStates returns every record's current state and last-transition
// timestamp, ordered by record ID for deterministic results.
func (s *MemoryStore) ScanStates(_ context.Context, table string) ([]model.RecordState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lastAt := make(map[string]time.Time)
	for _, entry := range s.audits[table] {
		if entry.Timestamp.After(lastAt[entry.RecordID]) {
			lastAt[entry.RecordID] = entry.Timestamp
		}
	}

	result := make([]model.RecordState, 0, len(s.records[table]))
	for id, rec := range s.records[table] {
		at, ok := lastAt[id]
		if !ok {
			at = rec.createdAt
		}
		result = append(result, model.RecordState{
			RecordID:         id,
			State:            rec.fields.Status(),
			LastTransitionAt: at,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].RecordID < result[j].RecordID
	})
	return result, nil
}

// ScanAuditCounts returns audit counts grouped by transition name.
func (s *MemoryStore) ScanAuditCounts(_ context.Context, table string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, entry := range s.audits[table] {
		counts[entry.Transition]++
	}
	return counts, nil
}

// AuditTrail returns all audit entries for a record, ordered by timestamp.
func (s *MemoryStore) AuditTrail(_ context.Context, table, recordID string) ([]model.TransitionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.TransitionRecord
	for _, entry := range s.audits[table] {
		if entry.RecordID == recordID {
			result = append(result, entry)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

// AuditLen returns the total number of audit entries for a table. For testing.
func (s *MemoryStore) AuditLen(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.audits[table])
}

package state

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned when no record matches a (kind, id) pair.
var ErrNotFound = errors.New("resource record not found")

// Store persists resource records. The reconciler is the sole writer;
// everything else reads.
type Store interface {
	// Upsert inserts or replaces the record keyed by (Kind, ID).
	Upsert(ctx context.Context, rec ResourceRecord) error

	// Get returns the record for (kind, id) or ErrNotFound.
	Get(ctx context.Context, kind, id string) (ResourceRecord, error)

	// List returns all records of kind ordered by creation time, ties
	// broken by name.
	List(ctx context.Context, kind string) ([]ResourceRecord, error)

	// ListAll returns every record ordered by creation time, ties broken
	// by name.
	ListAll(ctx context.Context) ([]ResourceRecord, error)

	// Delete removes the record for (kind, id). Missing records are not an
	// error.
	Delete(ctx context.Context, kind, id string) error

	// Close releases the store's resources.
	Close() error
}

// MemoryStore is an in-memory Store for tests and ephemeral runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]ResourceRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]ResourceRecord)}
}

func recordKey(kind, id string) string {
	return kind + "\x00" + id
}

// Upsert implements Store.
func (s *MemoryStore) Upsert(_ context.Context, rec ResourceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey(rec.Kind, rec.ID)] = rec
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, kind, id string) (ResourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordKey(kind, id)]
	if !ok {
		return ResourceRecord{}, ErrNotFound
	}
	return rec, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, kind string) ([]ResourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ResourceRecord
	for _, rec := range s.records {
		if rec.Kind == kind {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

// ListAll implements Store.
func (s *MemoryStore) ListAll(_ context.Context) ([]ResourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ResourceRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, recordKey(kind, id))
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

func sortRecords(recs []ResourceRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		if recs[i].Name != recs[j].Name {
			return recs[i].Name < recs[j].Name
		}
		return recs[i].ID < recs[j].ID
	})
}

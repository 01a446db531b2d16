package api

import (
	"cmp"
	"slices"
	"strings"
	"sync"
)

// DecodeStore keeps finished decode records in memory.
type DecodeStore struct {
	mu      sync.Mutex
	records map[string]*DecodeRecord
}

func NewDecodeStore() *DecodeStore {
	return &DecodeStore{
		records: make(map[string]*DecodeRecord),
	}
}

func (s *DecodeStore) Save(rec DecodeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = &rec
}

func (s *DecodeStore) Get(id string) (DecodeRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return DecodeRecord{}, false
	}
	return *rec, true
}

func (s *DecodeStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return false
	}
	delete(s.records, id)
	return true
}

// List returns all records, oldest first.
func (s *DecodeStore) List() []DecodeRecord {
	s.mu.Lock()
	out := make([]DecodeRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec)
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b DecodeRecord) int {
		return cmp.Or(cmp.Compare(a.CreatedAt, b.CreatedAt), strings.Compare(a.ID, b.ID))
	})
	return out
}

func (s *DecodeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

package asset

import (
	"context"
	"strings"
)

// Store exposes the read-only keyword table consulted while resolving scenes.
type Store interface {
	Lookup(ctx context.Context, keyword string) (Entry, bool, error)
}

// MemoryStore implements Store with an in-memory map.
type MemoryStore struct {
	items map[string]Entry
}

// NewMemoryStore returns a MemoryStore preloaded with entries. Later duplicates
// of a keyword are ignored, matching the ingestion job's first-writer-wins rule.
func NewMemoryStore(entries []Entry) *MemoryStore {
	items := make(map[string]Entry, len(entries))
	for _, e := range entries {
		key := strings.ToLower(strings.TrimSpace(e.Keyword))
		if key == "" {
			continue
		}
		if _, exists := items[key]; exists {
			continue
		}
		e.Keyword = key
		items[key] = e
	}
	return &MemoryStore{items: items}
}

// Lookup finds the entry registered for keyword.
func (s *MemoryStore) Lookup(_ context.Context, keyword string) (Entry, bool, error) {
	e, ok := s.items[strings.ToLower(keyword)]
	return e, ok, nil
}

// Len reports the number of keywords.
func (s *MemoryStore) Len() int {
	return len(s.items)
}

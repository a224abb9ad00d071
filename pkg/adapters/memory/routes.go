package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/dialtone/pkg/domain"
)

// RouteStore implements ports.RouteStore in memory.
type RouteStore struct {
	mu      sync.RWMutex
	entries map[string]domain.RouteEntry
}

// NewRouteStore creates an empty route store.
func NewRouteStore() *RouteStore {
	return &RouteStore{entries: make(map[string]domain.RouteEntry)}
}

func (s *RouteStore) Put(ctx context.Context, entry domain.RouteEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Number] = entry
	return nil
}

func (s *RouteStore) Get(ctx context.Context, number string) (domain.RouteEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[number]
	if !ok {
		return domain.RouteEntry{}, domain.ErrRouteNotFound
	}
	return e, nil
}

func (s *RouteStore) Delete(ctx context.Context, number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, number)
	return nil
}

// List returns entries sorted by number.
func (s *RouteStore) List(ctx context.Context) ([]domain.RouteEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RouteEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

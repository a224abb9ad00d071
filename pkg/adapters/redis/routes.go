package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aretw0/dialtone/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// RouteStore implements ports.RouteStore with a single Redis hash (number -> JSON entry).
type RouteStore struct {
	client *backend.Client
	key    string
}

// NewRouteStore creates a route store under prefix (e.g. "dialtone:").
func NewRouteStore(client *backend.Client, prefix string) *RouteStore {
	return &RouteStore{client: client, key: prefix + "routes"}
}

func (s *RouteStore) Put(ctx context.Context, entry domain.RouteEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal route: %w", err)
	}
	if err := s.client.HSet(ctx, s.key, entry.Number, data).Err(); err != nil {
		return fmt.Errorf("failed to save route: %w", err)
	}
	return nil
}

func (s *RouteStore) Get(ctx context.Context, number string) (domain.RouteEntry, error) {
	val, err := s.client.HGet(ctx, s.key, number).Bytes()
	if err != nil {
		if err == backend.Nil {
			return domain.RouteEntry{}, domain.ErrRouteNotFound
		}
		return domain.RouteEntry{}, fmt.Errorf("failed to get route: %w", err)
	}
	var entry domain.RouteEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return domain.RouteEntry{}, fmt.Errorf("failed to unmarshal route: %w", err)
	}
	return entry, nil
}

func (s *RouteStore) Delete(ctx context.Context, number string) error {
	return s.client.HDel(ctx, s.key, number).Err()
}

func (s *RouteStore) List(ctx context.Context) ([]domain.RouteEntry, error) {
	all, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	out := make([]domain.RouteEntry, 0, len(all))
	for number, raw := range all {
		var entry domain.RouteEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal route %s: %w", number, err)
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

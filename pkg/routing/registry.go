// Package routing maps dialed numbers to deployed flows.
package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/dialtone/internal/logging"
	"github.com/aretw0/dialtone/pkg/domain"
	"github.com/aretw0/dialtone/pkg/ports"
)

// DefaultCacheTTL bounds how long a replica trusts a cached binding that
// another replica may have changed in the shared store.
const DefaultCacheTTL = 30 * time.Second

type cached struct {
	entry   domain.RouteEntry
	fetched time.Time
}

// Registry is the read-mostly number-to-flow table.
// Writes are serialized by a coarse mutex; resolves read an RWMutex-protected
// cache in front of the RouteStore.
type Registry struct {
	store ports.RouteStore

	writeMu sync.Mutex

	mu    sync.RWMutex
	cache map[string]cached

	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Option configures the Registry.
type Option func(*Registry)

// WithCacheTTL overrides DefaultCacheTTL. Zero keeps entries until they change locally.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		r.ttl = ttl
	}
}

// WithLogger configures a logger for the Registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates a registry over store.
func NewRegistry(store ports.RouteStore, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		cache:  make(map[string]cached),
		ttl:    DefaultCacheTTL,
		now:    time.Now,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds number to a flow, replacing any previous binding.
func (r *Registry) Register(ctx context.Context, number, flowID, flowName string, voice domain.VoiceSettings) (domain.RouteEntry, error) {
	number = domain.NormalizeNumber(number)
	if number == "" {
		return domain.RouteEntry{}, fmt.Errorf("route number is empty")
	}
	if flowID == "" {
		return domain.RouteEntry{}, fmt.Errorf("route %s: flow id is empty", number)
	}

	entry := domain.RouteEntry{
		Number:    number,
		FlowID:    flowID,
		FlowName:  flowName,
		Voice:     voice,
		UpdatedAt: r.now().UTC(),
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.store.Put(ctx, entry); err != nil {
		return domain.RouteEntry{}, fmt.Errorf("failed to register route %s: %w", number, err)
	}
	r.mu.Lock()
	r.cache[number] = cached{entry: entry, fetched: r.now()}
	r.mu.Unlock()

	r.logger.Info("Route registered", "number", number, "flow_id", flowID)
	return entry, nil
}

// Unregister removes a binding. Unknown numbers are ignored.
func (r *Registry) Unregister(ctx context.Context, number string) error {
	number = domain.NormalizeNumber(number)

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.store.Delete(ctx, number); err != nil {
		return fmt.Errorf("failed to unregister route %s: %w", number, err)
	}
	r.mu.Lock()
	delete(r.cache, number)
	r.mu.Unlock()

	r.logger.Info("Route unregistered", "number", number)
	return nil
}

// Resolve returns the binding for number or domain.ErrRouteNotFound.
func (r *Registry) Resolve(ctx context.Context, number string) (domain.RouteEntry, error) {
	number = domain.NormalizeNumber(number)
	if number == "" {
		return domain.RouteEntry{}, domain.ErrRouteNotFound
	}

	r.mu.RLock()
	c, ok := r.cache[number]
	r.mu.RUnlock()
	if ok && (r.ttl <= 0 || r.now().Sub(c.fetched) < r.ttl) {
		return c.entry, nil
	}

	entry, err := r.store.Get(ctx, number)
	if err != nil {
		if errors.Is(err, domain.ErrRouteNotFound) {
			r.mu.Lock()
			delete(r.cache, number)
			r.mu.Unlock()
			return domain.RouteEntry{}, domain.ErrRouteNotFound
		}
		return domain.RouteEntry{}, fmt.Errorf("failed to resolve route %s: %w", number, err)
	}

	r.mu.Lock()
	r.cache[number] = cached{entry: entry, fetched: r.now()}
	r.mu.Unlock()
	return entry, nil
}

// List returns every binding from the store.
func (r *Registry) List(ctx context.Context) ([]domain.RouteEntry, error) {
	return r.store.List(ctx)
}

package session

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

// DefaultLockTTL bounds how long a crashed replica can hold a call's distributed lock.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Factory builds the initial session for a call ID seen for the first time.
type Factory func() (*domain.Session, error)

// Mutator changes a session in place. Returning an error discards the change.
type Mutator func(*domain.Session) error

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a new Session Manager with the given persistence store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu, and call release(callID) after unlocking.
func (m *Manager) acquire(callID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[callID]
	if !exists {
		entry = &lockEntry{}
		m.locks[callID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(callID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[callID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, callID)
	}
}

// activeLocks reports the size of the lock map.
func (m *Manager) activeLocks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// WithLock executes fn while holding the lock for the call.
func (m *Manager) WithLock(ctx context.Context, callID string, fn func(context.Context) error) error {
	entry := m.acquire(callID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(callID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, callID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// The request context may already be done; release on a fresh one.
			uctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := unlock(uctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"call_id", callID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Load retrieves an existing session from the store.
func (m *Manager) Load(ctx context.Context, callID string) (*domain.Session, error) {
	var s *domain.Session
	err := m.WithLock(ctx, callID, func(ctx context.Context) error {
		var err error
		s, err = m.store.Load(ctx, callID)
		return err
	})
	return s, err
}

// GetOrCreate loads the session for callID, creating it with factory when absent.
// The boolean reports whether the session was created by this call.
func (m *Manager) GetOrCreate(ctx context.Context, callID string, factory Factory) (*domain.Session, bool, error) {
	var (
		s       *domain.Session
		created bool
	)
	err := m.WithLock(ctx, callID, func(ctx context.Context) error {
		var err error
		s, err = m.store.Load(ctx, callID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		s, err = factory()
		if err != nil {
			return err
		}
		now := m.now()
		s.CallID = callID
		if s.Variables == nil {
			s.Variables = make(map[string]string)
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		s.LastActivity = now

		if err := m.store.Save(ctx, callID, s); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		created = true
		return nil
	})
	return s, created, err
}

// Update applies fn to the stored session atomically for callID.
// Mutations of one call are applied one at a time, each bumping Seq and LastActivity.
// A terminal session is returned untouched together with domain.ErrSessionTerminated.
func (m *Manager) Update(ctx context.Context, callID string, fn Mutator) (*domain.Session, error) {
	var s *domain.Session
	err := m.WithLock(ctx, callID, func(ctx context.Context) error {
		current, err := m.store.Load(ctx, callID)
		if err != nil {
			return err
		}
		if current.Terminal {
			s = current
			return domain.ErrSessionTerminated
		}

		if err := fn(current); err != nil {
			return err
		}
		current.Seq++
		current.LastActivity = m.now()

		if err := m.store.Save(ctx, callID, current); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		s = current
		return nil
	})
	return s, err
}

// Terminate destroys the session. Terminating an unknown call is not an error.
func (m *Manager) Terminate(ctx context.Context, callID string) error {
	return m.WithLock(ctx, callID, func(ctx context.Context) error {
		return m.store.Delete(ctx, callID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// SweepIdle removes sessions whose last activity is older than maxAge.
// Each candidate is re-checked under its call lock, so a session being updated
// concurrently is never evicted. It returns the number of sessions removed.
func (m *Manager) SweepIdle(ctx context.Context, maxAge time.Duration) (int, error) {
	ids, err := m.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	swept := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return swept, err
		}
		err := m.WithLock(ctx, id, func(ctx context.Context) error {
			s, err := m.store.Load(ctx, id)
			if errors.Is(err, domain.ErrSessionNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if m.now().Sub(s.LastActivity) <= maxAge {
				return nil
			}
			if err := m.store.Delete(ctx, id); err != nil {
				return err
			}
			swept++
			m.logger.Debug("Swept idle session", "call_id", id, "flow_id", s.FlowID, "idle", m.now().Sub(s.LastActivity))
			return nil
		})
		if err != nil {
			m.logger.Warn("Failed to sweep session", "call_id", id, "err", err)
		}
	}
	return swept, nil
}

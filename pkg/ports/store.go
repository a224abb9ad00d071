package ports

import (
	"context"

	"github.com/aretw0/dialtone/pkg/domain"
)

// SessionStore defines the interface for persisting call sessions.
// Implementations must return copies: callers mutate what they load.
type SessionStore interface {
	// Save persists the session for a given call ID.
	Save(ctx context.Context, callID string, session *domain.Session) error

	// Load retrieves the session for a given call ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, callID string) (*domain.Session, error)

	// Delete removes the session for a given call ID. Deleting a missing session is not an error.
	Delete(ctx context.Context, callID string) error

	// List returns the IDs of stored sessions.
	List(ctx context.Context) ([]string, error)
}

// RouteStore persists number-to-flow bindings.
type RouteStore interface {
	// Put creates or replaces the entry for entry.Number.
	Put(ctx context.Context, entry domain.RouteEntry) error

	// Get returns domain.ErrRouteNotFound when the number is unbound.
	Get(ctx context.Context, number string) (domain.RouteEntry, error)

	// Delete removes a binding. Deleting a missing number is not an error.
	Delete(ctx context.Context, number string) error

	// List returns every binding.
	List(ctx context.Context) ([]domain.RouteEntry, error)
}

// FlowRepository holds deployed, immutable flow versions.
type FlowRepository interface {
	// Put stores a new version of graph.ID and returns the stored graph.
	Put(ctx context.Context, graph *domain.FlowGraph) (*domain.FlowGraph, error)

	// Get returns a specific version, or domain.ErrFlowNotFound.
	Get(ctx context.Context, flowID string, version int) (*domain.FlowGraph, error)

	// Latest returns the newest version, or domain.ErrFlowNotFound.
	Latest(ctx context.Context, flowID string) (*domain.FlowGraph, error)

	// List returns the newest version of every flow.
	List(ctx context.Context) ([]*domain.FlowGraph, error)
}

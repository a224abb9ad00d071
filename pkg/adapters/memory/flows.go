package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/dialtone/pkg/domain"
)

// FlowRepository implements ports.FlowRepository in memory.
// Every Put creates a new version; older versions stay readable so in-flight
// calls keep the graph they started with.
type FlowRepository struct {
	mu       sync.RWMutex
	versions map[string][]*domain.FlowGraph
}

// NewFlowRepository creates an empty repository.
func NewFlowRepository() *FlowRepository {
	return &FlowRepository{versions: make(map[string][]*domain.FlowGraph)}
}

// Put stores graph as the next version of its flow ID.
func (r *FlowRepository) Put(ctx context.Context, graph *domain.FlowGraph) (*domain.FlowGraph, error) {
	if graph == nil || graph.ID == "" {
		return nil, fmt.Errorf("flow graph missing ID")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := graph.WithVersion(len(r.versions[graph.ID]) + 1)
	r.versions[graph.ID] = append(r.versions[graph.ID], stored)
	return stored, nil
}

func (r *FlowRepository) Get(ctx context.Context, flowID string, version int) (*domain.FlowGraph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.versions[flowID]
	if version < 1 || version > len(list) {
		return nil, fmt.Errorf("%w: %s@%d", domain.ErrFlowNotFound, flowID, version)
	}
	return list[version-1], nil
}

func (r *FlowRepository) Latest(ctx context.Context, flowID string) (*domain.FlowGraph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.versions[flowID]
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, flowID)
	}
	return list[len(list)-1], nil
}

// List returns the newest version of every flow, sorted by ID.
func (r *FlowRepository) List(ctx context.Context) ([]*domain.FlowGraph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.FlowGraph, 0, len(r.versions))
	for _, list := range r.versions {
		out = append(out, list[len(list)-1])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

package dsl

import (
	"fmt"

	"github.com/aretw0/dialtone/internal/validator"
	"github.com/aretw0/dialtone/pkg/domain"
)

// Builder manages the graph construction.
type Builder struct {
	id    string
	name  string
	order []string
	nodes map[string]*NodeBuilder
	edges []domain.Edge
}

// New creates a new graph builder for flow id.
func New(id, name string) *Builder {
	return &Builder{
		id:    id,
		name:  name,
		nodes: make(map[string]*NodeBuilder),
	}
}

func (b *Builder) add(n domain.Node) *NodeBuilder {
	if nb, ok := b.nodes[n.NodeID()]; ok {
		return nb
	}
	nb := &NodeBuilder{node: n, builder: b}
	b.nodes[n.NodeID()] = nb
	b.order = append(b.order, n.NodeID())
	return nb
}

// Say adds a node that speaks text. If id already exists, it returns the existing builder.
func (b *Builder) Say(id, text string) *NodeBuilder {
	return b.add(&domain.Say{ID: id, Text: text})
}

// Collect adds a node that prompts and waits for input.
func (b *Builder) Collect(id, prompt string) *NodeBuilder {
	return b.add(&domain.Collect{ID: id, Prompt: prompt})
}

// Decision adds a silent branching node.
func (b *Builder) Decision(id string) *NodeBuilder {
	return b.add(&domain.Decision{ID: id})
}

// Transfer adds a node that dials destination.
func (b *Builder) Transfer(id, destination string) *NodeBuilder {
	return b.add(&domain.Transfer{ID: id, Destination: destination})
}

// Record adds a node that records the caller.
func (b *Builder) Record(id, prompt string) *NodeBuilder {
	return b.add(&domain.Record{ID: id, Prompt: prompt})
}

// Pause adds a silent wait.
func (b *Builder) Pause(id string) *NodeBuilder {
	return b.add(&domain.Pause{ID: id})
}

// End adds a terminal node that hangs up after text.
func (b *Builder) End(id, text string) *NodeBuilder {
	return b.add(&domain.End{ID: id, Text: text, Hangup: true})
}

// Edge declares a visual edge. Edges must mirror node transitions.
func (b *Builder) Edge(from, to string) *Builder {
	b.edges = append(b.edges, domain.Edge{From: from, To: to})
	return b
}

// Graph returns the graph without validating it.
func (b *Builder) Graph() *domain.FlowGraph {
	nodes := make([]domain.Node, 0, len(b.order))
	for _, id := range b.order {
		nodes = append(nodes, b.nodes[id].node)
	}
	return domain.NewFlowGraph(b.id, 0, b.name, nodes, b.edges)
}

// Build compiles and validates the graph.
func (b *Builder) Build() (*domain.FlowGraph, error) {
	g := b.Graph()
	if err := validator.Validate(g); err != nil {
		return nil, fmt.Errorf("failed to build flow %s: %w", b.id, err)
	}
	return g, nil
}

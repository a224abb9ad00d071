package dsl

import (
	"time"

	"github.com/aretw0/dialtone/pkg/domain"
)

// NodeBuilder provides a fluent API for configuring a node.
// Setters that do not apply to the node kind are ignored.
type NodeBuilder struct {
	node    domain.Node
	builder *Builder
}

// Go sets the next node.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	switch v := n.node.(type) {
	case *domain.Say:
		v.Next = target
	case *domain.Collect:
		v.Next = target
	case *domain.Transfer:
		v.Next = target
	case *domain.Record:
		v.Next = target
	case *domain.Pause:
		v.Next = target
	}
	return n
}

// Text sets what is spoken by a Say, Transfer or End node.
func (n *NodeBuilder) Text(text string) *NodeBuilder {
	switch v := n.node.(type) {
	case *domain.Say:
		v.Text = text
	case *domain.Transfer:
		v.Text = text
	case *domain.End:
		v.Text = text
	}
	return n
}

// Voice overrides the route voice for this node.
func (n *NodeBuilder) Voice(voice string) *NodeBuilder {
	switch v := n.node.(type) {
	case *domain.Say:
		v.Voice = voice
	case *domain.Collect:
		v.Voice = voice
	case *domain.Transfer:
		v.Voice = voice
	case *domain.Record:
		v.Voice = voice
	case *domain.End:
		v.Voice = voice
	}
	return n
}

// ExpectInput turns a Say into a prompt whose answer flows into Next.
func (n *NodeBuilder) ExpectInput() *NodeBuilder {
	if v, ok := n.node.(*domain.Say); ok {
		v.ExpectInput = true
	}
	return n
}

// Input configures how a Collect node accepts answers.
func (n *NodeBuilder) Input(mode domain.InputMode) *NodeBuilder {
	if v, ok := n.node.(*domain.Collect); ok {
		v.Input = mode
	}
	return n
}

// MaxDigits limits keypad input of a Collect node.
func (n *NodeBuilder) MaxDigits(max int) *NodeBuilder {
	if v, ok := n.node.(*domain.Collect); ok {
		v.MaxLength = max
	}
	return n
}

// SaveTo specifies the session variable receiving the input (or recording URL).
func (n *NodeBuilder) SaveTo(variable string) *NodeBuilder {
	switch v := n.node.(type) {
	case *domain.Collect:
		v.Variable = variable
	case *domain.Record:
		v.Variable = variable
	}
	return n
}

// Timeout sets the input timeout of a Collect or the dial timeout of a Transfer.
func (n *NodeBuilder) Timeout(d time.Duration) *NodeBuilder {
	switch v := n.node.(type) {
	case *domain.Collect:
		v.Timeout = d
	case *domain.Transfer:
		v.Timeout = d
	}
	return n
}

// For sets the length of a Pause or the maximum length of a Record.
func (n *NodeBuilder) For(d time.Duration) *NodeBuilder {
	switch v := n.node.(type) {
	case *domain.Pause:
		v.Length = d
	case *domain.Record:
		v.MaxLength = d
	}
	return n
}

// On reads the decision from a session variable instead of the current input.
func (n *NodeBuilder) On(variable string) *NodeBuilder {
	if v, ok := n.node.(*domain.Decision); ok {
		v.Variable = variable
	}
	return n
}

// When adds a decision row.
func (n *NodeBuilder) When(value, target string) *NodeBuilder {
	if v, ok := n.node.(*domain.Decision); ok {
		v.Matches = append(v.Matches, domain.Match{Value: value, Target: target})
	}
	return n
}

// Otherwise sets the decision default.
func (n *NodeBuilder) Otherwise(target string) *NodeBuilder {
	if v, ok := n.node.(*domain.Decision); ok {
		v.Default = target
	}
	return n
}

// KeepLine leaves the channel open after an End node.
func (n *NodeBuilder) KeepLine() *NodeBuilder {
	if v, ok := n.node.(*domain.End); ok {
		v.Hangup = false
	}
	return n
}

// Build returns the underlying domain.Node.
func (n *NodeBuilder) Build() domain.Node {
	return n.node
}

package domain

import "time"

// Reserved variable names exposed to templates alongside caller variables.
const (
	VarCallID    = "call_id"
	VarFrom      = "from"
	VarTo        = "to"
	VarLastInput = "last_input"
	// VarCallStatus holds the latest non-terminal carrier status.
	VarCallStatus = "call_status"
)

// Session is the per-call execution context.
type Session struct {
	// CallID is the carrier-assigned call identifier.
	CallID string `json:"call_id"`

	FlowID      string `json:"flow_id"`
	FlowVersion int    `json:"flow_version"`

	// CurrentNodeID is the node evaluated on the next step.
	CurrentNodeID string `json:"current_node_id"`

	// Variables holds caller-supplied values keyed by name.
	Variables map[string]string `json:"variables"`

	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	// Voice is inherited from the route the call arrived on.
	Voice VoiceSettings `json:"voice"`

	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`

	// AwaitingInput is set when the last response asked the carrier to collect input.
	AwaitingInput bool `json:"awaiting_input,omitempty"`

	// Terminal marks a finished call; further input is ignored.
	Terminal bool `json:"terminal,omitempty"`

	// History lists the node IDs entered, in order.
	History []string `json:"history,omitempty"`

	// LastInstruction is the response to the latest step, replayed when the
	// carrier redelivers a callback. It is replaced, never modified in place.
	LastInstruction *Instruction `json:"last_instruction,omitempty"`

	// Seq counts applied mutations.
	Seq uint64 `json:"seq"`
}

// NewSession creates a session positioned at the entry node of a flow.
func NewSession(callID string, graph *FlowGraph, now time.Time) *Session {
	s := &Session{
		CallID:       callID,
		Variables:    make(map[string]string),
		CreatedAt:    now,
		LastActivity: now,
	}
	if graph != nil {
		s.FlowID = graph.ID
		s.FlowVersion = graph.Version
		s.CurrentNodeID = graph.Entry()
	}
	return s
}

// Clone returns a deep copy safe for independent mutation.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Variables = make(map[string]string, len(s.Variables))
	for k, v := range s.Variables {
		c.Variables[k] = v
	}
	c.History = append([]string(nil), s.History...)
	return &c
}

// TemplateData returns the values available to text interpolation.
func (s *Session) TemplateData() map[string]string {
	data := make(map[string]string, len(s.Variables)+3)
	for k, v := range s.Variables {
		data[k] = v
	}
	data[VarCallID] = s.CallID
	data[VarFrom] = s.From
	data[VarTo] = s.To
	return data
}

package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventCallStarted    EventType = "call_started"
	EventNodeEntered    EventType = "node_entered"
	EventInputReceived  EventType = "input_received"
	EventCallTerminated EventType = "call_terminated"
	EventStepFailed     EventType = "step_failed"
	EventRouteMissing   EventType = "route_missing"
)

// Event is a step-level notification for monitoring consumers.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	CallID    string            `json:"call_id"`
	FlowID    string            `json:"flow_id,omitempty"`
	NodeID    string            `json:"node_id,omitempty"`
	NodeKind  NodeKind          `json:"node_kind,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
// Every hook is optional.
type LifecycleHooks struct {
	OnCallStart  func(context.Context, *Session)
	OnNodeEnter  func(context.Context, *Session, Node)
	OnCallEnd    func(context.Context, *Session, string)
	OnStepFailed func(context.Context, *Session, error)
}

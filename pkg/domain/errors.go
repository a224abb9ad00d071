package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionNotFound is returned when a call ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionTerminated is returned when input arrives for a finished call.
var ErrSessionTerminated = errors.New("session terminated")

// ErrRouteNotFound is returned when no flow is bound to a dialed number.
var ErrRouteNotFound = errors.New("route not found")

// ErrFlowNotFound is returned when a flow ID (or version) is not deployed.
var ErrFlowNotFound = errors.New("flow not found")

// ErrEvaluationFailure is the root of every step evaluation failure.
var ErrEvaluationFailure = errors.New("evaluation failure")

// ErrUpstreamTimeout is returned when a dependency exceeded its time budget.
var ErrUpstreamTimeout = errors.New("upstream timeout")

// GraphError reports every structural problem found in a flow graph.
type GraphError struct {
	FlowID   string
	Problems []string
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("invalid flow %q: found %d problems:\n- %s",
		e.FlowID, len(e.Problems), strings.Join(e.Problems, "\n- "))
}

// EvaluationError describes why a node could not be evaluated.
type EvaluationError struct {
	NodeID string
	Reason string
}

func (e *EvaluationError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("evaluation failed: %s", e.Reason)
	}
	return fmt.Sprintf("evaluation failed at node %q: %s", e.NodeID, e.Reason)
}

func (e *EvaluationError) Unwrap() error { return ErrEvaluationFailure }

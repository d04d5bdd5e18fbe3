package run

import (
	"context"
	"errors"
	"fmt"

	"github.com/agents-forge/forge/graph"
	"github.com/agents-forge/forge/step"
)

// ErrorKind classifies execution failures.
type ErrorKind string

const (
	// NodeTimeout means a node exceeded its per-invocation deadline.
	NodeTimeout ErrorKind = "node_timeout"
	// UpstreamUnavailable means a collaborator could not serve a node's call.
	UpstreamUnavailable ErrorKind = "upstream_unavailable"
	// UpstreamTimeout means a collaborator did not answer a node in time.
	UpstreamTimeout ErrorKind = "upstream_timeout"
	// InvalidPartialUpdate means a node produced state keys outside its
	// capability's declared key-set.
	InvalidPartialUpdate ErrorKind = "invalid_partial_update"
	// UnknownCapability means no executor is registered for a node's type.
	UnknownCapability ErrorKind = "unknown_capability"
	// Canceled means the execution's context was canceled.
	Canceled ErrorKind = "canceled"
	// Internal covers panics and other unclassified node failures.
	Internal ErrorKind = "internal"
)

// Error is the failure of one execution. State holds the shared state as of
// the last successful merge: partial results stay observable for
// diagnostics, they are never rolled back.
type Error struct {
	Kind    ErrorKind
	NodeID  string
	Message string
	State   graph.State
}

func (e *Error) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("execution failed (%s) at node %q: %s", e.Kind, e.NodeID, e.Message)
	}
	return fmt.Sprintf("execution failed (%s): %s", e.Kind, e.Message)
}

// classify maps a node failure onto the execution error taxonomy.
// nodeCtx is the per-node context carrying the invocation deadline.
func classify(nodeCtx context.Context, nodeID string, err error) *Error {
	if errors.Is(nodeCtx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: NodeTimeout, NodeID: nodeID, Message: err.Error()}
	}
	if errors.Is(err, context.Canceled) || errors.Is(nodeCtx.Err(), context.Canceled) {
		return &Error{Kind: Canceled, NodeID: nodeID, Message: err.Error()}
	}
	var upstream *step.UpstreamError
	if errors.As(err, &upstream) {
		kind := UpstreamUnavailable
		if upstream.Kind == step.UpstreamTimeout {
			kind = UpstreamTimeout
		}
		return &Error{Kind: kind, NodeID: nodeID, Message: err.Error()}
	}
	return &Error{Kind: Internal, NodeID: nodeID, Message: err.Error()}
}

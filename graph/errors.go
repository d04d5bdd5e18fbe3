package graph

import "fmt"

// CompileErrorKind discriminates the fail-fast validation failures.
type CompileErrorKind string

const (
	// DuplicateNodeID means two nodes share the same id.
	DuplicateNodeID CompileErrorKind = "duplicate_node_id"
	// UnknownNodeReference means an edge endpoint is neither START, END,
	// nor a declared node id.
	UnknownNodeReference CompileErrorKind = "unknown_node_reference"
	// MissingEntryOrExit means no edge originates at START or none
	// terminates at END.
	MissingEntryOrExit CompileErrorKind = "missing_entry_or_exit"
	// CyclicGraph means the subgraph of real nodes contains a cycle.
	CyclicGraph CompileErrorKind = "cyclic_graph"
	// UnreachableNode means a node cannot be reached from START.
	UnreachableNode CompileErrorKind = "unreachable_node"
	// DeadEndNode means a node has no path to END.
	DeadEndNode CompileErrorKind = "dead_end_node"
)

// CompileError reports a rejected agent description. The description is
// never partially compiled: on error no Graph is produced.
type CompileError struct {
	Kind   CompileErrorKind
	NodeID string
	Detail string
}

func (e *CompileError) Error() string {
	msg := fmt.Sprintf("graph compile failed (%s)", e.Kind)
	if e.NodeID != "" {
		msg += fmt.Sprintf(" at node %q", e.NodeID)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func compileErr(kind CompileErrorKind, nodeID, format string, args ...any) *CompileError {
	return &CompileError{
		Kind:   kind,
		NodeID: nodeID,
		Detail: fmt.Sprintf(format, args...),
	}
}

// Package step provides the capability-polymorphic executors that run the
// individual nodes of a compiled workflow graph. Each capability variant
// implements Executor; the closed set of variants is assembled into a
// Registry the scheduler dispatches through. Executors only read the state
// snapshot they are given and report their contribution as an update, so a
// node invocation is atomic from the scheduler's point of view.
package step

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/agents-forge/forge/graph"
)

// Capability names of the built-in executors.
const (
	CapabilityReasoning       = "reasoning"
	CapabilitySearchReasoning = "search_reasoning"
)

// Shared-state keys the built-in executors read and write.
const (
	// KeyInput holds the user input for the current execution.
	KeyInput = "input"
	// KeyMessages holds the accumulated conversation ([]Message).
	KeyMessages = "messages"
	// KeyLastResponse holds the most recent assistant text.
	KeyLastResponse = "last_response"
	// KeySearchQuery holds the formulated web-search query.
	KeySearchQuery = "search_query"
	// KeySearchResults holds the retrieved documents.
	KeySearchResults = "search_results"
)

// Executor runs one node given a read-only state snapshot. It returns the
// node's partial state update and a human-facing narrative, or an error;
// never a half-applied update.
type Executor interface {
	// Capability is the node type this executor serves.
	Capability() string

	// UpdateKeys is the closed set of state keys the executor may write.
	// The scheduler rejects updates outside this set at merge time.
	UpdateKeys() []string

	// Execute runs the step. The snapshot must be treated as immutable.
	Execute(ctx context.Context, node graph.Node, snapshot graph.State) (graph.Update, string, error)
}

// TextGeneration is the text-generation collaborator. Model and temperature
// come from the node parameters and are passed through unmodified.
type TextGeneration interface {
	Complete(ctx context.Context, prompt, model string, temperature float64) (string, error)
}

// Retrieval is the web-search collaborator.
type Retrieval interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// SearchResult is one retrieved document.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Message is one turn of the accumulated conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Messages extracts the conversation from a state snapshot. It tolerates
// both the in-memory []Message form and the []any form a JSON round-trip
// produces. The returned slice never shares a backing array with the
// snapshot, so callers may append to it without mutating shared state.
func Messages(s graph.State) []Message {
	raw, ok := s[KeyMessages]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []Message:
		return slices.Clone(v)
	case []any:
		out := make([]Message, 0, len(v))
		for _, item := range v {
			switch m := item.(type) {
			case Message:
				out = append(out, m)
			case map[string]any:
				role, _ := m["role"].(string)
				content, _ := m["content"].(string)
				out = append(out, Message{Role: role, Content: content})
			}
		}
		return out
	default:
		return nil
	}
}

// Input extracts the user input from a state snapshot.
func Input(s graph.State) string {
	v, _ := s[KeyInput].(string)
	return v
}

// conversationPrompt renders the objective plus the accumulated
// conversation into one completion prompt.
func conversationPrompt(objective string, msgs []Message, input string) string {
	var sb strings.Builder
	sb.WriteString(objective)
	if len(msgs) > 0 {
		sb.WriteString("\n\nConversation so far:\n")
		for _, m := range msgs {
			fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
		}
	}
	if input != "" {
		fmt.Fprintf(&sb, "\nuser: %s", input)
	}
	return sb.String()
}

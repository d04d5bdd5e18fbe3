package step

import (
	"context"
	"fmt"
	"strings"

	"github.com/agents-forge/forge/graph"
)

// searchInstructions asks the model to turn the conversation into a single
// web-search query.
const searchInstructions = `You will be given a conversation between an analyst and an expert.
Your goal is to generate a well-structured query for use in retrieval and / or web-search related to the conversation.
First, analyze the full conversation.
Convert the final question into a well-structured web search query.
Answer with the query only.`

// SearchReasoningExecutor runs search-augmented steps: it formulates a
// search query from the conversation, retrieves documents, and contributes
// the formatted results to the shared state.
type SearchReasoningExecutor struct {
	gen TextGeneration
	ret Retrieval
}

// NewSearchReasoningExecutor creates the executor for "search_reasoning" nodes.
func NewSearchReasoningExecutor(gen TextGeneration, ret Retrieval) *SearchReasoningExecutor {
	return &SearchReasoningExecutor{gen: gen, ret: ret}
}

// Capability implements Executor.
func (e *SearchReasoningExecutor) Capability() string {
	return CapabilitySearchReasoning
}

// UpdateKeys implements Executor.
func (e *SearchReasoningExecutor) UpdateKeys() []string {
	return []string{KeyMessages, KeyLastResponse, KeySearchQuery, KeySearchResults}
}

// Execute implements Executor.
func (e *SearchReasoningExecutor) Execute(ctx context.Context, node graph.Node, snapshot graph.State) (graph.Update, string, error) {
	msgs := Messages(snapshot)

	query, err := e.gen.Complete(ctx, conversationPrompt(searchInstructions, msgs, Input(snapshot)), node.Model, node.Temperature)
	if err != nil {
		return nil, "", err
	}
	query = strings.TrimSpace(query)

	results, err := e.ret.Search(ctx, query)
	if err != nil {
		return nil, "", err
	}

	text := "Found the following information: " + FormatResults(results)

	update := graph.Update{
		KeyMessages:      append(msgs, Message{Role: "assistant", Content: text}),
		KeyLastResponse:  text,
		KeySearchQuery:   query,
		KeySearchResults: results,
	}
	return update, text, nil
}

// FormatResults renders retrieved documents as href-tagged blocks separated
// by horizontal rules, the shape downstream reasoning steps consume.
func FormatResults(results []SearchResult) string {
	if len(results) == 0 {
		return "No results found"
	}
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("<Document href=%q>\n%s\n</Document>", r.URL, r.Content))
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

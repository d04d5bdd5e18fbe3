package step

import (
	"context"

	"github.com/agents-forge/forge/graph"
)

// ReasoningExecutor runs plain language-model reasoning steps: the node
// objective becomes the instruction, the accumulated conversation the
// context, and the completion is appended to the conversation.
type ReasoningExecutor struct {
	gen TextGeneration
}

// NewReasoningExecutor creates the executor for "reasoning" nodes.
func NewReasoningExecutor(gen TextGeneration) *ReasoningExecutor {
	return &ReasoningExecutor{gen: gen}
}

// Capability implements Executor.
func (e *ReasoningExecutor) Capability() string {
	return CapabilityReasoning
}

// UpdateKeys implements Executor.
func (e *ReasoningExecutor) UpdateKeys() []string {
	return []string{KeyMessages, KeyLastResponse}
}

// Execute implements Executor.
func (e *ReasoningExecutor) Execute(ctx context.Context, node graph.Node, snapshot graph.State) (graph.Update, string, error) {
	msgs := Messages(snapshot)
	prompt := conversationPrompt(node.Objective, msgs, Input(snapshot))

	text, err := e.gen.Complete(ctx, prompt, node.Model, node.Temperature)
	if err != nil {
		return nil, "", err
	}

	update := graph.Update{
		KeyMessages:     append(msgs, Message{Role: "assistant", Content: text}),
		KeyLastResponse: text,
	}
	return update, text, nil
}

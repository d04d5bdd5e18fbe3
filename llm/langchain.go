package llm

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/llms"

	"github.com/agents-forge/forge/step"
)

// LangChain adapts any langchaingo llms.Model to step.TextGeneration, so
// the full provider catalog of langchaingo is usable as a collaborator.
type LangChain struct {
	model llms.Model
}

var _ step.TextGeneration = (*LangChain)(nil)

// NewLangChain wraps a langchaingo model.
func NewLangChain(model llms.Model) *LangChain {
	return &LangChain{model: model}
}

// Complete implements step.TextGeneration.
func (l *LangChain) Complete(ctx context.Context, prompt, model string, temperature float64) (string, error) {
	opts := []llms.CallOption{
		llms.WithTemperature(temperature),
	}
	if model != "" {
		opts = append(opts, llms.WithModel(model))
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, l.model, prompt, opts...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", step.NewUpstreamError(step.UpstreamTimeout, "langchain.completion", err)
		}
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", step.NewUpstreamError(step.UpstreamUnavailable, "langchain.completion", err)
	}
	return text, nil
}

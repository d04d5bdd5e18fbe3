// Package llm provides the text-generation collaborators the step
// executors call: an OpenAI-compatible client and an adapter for any
// langchaingo model. Both pass the node's model and temperature parameters
// through unmodified and report failures as step upstream errors.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agents-forge/forge/step"
)

// OpenAI implements step.TextGeneration against an OpenAI-compatible API.
type OpenAI struct {
	client *openai.Client
}

var _ step.TextGeneration = (*OpenAI)(nil)

// OpenAIOption configures the client.
type OpenAIOption func(*openai.ClientConfig)

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(baseURL string) OpenAIOption {
	return func(cfg *openai.ClientConfig) {
		cfg.BaseURL = baseURL
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(cfg *openai.ClientConfig) {
		cfg.HTTPClient = c
	}
}

// NewOpenAI creates the collaborator. If apiKey is empty, it is read from
// the OPENAI_API_KEY environment variable.
func NewOpenAI(apiKey string, opts ...OpenAIOption) (*OpenAI, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	cfg := openai.DefaultConfig(apiKey)
	for _, opt := range opts {
		opt(&cfg)
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg)}, nil
}

// Complete implements step.TextGeneration.
func (o *OpenAI) Complete(ctx context.Context, prompt, model string, temperature float64) (string, error) {
	// go-openai omits a zero temperature from the request, which would make
	// the API fall back to its default. Substitute the smallest non-zero
	// float so an explicit 0 survives serialization.
	temp := float32(temperature)
	if temp == 0 {
		temp = math.SmallestNonzeroFloat32
	}
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: temp,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", step.NewUpstreamError(step.UpstreamUnavailable, "openai.completion",
			fmt.Errorf("response contained no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyOpenAIError maps client failures onto the upstream taxonomy.
func classifyOpenAIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return step.NewUpstreamError(step.UpstreamTimeout, "openai.completion", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return step.NewUpstreamError(step.UpstreamUnavailable, "openai.completion", err)
}

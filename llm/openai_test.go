package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agents-forge/forge/step"
)

func completionServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIComplete(t *testing.T) {
	var gotReq openai.ChatCompletionRequest
	srv := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: "assistant", Content: "hello from the model"}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	gen, err := NewOpenAI("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	text, err := gen.Complete(context.Background(), "say hello", "gpt-4o", 0.3)
	require.NoError(t, err)
	assert.Equal(t, "hello from the model", text)

	assert.Equal(t, "gpt-4o", gotReq.Model)
	assert.InDelta(t, 0.3, gotReq.Temperature, 0.001)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "say hello", gotReq.Messages[0].Content)
}

func TestOpenAICompleteZeroTemperature(t *testing.T) {
	var body map[string]json.RawMessage
	srv := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: "assistant", Content: "ok"}},
			},
		})
	})

	gen, err := NewOpenAI("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = gen.Complete(context.Background(), "p", "gpt-4o", 0)
	require.NoError(t, err)

	// An explicit temperature of 0 must reach the wire rather than being
	// dropped by omitempty, which would let the API default apply.
	raw, ok := body["temperature"]
	require.True(t, ok, "request body lacks a temperature field")
	var temp float64
	require.NoError(t, json.Unmarshal(raw, &temp))
	assert.InDelta(t, 0, temp, 1e-6)
}

func TestOpenAICompleteUnavailable(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusServiceUnavailable)
	})

	gen, err := NewOpenAI("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = gen.Complete(context.Background(), "p", "m", 0)
	var upstream *step.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, step.UpstreamUnavailable, upstream.Kind)
}

func TestOpenAICompleteTimeout(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	gen, err := NewOpenAI("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = gen.Complete(ctx, "p", "m", 0)
	var upstream *step.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, step.UpstreamTimeout, upstream.Kind)
}

func TestOpenAICompleteEmptyChoices(t *testing.T) {
	srv := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{})
	})

	gen, err := NewOpenAI("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = gen.Complete(context.Background(), "p", "m", 0)
	var upstream *step.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, step.UpstreamUnavailable, upstream.Kind)
}

func TestNewOpenAIMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAI("")
	assert.Error(t, err)
}

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClientResponsesAPI(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/responses"), "path %s", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "resp_1",
			"object": "response",
			"created_at": 1,
			"model": "gpt-4o-mini",
			"status": "completed",
			"output": [{
				"type": "message",
				"id": "msg_1",
				"role": "assistant",
				"status": "completed",
				"content": [{"type": "output_text", "text": "Final Answer: 4\nObservation: x", "annotations": []}]
			}],
			"usage": {"input_tokens": 7, "output_tokens": 3, "total_tokens": 10,
				"input_tokens_details": {"cached_tokens": 0}, "output_tokens_details": {"reasoning_tokens": 0}}
		}`)
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), Options{
		Provider: "openai",
		APIKey:   "sk-test",
		BaseURL:  server.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", client.GetModelName())

	resp, err := client.CompleteWithRequest(context.Background(), &CompletionRequest{
		SystemPrompt: "Be brief.",
		Messages:     []*Message{{Role: RoleUser, Content: "2+2?"}},
		Temperature:  0.2,
		MaxTokens:    32,
		Stop:         []string{"\nObservation:"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Final Answer: 4", resp.Content)
	assert.Equal(t, "completed", resp.StopReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 7, resp.Usage.InputTokens)

	assert.Equal(t, "Be brief.", body["instructions"])
	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.EqualValues(t, 32, body["max_output_tokens"])
}

func TestAnthropicClientMessages(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/messages"), "path %s", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "Final Answer: 9"}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 12, "output_tokens": 4}
		}`)
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), Options{
		Provider: "claude",
		APIKey:   "sk-ant",
		BaseURL:  server.URL,
	})
	require.NoError(t, err)

	resp, err := client.CompleteWithRequest(context.Background(), &CompletionRequest{
		SystemPrompt: "sys",
		Messages: []*Message{
			{Role: RoleSystem, Content: "extra"},
			{Role: RoleUser, Content: "3**2?"},
		},
		Stop: []string{"Observation:"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Final Answer: 9", resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, 4, resp.Usage.OutputTokens)

	messages, ok := body["messages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, messages, 1)
	system, ok := body["system"].([]interface{})
	require.True(t, ok)
	assert.Len(t, system, 2)
	assert.EqualValues(t, 1024, body["max_tokens"])
	assert.Equal(t, []interface{}{"Observation:"}, body["stop_sequences"])
}

func TestAnthropicClientRejectsEmptyConversation(t *testing.T) {
	client, err := NewAnthropicClient("k", "")
	require.NoError(t, err)
	_, err = client.CompleteWithRequest(context.Background(), &CompletionRequest{SystemPrompt: "only system"})
	assert.Error(t, err)
}

func TestNewClientErrors(t *testing.T) {
	_, err := NewClient(context.Background(), Options{Provider: "nope"})
	assert.Error(t, err)

	_, err = NewClient(context.Background(), Options{Provider: "openai-compatible", Model: "m"})
	assert.ErrorContains(t, err, "base URL")

	_, err = NewClient(context.Background(), Options{Provider: "google"})
	assert.ErrorContains(t, err, "API key")
}

func TestNewClientWrapsRateLimiter(t *testing.T) {
	client, err := NewClient(context.Background(), Options{
		Provider:        "openai-compatible",
		Model:           "m",
		BaseURL:         "http://127.0.0.1:1",
		TokensPerMinute: 1000,
	})
	require.NoError(t, err)
	_, ok := client.(*rateLimitedClient)
	assert.True(t, ok, "expected rate limited client, got %T", client)
}

func TestGoogleModelName(t *testing.T) {
	assert.Equal(t, "gemini-2.0-flash", normalizeGoogleModelName(""))
	assert.Equal(t, "gemini-1.5-pro", normalizeGoogleModelName("models/gemini-1.5-pro"))
}

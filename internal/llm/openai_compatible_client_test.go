package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAICompatibleClient_CompleteWithRequest(t *testing.T) {
	var got chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected /chat/completions, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization header = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-1",
			"model": "gemma2-9b-it",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Final Answer: 4"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`)
	}))
	defer server.Close()

	client, err := NewOpenAICompatibleClient("test-key", server.URL+"/", "gemma2-9b-it")
	if err != nil {
		t.Fatalf("NewOpenAICompatibleClient failed: %v", err)
	}

	resp, err := client.CompleteWithRequest(context.Background(), &CompletionRequest{
		SystemPrompt: "You are a math assistant.",
		Messages: []*Message{
			{Role: "human", Content: "What is 2+2?"},
			{Role: "ai", Content: "Let me compute."},
		},
		Temperature: 0.2,
		MaxTokens:   64,
		Stop:        []string{"Observation:"},
	})
	if err != nil {
		t.Fatalf("CompleteWithRequest failed: %v", err)
	}

	if resp.Content != "Final Answer: 4" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.StopReason != "stop" {
		t.Errorf("StopReason = %q", resp.StopReason)
	}
	if resp.Usage == nil || resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 5 {
		t.Errorf("Usage = %+v", resp.Usage)
	}

	if len(got.Messages) != 3 {
		t.Fatalf("expected system + 2 messages, got %d", len(got.Messages))
	}
	wantRoles := []string{RoleSystem, RoleUser, RoleAssistant}
	for i, role := range wantRoles {
		if got.Messages[i].Role != role {
			t.Errorf("message %d role = %q, want %q", i, got.Messages[i].Role, role)
		}
	}
	if got.Temperature == nil || *got.Temperature != 0.2 {
		t.Errorf("temperature not forwarded: %v", got.Temperature)
	}
	if len(got.Stop) != 1 || got.Stop[0] != "Observation:" {
		t.Errorf("stop = %v", got.Stop)
	}
	if got.Stream {
		t.Error("stream flag set on a non-streaming request")
	}
}

func TestOpenAICompatibleClient_TruncatesAtStop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"Action: Calculator\nObservation: 4"}}]}`)
	}))
	defer server.Close()

	client, err := NewOpenAICompatibleClient("", server.URL, "local")
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.CompleteWithRequest(context.Background(), &CompletionRequest{
		Messages: []*Message{{Role: RoleUser, Content: "hi"}},
		Stop:     []string{"\nObservation:"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "Action: Calculator" {
		t.Errorf("Content = %q", resp.Content)
	}
}

func TestOpenAICompatibleClient_NoAuthHeaderWithoutKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected Authorization header")
		}
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer server.Close()

	client, err := NewOpenAICompatibleClient("  ", server.URL, "local")
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.CompleteWithRequest(context.Background(), &CompletionRequest{
		Messages: []*Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "" || resp.StopReason != "stop" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestOpenAICompatibleClient_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewOpenAICompatibleClient("k", server.URL, "m")
	if err != nil {
		t.Fatal(err)
	}
	_, err = client.CompleteWithRequest(context.Background(), &CompletionRequest{
		Messages: []*Message{{Role: RoleUser, Content: "hi"}},
	})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests || !strings.Contains(statusErr.Body, "rate limited") {
		t.Errorf("unexpected status error %+v", statusErr)
	}
}

func TestOpenAICompatibleClient_Stream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.Stream {
			t.Error("stream flag not set")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{"Thought: add", " numbers\nAction: Calc", "ulator\nObs", "ervation: 4"}
		for _, chunk := range chunks {
			payload, _ := json.Marshal(map[string]interface{}{
				"choices": []map[string]interface{}{{"delta": map[string]string{"content": chunk}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client, err := NewOpenAICompatibleClient("k", server.URL, "m")
	if err != nil {
		t.Fatal(err)
	}

	var sb strings.Builder
	err = client.Stream(context.Background(), &CompletionRequest{
		Messages: []*Message{{Role: RoleUser, Content: "hi"}},
		Stop:     []string{"\nObservation:"},
	}, func(chunk string) error {
		sb.WriteString(chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if want := "Thought: add numbers\nAction: Calculator"; sb.String() != want {
		t.Errorf("streamed %q, want %q", sb.String(), want)
	}
}

func TestNewOpenAICompatibleClient_Validation(t *testing.T) {
	if _, err := NewOpenAICompatibleClient("", "http://localhost", " "); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := NewOpenAICompatibleClient("", " ", "m"); err == nil {
		t.Error("expected error for empty base URL")
	}
}

func TestNewGroqClient(t *testing.T) {
	if _, err := NewGroqClient("", "m"); err == nil {
		t.Fatal("expected error without API key")
	}

	client, err := NewGroqClient("gsk", "")
	if err != nil {
		t.Fatalf("NewGroqClient failed: %v", err)
	}
	if client.GetModelName() != "gemma2-9b-it" {
		t.Errorf("default model = %q", client.GetModelName())
	}
	groq := client.(*GroqClient)
	if groq.baseURL != "https://api.groq.com/openai/v1" {
		t.Errorf("baseURL = %q", groq.baseURL)
	}
}

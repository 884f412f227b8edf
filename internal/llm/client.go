package llm

import (
	"context"
	"strings"
)

// Chat roles understood by every client.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest represents a completion request
type CompletionRequest struct {
	Messages     []*Message `json:"messages"`
	SystemPrompt string     `json:"system_prompt,omitempty"`
	Temperature  float64    `json:"temperature"`
	MaxTokens    int        `json:"max_tokens,omitempty"`
	// Stop ends generation at the first occurrence of any sequence. Clients
	// whose API has no stop parameter truncate the text locally.
	Stop []string `json:"stop,omitempty"`
}

// Usage reports token consumption when the provider returns it.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// CompletionResponse represents a completion response
type CompletionResponse struct {
	Content    string `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      *Usage `json:"usage,omitempty"`
}

// Client is the interface for LLM clients
type Client interface {
	// CompleteWithRequest sends a completion request and returns the response
	CompleteWithRequest(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	// Complete is a simplified version for single prompt
	Complete(ctx context.Context, prompt string) (string, error)
	// Stream sends a streaming completion request
	Stream(ctx context.Context, req *CompletionRequest, callback func(chunk string) error) error
	// GetModelName returns the model name
	GetModelName() string
}

// completePrompt implements Client.Complete on top of CompleteWithRequest.
func completePrompt(ctx context.Context, c Client, prompt string) (string, error) {
	resp, err := c.CompleteWithRequest(ctx, &CompletionRequest{
		Messages: []*Message{
			{Role: RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// TruncateAtStop cuts text at the earliest stop sequence.
func TruncateAtStop(text string, stop []string) string {
	cut := len(text)
	for _, seq := range stop {
		if seq == "" {
			continue
		}
		if idx := strings.Index(text, seq); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	return text[:cut]
}

func normalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleSystem, "developer":
		return RoleSystem
	case RoleAssistant, "ai", "model":
		return RoleAssistant
	default:
		return RoleUser
	}
}

// stopStreamer forwards chunks until a stop sequence shows up. It holds back
// just enough text to catch a sequence that is split across chunks.
type stopStreamer struct {
	stop     []string
	callback func(string) error
	pending  string
	done     bool
}

func newStopStreamer(stop []string, callback func(string) error) *stopStreamer {
	return &stopStreamer{stop: stop, callback: callback}
}

func (s *stopStreamer) write(chunk string) error {
	if s.done {
		return nil
	}
	if len(s.stop) == 0 {
		return s.callback(chunk)
	}

	s.pending += chunk
	if truncated := TruncateAtStop(s.pending, s.stop); len(truncated) < len(s.pending) {
		s.done = true
		s.pending = ""
		if truncated == "" {
			return nil
		}
		return s.callback(truncated)
	}

	hold := 0
	for _, seq := range s.stop {
		if n := len(seq) - 1; n > hold {
			hold = n
		}
	}
	if len(s.pending) <= hold {
		return nil
	}
	emit := s.pending[:len(s.pending)-hold]
	s.pending = s.pending[len(s.pending)-hold:]
	return s.callback(emit)
}

func (s *stopStreamer) flush() error {
	if s.done || s.pending == "" {
		return nil
	}
	rest := s.pending
	s.pending = ""
	return s.callback(rest)
}

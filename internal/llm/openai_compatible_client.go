package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/codefionn/mathchat/internal/consts"
)

// OpenAICompatibleClient implements the Client interface for generic OpenAI-compatible APIs.
// It speaks the chat completions protocol against a custom base URL and works
// without an API key for unsecured local servers (LocalAI, LM Studio, Ollama).
type OpenAICompatibleClient struct {
	name       string
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAICompatibleClient constructs a client for an OpenAI-compatible API.
// baseURL must point to the API root (e.g. http://localhost:11434/v1).
func NewOpenAICompatibleClient(apiKey, baseURL, modelName string) (*OpenAICompatibleClient, error) {
	model := strings.TrimSpace(modelName)
	if model == "" {
		return nil, fmt.Errorf("model name is required for OpenAI-compatible provider")
	}

	trimmedBase := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedBase == "" {
		return nil, fmt.Errorf("base URL is required for OpenAI-compatible provider")
	}

	return &OpenAICompatibleClient{
		name:    "openai-compatible",
		apiKey:  strings.TrimSpace(apiKey),
		model:   model,
		baseURL: trimmedBase,
		httpClient: &http.Client{
			Timeout: consts.Timeout2Minutes,
		},
	}, nil
}

func (c *OpenAICompatibleClient) GetModelName() string {
	return c.model
}

func (c *OpenAICompatibleClient) Complete(ctx context.Context, prompt string) (string, error) {
	return completePrompt(ctx, c, prompt)
}

func (c *OpenAICompatibleClient) CompleteWithRequest(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%s completion request cannot be nil", c.name)
	}

	resp, err := c.post(ctx, c.buildChatRequest(req, false))
	if err != nil {
		return nil, fmt.Errorf("%s completion failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	var chatResp chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("%s completion failed: %w", c.name, err)
	}

	out := &CompletionResponse{StopReason: "stop"}
	if chatResp.Usage != nil {
		out.Usage = &Usage{
			InputTokens:  chatResp.Usage.PromptTokens,
			OutputTokens: chatResp.Usage.CompletionTokens,
		}
	}
	if len(chatResp.Choices) == 0 {
		return out, nil
	}

	first := chatResp.Choices[0]
	out.Content = TruncateAtStop(first.Message.Content, req.Stop)
	if reason := strings.TrimSpace(first.FinishReason); reason != "" {
		out.StopReason = reason
	}
	return out, nil
}

func (c *OpenAICompatibleClient) Stream(ctx context.Context, req *CompletionRequest, callback func(chunk string) error) error {
	if req == nil {
		return fmt.Errorf("%s completion request cannot be nil", c.name)
	}

	resp, err := c.post(ctx, c.buildChatRequest(req, true))
	if err != nil {
		return fmt.Errorf("%s stream failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	out := newStopStreamer(req.Stop, callback)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, consts.BufferSize256KB), consts.BufferSize1MB)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			break
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return fmt.Errorf("%s stream failed to decode chunk: %w", c.name, err)
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if err := out.write(choice.Delta.Content); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%s stream failed: %w", c.name, err)
	}
	return out.flush()
}

func (c *OpenAICompatibleClient) buildChatRequest(req *CompletionRequest, stream bool) *chatCompletionRequest {
	payload := &chatCompletionRequest{
		Model:     c.model,
		Messages:  make([]chatMessage, 0, len(req.Messages)+1),
		MaxTokens: req.MaxTokens,
		Stop:      req.Stop,
		Stream:    stream,
	}

	if sys := strings.TrimSpace(req.SystemPrompt); sys != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: RoleSystem, Content: sys})
	}
	for _, msg := range req.Messages {
		if msg == nil {
			continue
		}
		payload.Messages = append(payload.Messages, chatMessage{
			Role:    normalizeRole(msg.Role),
			Content: msg.Content,
		})
	}

	if req.Temperature != 0 {
		temp := req.Temperature
		payload.Temperature = &temp
	}
	return payload
}

func (c *OpenAICompatibleClient) post(ctx context.Context, payload *chatCompletionRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, consts.BufferSize64KB))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(errBody))}
	}
	return resp, nil
}

// StatusError is returned for non-200 responses from an HTTP based provider.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		FinishReason string      `json:"finish_reason"`
		Message      chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

type chatCompletionChunk struct {
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

package llm

import (
	"fmt"
	"strings"

	"github.com/codefionn/mathchat/internal/provider"
)

// GroqClient implements the Client interface for Groq's OpenAI-compatible
// chat completions API.
type GroqClient struct {
	*OpenAICompatibleClient
}

// NewGroqClient creates a Groq client. An empty model selects the provider default.
func NewGroqClient(apiKey, modelID string) (Client, error) {
	return newGroqClient(apiKey, modelID, "")
}

func newGroqClient(apiKey, modelID, baseURL string) (*GroqClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API key is required")
	}

	info, err := provider.Lookup(provider.Groq)
	if err != nil {
		return nil, err
	}

	model := strings.TrimSpace(modelID)
	if model == "" {
		model = info.DefaultModel
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = info.BaseURL
	}

	inner, err := NewOpenAICompatibleClient(apiKey, baseURL, model)
	if err != nil {
		return nil, err
	}
	inner.name = "groq"
	return &GroqClient{OpenAICompatibleClient: inner}, nil
}

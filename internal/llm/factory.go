package llm

import (
	"context"
	"fmt"
	"time"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/option"

	"github.com/codefionn/mathchat/internal/logger"
	"github.com/codefionn/mathchat/internal/provider"
)

// Options selects and configures a provider client.
type Options struct {
	Provider string
	APIKey   string
	Model    string
	// BaseURL is required for openai-compatible and overrides the endpoint of
	// the other providers.
	BaseURL string

	// Throttling applied on top of the provider client.
	MinInterval     time.Duration
	TokensPerMinute int
}

// NewClient builds the client for opts.Provider.
func NewClient(ctx context.Context, opts Options) (Client, error) {
	info, err := provider.Lookup(opts.Provider)
	if err != nil {
		return nil, err
	}

	model := opts.Model
	if model == "" {
		model = info.DefaultModel
	}

	var client Client
	switch info.Name {
	case provider.Groq:
		client, err = newGroqClient(opts.APIKey, model, opts.BaseURL)
	case provider.OpenAI:
		var reqOpts []openaioption.RequestOption
		if opts.BaseURL != "" {
			reqOpts = append(reqOpts, openaioption.WithBaseURL(opts.BaseURL))
		}
		client, err = NewOpenAIClient(opts.APIKey, model, reqOpts...)
	case provider.Anthropic:
		var reqOpts []anthropicoption.RequestOption
		if opts.BaseURL != "" {
			reqOpts = append(reqOpts, anthropicoption.WithBaseURL(opts.BaseURL))
		}
		client, err = NewAnthropicClient(opts.APIKey, model, reqOpts...)
	case provider.Google:
		client, err = NewGoogleAIClient(ctx, opts.APIKey, model, opts.BaseURL)
	case provider.OpenAICompatible:
		client, err = NewOpenAICompatibleClient(opts.APIKey, opts.BaseURL, model)
	default:
		err = fmt.Errorf("provider %s has no client", info.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", info.DisplayName, err)
	}

	logger.Debug("llm client ready: provider=%s model=%s", info.Name, client.GetModelName())
	return NewRateLimitedClient(client, opts.MinInterval, opts.TokensPerMinute), nil
}

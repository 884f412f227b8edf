package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codefionn/mathchat/internal/agent"
	"github.com/codefionn/mathchat/internal/calc"
	"github.com/codefionn/mathchat/internal/config"
	"github.com/codefionn/mathchat/internal/llm"
	"github.com/codefionn/mathchat/internal/logger"
	"github.com/codefionn/mathchat/internal/provider"
	"github.com/codefionn/mathchat/internal/securemem"
	"github.com/codefionn/mathchat/internal/session"
	"github.com/codefionn/mathchat/internal/tools"
)

// runtimeOptions selects what a subcommand needs from the runtime.
type runtimeOptions struct {
	// requireModel fails when no language model can be configured instead
	// of running calculator-only.
	requireModel bool
	streaming    bool
	openStore    bool
}

// runtime is the wired application for one subcommand.
type runtime struct {
	cfg        *config.Config
	calculator *calc.Calculator
	client     llm.Client
	agent      *agent.Agent
	counter    *llm.TokenCounter
	store      *session.Store
	keys       *securemem.Keyring
}

func newCalculator(cfg *config.Config) (*calc.Calculator, error) {
	opts, err := cfg.CalculatorOptions()
	if err != nil {
		return nil, err
	}
	return calc.New(opts), nil
}

func (a *App) buildRuntime(ctx context.Context, cfg *config.Config, opts runtimeOptions) (*runtime, error) {
	calculator, err := newCalculator(cfg)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:        cfg,
		calculator: calculator,
		keys:       securemem.NewKeyring(),
		counter:    llm.NewTokenCounter(cfg.ModelName()),
	}

	client, err := a.connectModel(ctx, cfg, rt.keys)
	switch {
	case err == nil:
		rt.client = client
	case opts.requireModel:
		rt.close()
		return nil, err
	default:
		logger.Warn("running without a language model: %v", err)
		fmt.Fprintf(a.Stderr, "Warning: %v\nOnly calculator commands are available.\n", err)
	}

	if rt.client != nil {
		registry := tools.DefaultRegistry(tools.Dependencies{
			Calculator: calculator,
			Wikipedia: tools.WikipediaOptions{
				Language:     cfg.Wikipedia.Language,
				TopK:         cfg.Wikipedia.TopK,
				MaxChars:     cfg.Wikipedia.MaxChars,
				CacheEntries: cfg.Wikipedia.CacheEntries,
				UserAgent:    cfg.Wikipedia.UserAgent,
				Timeout:      time.Duration(cfg.Wikipedia.TimeoutSeconds) * time.Second,
			},
			Client:             rt.client,
			Temperature:        cfg.Temperature,
			ReasoningMaxTokens: cfg.Agent.ReasoningMaxTokens,
		})
		rt.agent = agent.New(rt.client, registry, agent.Options{
			MaxIterations:  cfg.Agent.MaxIterations,
			RequestTimeout: time.Duration(cfg.Agent.RequestTimeoutSecs) * time.Second,
			Temperature:    cfg.Temperature,
			MaxTokens:      cfg.MaxTokens,
			Streaming:      opts.streaming,
		})
	}

	if opts.openStore && cfg.HistoryPath != "" {
		store, err := session.OpenStore(cfg.HistoryPath)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		rt.store = store
	}

	return rt, nil
}

// connectModel resolves the API key into the keyring and builds the
// provider client from it.
func (a *App) connectModel(ctx context.Context, cfg *config.Config, keys *securemem.Keyring) (llm.Client, error) {
	if err := a.ensureSecretsPassword(cfg); err != nil {
		return nil, err
	}
	configured, err := cfg.APIKey(cfg.Provider)
	if err != nil {
		return nil, err
	}
	key, err := provider.RequireAPIKey(cfg.Provider, configured)
	if err != nil {
		return nil, err
	}
	keys.Set(cfg.Provider, key)

	var client llm.Client
	build := func(apiKey string) {
		client, err = a.newClient(ctx, llm.Options{
			Provider:        cfg.Provider,
			APIKey:          apiKey,
			Model:           cfg.ModelName(),
			BaseURL:         cfg.BaseURL,
			MinInterval:     cfg.RateLimit.Interval(),
			TokensPerMinute: cfg.RateLimit.TokensPerMinute,
		})
	}

	if secret := keys.Get(cfg.Provider); secret != nil {
		if revealErr := secret.Reveal(build); revealErr != nil {
			return nil, revealErr
		}
	} else {
		build("")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Provider, err)
	}
	if client == nil {
		return nil, errors.New("no client returned")
	}
	return client, nil
}

func (rt *runtime) modelName() string {
	if rt.agent == nil {
		return ""
	}
	return rt.agent.ModelName()
}

func (rt *runtime) close() {
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			logger.Warn("failed to close history: %v", err)
		}
	}
	rt.keys.Clear()
}

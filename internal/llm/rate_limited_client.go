package llm

import (
	"context"
	"sync"
	"time"
)

const (
	defaultResponseTokenEstimate = 512
	minTokenEstimate             = 8
)

// rateLimitedClient wraps another Client and enforces request and token-based throttling.
type rateLimitedClient struct {
	delegate     Client
	interval     time.Duration
	mu           sync.Mutex
	nextAllowed  time.Time
	tokenMu      sync.Mutex
	nextToken    time.Time
	tokensPerMin int
}

// NewRateLimitedClient returns a Client that throttles calls using a minimum
// interval and a tokens per minute budget. With both disabled base is returned.
func NewRateLimitedClient(base Client, interval time.Duration, tokensPerMinute int) Client {
	if base == nil {
		return base
	}
	if interval <= 0 && tokensPerMinute <= 0 {
		return base
	}
	client := &rateLimitedClient{
		delegate: base,
		interval: interval,
	}
	if tokensPerMinute > 0 {
		client.tokensPerMin = tokensPerMinute
	}
	return client
}

func (c *rateLimitedClient) wait(ctx context.Context, tokens int) error {
	if err := c.waitInterval(ctx); err != nil {
		return err
	}
	return c.waitTokens(ctx, tokens)
}

func (c *rateLimitedClient) waitInterval(ctx context.Context) error {
	if c.interval <= 0 {
		return nil
	}

	for {
		c.mu.Lock()
		now := time.Now()
		if c.nextAllowed.IsZero() || !now.Before(c.nextAllowed) {
			c.nextAllowed = now.Add(c.interval)
			c.mu.Unlock()
			return nil
		}

		wait := time.Until(c.nextAllowed)
		c.mu.Unlock()

		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *rateLimitedClient) waitTokens(ctx context.Context, tokens int) error {
	if c.tokensPerMin <= 0 || tokens <= 0 {
		return nil
	}

	delay := tokensToDuration(tokens, c.tokensPerMin)

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	start := time.Now()
	if c.nextToken.Before(start) {
		c.nextToken = start
	}
	waitUntil := c.nextToken

	if waitUntil.After(start) {
		timer := time.NewTimer(waitUntil.Sub(start))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	c.nextToken = waitUntil.Add(delay)
	return nil
}

func (c *rateLimitedClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.wait(ctx, estimateTokensForPrompt(prompt)); err != nil {
		return "", err
	}
	return c.delegate.Complete(ctx, prompt)
}

func (c *rateLimitedClient) CompleteWithRequest(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if err := c.wait(ctx, estimateTokensForRequest(req)); err != nil {
		return nil, err
	}
	return c.delegate.CompleteWithRequest(ctx, req)
}

func (c *rateLimitedClient) Stream(ctx context.Context, req *CompletionRequest, callback func(chunk string) error) error {
	if err := c.wait(ctx, estimateTokensForRequest(req)); err != nil {
		return err
	}
	return c.delegate.Stream(ctx, req, callback)
}

func (c *rateLimitedClient) GetModelName() string {
	return c.delegate.GetModelName()
}

func estimateTokensForPrompt(prompt string) int {
	estimated := EstimateTokenCount(prompt)
	if estimated < minTokenEstimate {
		estimated = minTokenEstimate
	}
	return estimated + defaultResponseTokenEstimate
}

func estimateTokensForRequest(req *CompletionRequest) int {
	if req == nil {
		return defaultResponseTokenEstimate
	}

	tokens := EstimateTokenCount(req.SystemPrompt)
	for _, msg := range req.Messages {
		if msg != nil {
			tokens += EstimateTokenCount(msg.Content)
		}
	}
	if tokens < minTokenEstimate {
		tokens = minTokenEstimate
	}

	if req.MaxTokens > 0 {
		tokens += req.MaxTokens
	} else {
		tokens += defaultResponseTokenEstimate
	}
	return tokens
}

func tokensToDuration(tokens, tokensPerMinute int) time.Duration {
	if tokensPerMinute <= 0 || tokens <= 0 {
		return 0
	}
	return time.Duration(float64(time.Minute) * float64(tokens) / float64(tokensPerMinute))
}

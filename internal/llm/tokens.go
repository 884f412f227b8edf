package llm

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const perMessageOverhead = 4

// TokenCounter counts tokens with the tiktoken encoding of a model. Models
// without a known encoding use cl100k_base, and if that is unavailable too
// the counter falls back to a four characters per token heuristic.
type TokenCounter struct {
	encoder *tiktoken.Tiktoken
	approx  bool
}

var (
	encoderCacheMu sync.Mutex
	encoderCache   = map[string]*TokenCounter{}
)

// NewTokenCounter returns a counter for modelID. Counters are cached since
// loading an encoding is expensive.
func NewTokenCounter(modelID string) *TokenCounter {
	encoderCacheMu.Lock()
	defer encoderCacheMu.Unlock()

	if counter, ok := encoderCache[modelID]; ok {
		return counter
	}

	counter := &TokenCounter{}
	if encoder, err := tiktoken.EncodingForModel(modelID); err == nil {
		counter.encoder = encoder
	} else if fallback, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
		counter.encoder = fallback
		counter.approx = true
	} else {
		counter.approx = true
	}

	encoderCache[modelID] = counter
	return counter
}

// Approximate reports whether counts are estimates for this model.
func (t *TokenCounter) Approximate() bool {
	return t.approx
}

// Count returns the number of tokens in text.
func (t *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if t != nil && t.encoder != nil {
		return len(t.encoder.Encode(text, nil, nil))
	}
	return EstimateTokenCount(text)
}

// CountMessage returns the tokens of msg including the per-message framing.
func (t *TokenCounter) CountMessage(msg *Message) int {
	if msg == nil {
		return 0
	}
	return t.Count(msg.Content) + perMessageOverhead
}

// EstimateTokenCount returns a rough token estimate for the provided content.
func EstimateTokenCount(content string) int {
	runes := utf8.RuneCountInString(content)
	if runes == 0 {
		return 0
	}
	return (runes + 3) / 4
}

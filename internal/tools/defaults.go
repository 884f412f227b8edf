package tools

import (
	"github.com/codefionn/mathchat/internal/calc"
	"github.com/codefionn/mathchat/internal/llm"
)

// Dependencies are the runtime pieces the default tool set needs.
type Dependencies struct {
	Calculator  *calc.Calculator
	Wikipedia   WikipediaOptions
	Client      llm.Client
	Temperature float64
	// ReasoningMaxTokens caps the reasoning tool's answer.
	ReasoningMaxTokens int
}

// DefaultRegistry registers Wikipedia, Calculator and the reasoning tool in
// that order. The reasoning tool is skipped when no client is given.
func DefaultRegistry(deps Dependencies) *Registry {
	r := NewRegistry()
	r.MustRegister(NewWikipediaTool(deps.Wikipedia))
	r.MustRegister(NewCalculatorTool(deps.Calculator))
	if deps.Client != nil {
		r.MustRegister(NewReasoningTool(deps.Client, deps.Temperature, deps.ReasoningMaxTokens))
	}
	return r
}

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/codefionn/mathchat/internal/llm"
)

const mathPromptTemplate = `
You are a mathematical problem solver. Your task is to solve the given mathematical question step by step.

Instructions:
1. Read the problem carefully and identify what needs to be calculated
2. Break down complex problems into smaller steps
3. Use the Calculator tool for arithmetic operations (format: just the mathematical expression like "2+3" or "10*4")
4. Show your work clearly
5. Provide the final answer

For calculation steps, use simple expressions like:
- Addition: "5+3"
- Subtraction: "10-4"
- Multiplication: "6*7"
- Division: "20/4"
- Parentheses: "(5+3)*2"

Question: %s
Answer:
`

// MathPrompt renders the step-by-step solver prompt for question.
func MathPrompt(question string) string {
	return fmt.Sprintf(mathPromptTemplate, strings.TrimSpace(question))
}

// ReasoningTool asks the language model to work a question out step by step.
type ReasoningTool struct {
	client      llm.Client
	temperature float64
	maxTokens   int
}

// NewReasoningTool creates the reasoning tool. maxTokens <= 0 leaves the
// provider default.
func NewReasoningTool(client llm.Client, temperature float64, maxTokens int) *ReasoningTool {
	return &ReasoningTool{client: client, temperature: temperature, maxTokens: maxTokens}
}

func (t *ReasoningTool) Name() string {
	return ToolNameReasoning
}

func (t *ReasoningTool) Description() string {
	return "A tool for answering logic-based and reasoning questions with step-by-step mathematical solutions."
}

func (t *ReasoningTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"question": map[string]interface{}{
				"type":        "string",
				"description": "The word problem or reasoning question to solve.",
			},
		},
		"required": []string{"question"},
	}
}

func (t *ReasoningTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	if t.client == nil {
		return &ToolResult{Error: "reasoning tool has no language model configured"}
	}
	question := strings.TrimSpace(GetStringParam(params, "question", ""))
	if question == "" {
		return &ToolResult{Error: "question is required"}
	}

	resp, err := t.client.CompleteWithRequest(ctx, &llm.CompletionRequest{
		Messages: []*llm.Message{
			{Role: llm.RoleUser, Content: MathPrompt(question)},
		},
		Temperature: t.temperature,
		MaxTokens:   t.maxTokens,
	})
	if err != nil {
		return &ToolResult{Error: fmt.Sprintf("reasoning request failed: %v", err)}
	}

	details := map[string]interface{}{"model": t.client.GetModelName()}
	if resp.Usage != nil {
		details["input_tokens"] = resp.Usage.InputTokens
		details["output_tokens"] = resp.Usage.OutputTokens
	}
	return &ToolResult{
		Result:            strings.TrimSpace(resp.Content),
		ExecutionMetadata: &ExecutionMetadata{Details: details},
	}
}

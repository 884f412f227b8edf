package tools

import (
	"context"
	"strings"

	"github.com/codefionn/mathchat/internal/calc"
)

// CalculatorTool evaluates arithmetic expressions with the sandboxed calculator.
// A rejected expression is not a tool failure: the "Error: ..." text is the
// result so the model can correct its input.
type CalculatorTool struct {
	calculator *calc.Calculator
}

// NewCalculatorTool wraps calculator; nil uses the default options.
func NewCalculatorTool(calculator *calc.Calculator) *CalculatorTool {
	if calculator == nil {
		calculator = calc.New(calc.Options{})
	}
	return &CalculatorTool{calculator: calculator}
}

func (t *CalculatorTool) Name() string {
	return ToolNameCalculator
}

func (t *CalculatorTool) Description() string {
	return "A tool for answering math related questions. Only input mathematical expressions like '2+2', '10*5', '(4+6)/2', etc."
}

func (t *CalculatorTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"expression": map[string]interface{}{
				"type":        "string",
				"description": "Arithmetic expression using numbers, + - * / ** ^, parentheses and functions like sqrt(16).",
			},
		},
		"required": []string{"expression"},
	}
}

func (t *CalculatorTool) Execute(ctx context.Context, params map[string]interface{}) *ToolResult {
	expression := CleanExpression(GetStringParam(params, "expression", ""))
	res := t.calculator.Evaluate(expression)

	meta := &ExecutionMetadata{
		Details: map[string]interface{}{"expression": expression},
	}
	if res.Err != nil {
		meta.Details["error_kind"] = res.Err.Kind.String()
	}
	return &ToolResult{Result: res.String(), ExecutionMetadata: meta}
}

// CleanExpression strips the quoting models wrap around action inputs:
// backticks, code fences, matching quotes and a trailing "=".
func CleanExpression(input string) string {
	s := strings.TrimSpace(input)
	s = strings.TrimPrefix(s, "```python")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'' || first == '`') && first == last {
			s = strings.TrimSpace(s[1 : len(s)-1])
			continue
		}
		break
	}

	s = strings.TrimSpace(strings.TrimSuffix(s, "="))
	return s
}

// Package calc evaluates untrusted arithmetic expressions without a general
// purpose interpreter. Input passes a character gate, a small recursive
// descent parser and an evaluator that only consults closed allow-list tables.
package calc

import (
	"fmt"
	"strings"
)

// Options configures a Calculator. Zero values select the defaults.
type Options struct {
	Mode      Mode
	MaxLength int
	MaxDepth  int
}

// Calculator runs the validate, parse, evaluate pipeline. It is immutable
// after construction and safe for concurrent use.
type Calculator struct {
	opts      Options
	evaluator *Evaluator
}

// New creates a Calculator.
func New(opts Options) *Calculator {
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultMaxLength
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Calculator{
		opts: opts,
		// Every node consumes at least one input byte, so the length limit
		// also bounds the depth of any tree the parser can produce.
		evaluator: NewEvaluator(opts.MaxLength),
	}
}

var defaultCalculator = New(Options{})

// Evaluate runs expr through the default calculator.
func Evaluate(expr string) Result {
	return defaultCalculator.Evaluate(expr)
}

// Options returns the effective configuration.
func (c *Calculator) Options() Options {
	return c.opts
}

// Evaluate never panics: every failure, including a recovered panic, comes
// back as a Result carrying a *Error.
func (c *Calculator) Evaluate(expr string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: domainf("%v", r)}
		}
	}()

	expr = strings.TrimSpace(expr)
	if err := Validate(expr, c.opts.Mode); err != nil {
		return Result{Err: asError(err)}
	}

	node, err := ParseWithLimits(expr, c.opts.MaxLength, c.opts.MaxDepth)
	if err != nil {
		return Result{Err: asError(err)}
	}

	v, err := c.evaluator.Eval(node)
	if err != nil {
		return Result{Err: asError(err)}
	}
	return Result{Value: v}
}

// Format is Evaluate followed by the boundary formatting.
func (c *Calculator) Format(expr string) string {
	return c.Evaluate(expr).String()
}

var _ fmt.Stringer = Result{}

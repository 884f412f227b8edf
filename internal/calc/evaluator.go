package calc

import (
	"math"
)

// Evaluator reduces syntax trees to numbers using only the allow-list tables.
// It holds no mutable state and may be shared between goroutines.
type Evaluator struct {
	maxDepth int
}

// NewEvaluator returns an evaluator that refuses trees deeper than maxDepth.
// A non-positive maxDepth disables the check.
func NewEvaluator(maxDepth int) *Evaluator {
	return &Evaluator{maxDepth: maxDepth}
}

// Eval evaluates a tree with a depth limit large enough for any tree the
// parser produces under the default length limit.
func Eval(node Node) (float64, error) {
	return NewEvaluator(DefaultMaxLength).Eval(node)
}

// Eval reduces node to a finite number or returns a *Error.
func (e *Evaluator) Eval(node Node) (float64, error) {
	v, err := e.eval(node, 1)
	if err != nil {
		return 0, err
	}
	return v, nil
}

func (e *Evaluator) eval(node Node, depth int) (float64, error) {
	if e.maxDepth > 0 && depth > e.maxDepth {
		return 0, parseErrorf("expression nested too deeply (limit %d)", e.maxDepth)
	}

	switch n := node.(type) {
	case *Number:
		return checkFinite(n.Value)

	case *Binary:
		left, err := e.eval(n.Left, depth+1)
		if err != nil {
			return 0, err
		}
		right, err := e.eval(n.Right, depth+1)
		if err != nil {
			return 0, err
		}
		op, ok := binaryOps[n.Op]
		if !ok {
			return 0, unsupportedf("Unsupported operator: %s", n.Op)
		}
		v, err := op(left, right)
		if err != nil {
			return 0, err
		}
		return checkFinite(v)

	case *Unary:
		operand, err := e.eval(n.Operand, depth+1)
		if err != nil {
			return 0, err
		}
		op, ok := unaryOps[n.Op]
		if !ok {
			return 0, unsupportedf("Unsupported unary operator: %s", n.Op)
		}
		v, err := op(operand)
		if err != nil {
			return 0, err
		}
		return checkFinite(v)

	case *Call:
		args := make([]float64, len(n.Args))
		for i, arg := range n.Args {
			v, err := e.eval(arg, depth+1)
			if err != nil {
				return 0, err
			}
			args[i] = v
		}
		fn, ok := functions[n.Name]
		if !ok {
			return 0, unsupportedf("Unsupported function: %s", n.Name)
		}
		v, err := fn(args)
		if err != nil {
			return 0, asError(err)
		}
		return checkFinite(v)

	case *Name:
		if v, ok := constants[n.Ident]; ok {
			return v, nil
		}
		if _, ok := functions[n.Ident]; ok {
			return 0, unsupportedf("Function %s must be called with arguments", n.Ident)
		}
		return 0, unsupportedf("Unsupported variable: %s", n.Ident)

	case nil:
		return 0, unsupportedf("Unsupported expression element: <nil>")

	default:
		return 0, unsupportedf("Unsupported expression element: %s", node.Kind())
	}
}

// checkFinite enforces the domain policy: NaN and infinities are failures,
// never values.
func checkFinite(v float64) (float64, error) {
	switch {
	case math.IsNaN(v):
		return 0, domainf(msgMathDomain)
	case math.IsInf(v, 0):
		return 0, domainf(msgOutOfRange)
	}
	return v, nil
}

package calc

import (
	"strconv"
	"strings"
)

// Node is one element of a parsed expression tree. Trees are strictly
// tree-shaped: the parser produces them and the evaluator consumes them once.
type Node interface {
	// Kind names the node type in error messages.
	Kind() string
	// String renders the node fully parenthesized.
	String() string
}

// Number is a numeric literal.
type Number struct {
	Value float64
	Text  string
}

// Binary is an infix operation. Op is one of + - * / ** or any other symbol
// the parser recognized; the evaluator decides whether it is allowed.
type Binary struct {
	Op    string
	Left  Node
	Right Node
}

// Unary is a prefix sign operation.
type Unary struct {
	Op      string
	Operand Node
}

// Call is a function call with an ordered argument list.
type Call struct {
	Name string
	Args []Node
}

// Name is a bare identifier reference.
type Name struct {
	Ident string
}

func (*Number) Kind() string { return "number" }
func (*Binary) Kind() string { return "binary operation" }
func (*Unary) Kind() string  { return "unary operation" }
func (*Call) Kind() string   { return "function call" }
func (*Name) Kind() string   { return "name" }

func (n *Number) String() string {
	if n.Text != "" {
		return n.Text
	}
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

func (n *Binary) String() string {
	return "(" + nodeString(n.Left) + " " + n.Op + " " + nodeString(n.Right) + ")"
}

func (n *Unary) String() string {
	return "(" + n.Op + nodeString(n.Operand) + ")"
}

func (n *Call) String() string {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = nodeString(a)
	}
	return n.Name + "(" + strings.Join(args, ", ") + ")"
}

func (n *Name) String() string {
	return n.Ident
}

func nodeString(n Node) string {
	if n == nil {
		return "<nil>"
	}
	return n.String()
}

package calc

import (
	"errors"
	"strconv"
)

const (
	// DefaultMaxLength bounds the expression size accepted by the parser.
	DefaultMaxLength = 1024
	// DefaultMaxDepth bounds nesting of parentheses, signs, powers and calls.
	DefaultMaxDepth = 64
)

// Grammar, lowest to highest precedence:
//
//	expr  := term (("+" | "-") term)*
//	term  := unary (("*" | "/" | "//") unary)*
//	unary := ("+" | "-") unary | power
//	power := atom ["**" unary]
//	atom  := number | ident ["(" expr ("," expr)* ")"] | "(" expr ")"
type parser struct {
	toks     []token
	pos      int
	depth    int
	maxDepth int
}

// Parse builds a syntax tree with the default limits.
func Parse(expr string) (Node, error) {
	return ParseWithLimits(expr, DefaultMaxLength, DefaultMaxDepth)
}

// ParseWithLimits builds a syntax tree from expr. A non-positive limit
// disables that check. Parsing performs no allow-list lookups, so any
// syntactically valid formula produces a tree.
func ParseWithLimits(expr string, maxLength, maxDepth int) (Node, error) {
	if maxLength > 0 && len(expr) > maxLength {
		return nil, parseErrorf("expression exceeds maximum length of %d characters", maxLength)
	}

	toks, err := lex(expr)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks, maxDepth: maxDepth}
	if p.peek().kind == tokEOF {
		return nil, parseErrorf("empty expression")
	}

	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	switch t := p.peek(); t.kind {
	case tokEOF:
		return node, nil
	case tokRParen:
		return nil, parseErrorf("unmatched ')' at position %d", t.pos)
	default:
		return nil, unexpected(t)
	}
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) enter(t token) error {
	p.depth++
	if p.maxDepth > 0 && p.depth > p.maxDepth {
		return parseErrorf("expression nested too deeply (limit %d) at position %d", p.maxDepth, t.pos)
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) parseExpr() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokPlus && t.kind != tokMinus {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: t.text, Left: left, Right: right}
	}
}

func (p *parser) parseTerm() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokStar && t.kind != tokSlash && t.kind != tokFloorDiv {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: t.text, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (Node, error) {
	t := p.peek()
	if t.kind != tokPlus && t.kind != tokMinus {
		return p.parsePower()
	}
	p.next()

	if err := p.enter(t); err != nil {
		return nil, err
	}
	defer p.leave()

	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &Unary{Op: t.text, Operand: operand}, nil
}

func (p *parser) parsePower() (Node, error) {
	base, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind != tokPow {
		return base, nil
	}
	p.next()

	if err := p.enter(t); err != nil {
		return nil, err
	}
	defer p.leave()

	// Right operand is a unary so that 2**-1 parses and 2**3**2 groups right.
	exponent, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &Binary{Op: powerOp, Left: base, Right: exponent}, nil
}

func (p *parser) parseAtom() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil, parseErrorf("invalid number %q at position %d", t.text, t.pos)
		}
		// Out-of-range literals keep their infinite value; the evaluator rejects them.
		return &Number{Value: v, Text: t.text}, nil

	case tokIdent:
		if p.peek().kind != tokLParen {
			return &Name{Ident: t.text}, nil
		}
		open := p.next()
		if err := p.enter(open); err != nil {
			return nil, err
		}
		defer p.leave()
		return p.parseCall(t, open)

	case tokLParen:
		if err := p.enter(t); err != nil {
			return nil, err
		}
		defer p.leave()

		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectClose(t); err != nil {
			return nil, err
		}
		return inner, nil

	case tokEOF:
		return nil, parseErrorf("unexpected end of expression")

	default:
		return nil, unexpected(t)
	}
}

func (p *parser) parseCall(name, open token) (Node, error) {
	if p.peek().kind == tokRParen {
		return nil, parseErrorf("%s() called without arguments at position %d", name.text, name.pos)
	}

	var args []Node
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}

	if err := p.expectClose(open); err != nil {
		return nil, err
	}
	return &Call{Name: name.text, Args: args}, nil
}

func (p *parser) expectClose(open token) error {
	switch t := p.peek(); t.kind {
	case tokRParen:
		p.next()
		return nil
	case tokEOF:
		return parseErrorf("'(' at position %d was never closed", open.pos)
	default:
		return unexpected(t)
	}
}

func unexpected(t token) *Error {
	if t.kind == tokEOF {
		return parseErrorf("unexpected end of expression")
	}
	return parseErrorf("invalid syntax: unexpected %q at position %d", t.text, t.pos)
}

package calc

import (
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokFloorDiv
	tokPow
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// powerOp is the internal spelling of exponentiation. The caret is
// normalized to it while lexing.
const powerOp = "**"

// lex splits expr into tokens. Positions are byte offsets into expr.
func lex(expr string) ([]token, error) {
	toks := make([]token, 0, len(expr)/2+1)
	for i := 0; i < len(expr); {
		r, size := utf8.DecodeRuneInString(expr[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case isDigit(r) || r == '.':
			start := i
			i = scanDigits(expr, i)
			if i < len(expr) && expr[i] == '.' {
				i = scanDigits(expr, i+1)
			}
			text := expr[start:i]
			if text == "." {
				return nil, parseErrorf("invalid syntax: unexpected \".\" at position %d", start)
			}
			toks = append(toks, token{kind: tokNumber, text: text, pos: start})
		case isLetter(r):
			start := i
			for i < len(expr) && isLetter(rune(expr[i])) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: expr[start:i], pos: start})
		case r == '*':
			if i+1 < len(expr) && expr[i+1] == '*' {
				toks = append(toks, token{kind: tokPow, text: powerOp, pos: i})
				i += 2
				continue
			}
			toks = append(toks, token{kind: tokStar, text: "*", pos: i})
			i++
		case r == '^':
			toks = append(toks, token{kind: tokPow, text: powerOp, pos: i})
			i++
		case r == '/':
			if i+1 < len(expr) && expr[i+1] == '/' {
				toks = append(toks, token{kind: tokFloorDiv, text: "//", pos: i})
				i += 2
				continue
			}
			toks = append(toks, token{kind: tokSlash, text: "/", pos: i})
			i++
		case r == '+':
			toks = append(toks, token{kind: tokPlus, text: "+", pos: i})
			i++
		case r == '-':
			toks = append(toks, token{kind: tokMinus, text: "-", pos: i})
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++
		default:
			return nil, parseErrorf("invalid character %q at position %d", r, i)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(expr)}), nil
}

func scanDigits(s string, i int) int {
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i
}

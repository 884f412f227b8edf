package calc

import (
	"fmt"
	"strings"
	"unicode"
)

// Mode selects which characters the validator admits.
type Mode int

const (
	// ModeFunctions admits the strict set plus commas and letter runs that
	// spell an allow-listed function or constant.
	ModeFunctions Mode = iota
	// ModeStrict admits digits, whitespace and the characters + - * / ( ) . ^ only.
	ModeStrict
)

func (m Mode) String() string {
	switch m {
	case ModeStrict:
		return "strict"
	case ModeFunctions:
		return "functions"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "functions":
		return ModeFunctions, nil
	case "strict":
		return ModeStrict, nil
	default:
		return ModeFunctions, fmt.Errorf("unknown calculator mode %q (expected \"functions\" or \"strict\")", s)
	}
}

func isOperatorChar(r rune) bool {
	switch r {
	case '+', '-', '*', '/', '(', ')', '.', '^':
		return true
	}
	return false
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// Validate checks expr against the character allow-list. It does not look at
// the grammar: ")(" is accepted here and rejected by the parser. The caller is
// expected to pass trimmed input; an empty expression is rejected.
func Validate(expr string, mode Mode) error {
	if expr == "" {
		return invalidCharacters()
	}

	runes := []rune(expr)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case isDigit(r), unicode.IsSpace(r), isOperatorChar(r):
			continue
		case mode == ModeFunctions && r == ',':
			continue
		case mode == ModeFunctions && isLetter(r):
			start := i
			for i+1 < len(runes) && isLetter(runes[i+1]) {
				i++
			}
			if !IsAllowedName(string(runes[start : i+1])) {
				return invalidCharacters()
			}
		default:
			return invalidCharacters()
		}
	}
	return nil
}

func invalidCharacters() *Error {
	return &Error{Kind: KindInvalidCharacters, Msg: invalidCharactersMessage}
}

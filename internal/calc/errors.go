package calc

import (
	"errors"
	"fmt"
)

// Kind classifies an evaluation failure.
type Kind int

const (
	// KindInvalidCharacters means the input failed the character allow-list gate.
	KindInvalidCharacters Kind = iota + 1
	// KindParse covers grammar violations and exceeded size limits.
	KindParse
	// KindUnsupported means the tree references an operator, function or name
	// that is not in the allow-list tables.
	KindUnsupported
	// KindDomain covers failures raised while applying an allowed operator or
	// function: division by zero, out-of-domain arguments, overflow and
	// invocation with the wrong number of arguments.
	KindDomain
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCharacters:
		return "invalid_characters"
	case KindParse:
		return "parse"
	case KindUnsupported:
		return "unsupported"
	case KindDomain:
		return "domain"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the typed failure produced by every stage of the calculator.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func parseErrorf(format string, args ...interface{}) *Error {
	return newError(KindParse, format, args...)
}

func unsupportedf(format string, args ...interface{}) *Error {
	return newError(KindUnsupported, format, args...)
}

func domainf(format string, args ...interface{}) *Error {
	return newError(KindDomain, format, args...)
}

// asError converts any error into a *Error. Errors that did not originate in
// this package are classified as domain failures.
func asError(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return &Error{Kind: KindDomain, Msg: err.Error()}
}

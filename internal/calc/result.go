package calc

import (
	"math"
	"strconv"
)

// ErrorPrefix starts every rendered failure.
const ErrorPrefix = "Error: "

const (
	resultPrefix             = "Result: "
	invalidCharactersMessage = "Expression contains unsupported characters or operations"
	evaluationFailurePrefix  = "Could not evaluate expression - "

	// Integral values below this magnitude print without a fractional part.
	maxPlainIntegral = 1e15
)

// Result is the outcome of one evaluation: a value or a typed error, never both.
type Result struct {
	Value float64
	Err   *Error
}

// OK reports whether the evaluation succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// String renders the result as the text handed to callers outside this
// package: "Result: <value>" or "Error: <description>".
func (r Result) String() string {
	if r.Err == nil {
		return resultPrefix + FormatNumber(r.Value)
	}
	if r.Err.Kind == KindInvalidCharacters {
		return ErrorPrefix + invalidCharactersMessage
	}
	return ErrorPrefix + evaluationFailurePrefix + r.Err.Msg
}

// FormatNumber prints integral values without decimals and everything else in
// the shortest representation that round-trips.
func FormatNumber(v float64) string {
	if v == 0 {
		return "0"
	}
	if v == math.Trunc(v) && math.Abs(v) < maxPlainIntegral {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

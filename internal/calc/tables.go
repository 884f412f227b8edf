package calc

import (
	"math"
	"sort"
)

type binaryFunc func(a, b float64) (float64, error)

type unaryFunc func(a float64) (float64, error)

type function func(args []float64) (float64, error)

// Allow-list tables. They are populated at package initialization and only
// read afterwards, so concurrent evaluations need no locking.
var (
	binaryOps = map[string]binaryFunc{
		"+":     func(a, b float64) (float64, error) { return a + b, nil },
		"-":     func(a, b float64) (float64, error) { return a - b, nil },
		"*":     func(a, b float64) (float64, error) { return a * b, nil },
		"/":     divide,
		powerOp: power,
	}

	unaryOps = map[string]unaryFunc{
		"-": func(a float64) (float64, error) { return -a, nil },
		"+": func(a float64) (float64, error) { return a, nil },
	}

	functions = map[string]function{
		"abs":   oneArg("abs", func(x float64) (float64, error) { return math.Abs(x), nil }),
		"round": roundFunc,
		"min":   extremum("min", math.Min),
		"max":   extremum("max", math.Max),
		"sum":   sumFunc,
		"sqrt":  oneArg("sqrt", sqrt),
		"sin":   oneArg("sin", func(x float64) (float64, error) { return math.Sin(x), nil }),
		"cos":   oneArg("cos", func(x float64) (float64, error) { return math.Cos(x), nil }),
		"tan":   oneArg("tan", func(x float64) (float64, error) { return math.Tan(x), nil }),
		"log":   logFunc,
		"exp":   oneArg("exp", exp),
	}

	constants = map[string]float64{
		"pi": math.Pi,
		"e":  math.E,
	}
)

// IsAllowedName reports whether name is an allow-listed function or constant.
func IsAllowedName(name string) bool {
	if _, ok := functions[name]; ok {
		return true
	}
	_, ok := constants[name]
	return ok
}

// Functions returns the allow-listed function names in sorted order.
func Functions() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Constants returns the allow-listed constant names in sorted order.
func Constants() []string {
	names := make([]string, 0, len(constants))
	for name := range constants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const (
	msgDivisionByZero = "float division by zero"
	msgMathDomain     = "math domain error"
	msgMathRange      = "math range error"
	msgOutOfRange     = "numerical result out of range"
)

func divide(a, b float64) (float64, error) {
	if b == 0 {
		return 0, domainf(msgDivisionByZero)
	}
	return a / b, nil
}

func power(base, exponent float64) (float64, error) {
	if base == 0 && exponent < 0 {
		return 0, domainf("0.0 cannot be raised to a negative power")
	}
	if base < 0 && exponent != math.Trunc(exponent) {
		return 0, domainf("negative number cannot be raised to a fractional power")
	}
	return math.Pow(base, exponent), nil
}

func sqrt(x float64) (float64, error) {
	if x < 0 {
		return 0, domainf(msgMathDomain)
	}
	return math.Sqrt(x), nil
}

func exp(x float64) (float64, error) {
	v := math.Exp(x)
	if math.IsInf(v, 0) {
		return 0, domainf(msgMathRange)
	}
	return v, nil
}

func oneArg(name string, fn func(float64) (float64, error)) function {
	return func(args []float64) (float64, error) {
		if len(args) != 1 {
			return 0, domainf("%s() takes exactly one argument (%d given)", name, len(args))
		}
		return fn(args[0])
	}
}

func extremum(name string, pick func(a, b float64) float64) function {
	return func(args []float64) (float64, error) {
		if len(args) == 0 {
			return 0, domainf("%s expected at least 1 argument, got 0", name)
		}
		v := args[0]
		for _, a := range args[1:] {
			v = pick(v, a)
		}
		return v, nil
	}
}

func sumFunc(args []float64) (float64, error) {
	if len(args) == 0 {
		return 0, domainf("sum() takes at least 1 argument (0 given)")
	}
	var total float64
	for _, a := range args {
		total += a
	}
	return total, nil
}

// roundFunc rounds half to even. With a second argument it rounds to that
// many decimal digits; negative counts round to tens, hundreds and so on.
func roundFunc(args []float64) (float64, error) {
	switch len(args) {
	case 1:
		return math.RoundToEven(args[0]), nil
	case 2:
		x, digits := args[0], args[1]
		if digits != math.Trunc(digits) {
			return 0, domainf("round() ndigits must be an integer")
		}
		if digits > 22 || digits < -22 {
			if digits > 0 {
				return x, nil
			}
			return 0, nil
		}
		if digits < 0 {
			scale := math.Pow(10, -digits)
			return math.RoundToEven(x/scale) * scale, nil
		}
		scale := math.Pow(10, digits)
		scaled := x * scale
		if math.IsInf(scaled, 0) {
			return x, nil
		}
		return math.RoundToEven(scaled) / scale, nil
	default:
		return 0, domainf("round() takes at most 2 arguments (%d given)", len(args))
	}
}

func logFunc(args []float64) (float64, error) {
	switch len(args) {
	case 1:
		if args[0] <= 0 {
			return 0, domainf(msgMathDomain)
		}
		return math.Log(args[0]), nil
	case 2:
		x, base := args[0], args[1]
		if x <= 0 || base <= 0 {
			return 0, domainf(msgMathDomain)
		}
		if base == 1 {
			return 0, domainf(msgDivisionByZero)
		}
		return math.Log(x) / math.Log(base), nil
	default:
		return 0, domainf("log expected 1 or 2 arguments, got %d", len(args))
	}
}

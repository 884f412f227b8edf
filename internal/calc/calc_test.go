package calc

import (
	"strings"
	"sync"
	"testing"
)

func TestEvaluateBoundaryStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2^10", "Result: 1024"},
		{"(5+3)*2", "Result: 16"},
		{"sqrt(16)", "Result: 4"},
		{"10/4", "Result: 2.5"},
		{"pi", "Result: 3.141592653589793"},
		{"-0", "Result: 0"},
		{"2^100", "Result: 1.2676506002282294e+30"},
		{"  7 - 10  ", "Result: -3"},
		{"2+)(", `Error: Could not evaluate expression - invalid syntax: unexpected ")" at position 2`},
		{"import os", "Error: Expression contains unsupported characters or operations"},
		{"", "Error: Expression contains unsupported characters or operations"},
		{"   ", "Error: Expression contains unsupported characters or operations"},
		{"1/0", "Error: Could not evaluate expression - float division by zero"},
		{"sqrt(-1)", "Error: Could not evaluate expression - math domain error"},
		{"7//2", "Error: Could not evaluate expression - Unsupported operator: //"},
		{"sqrt", "Error: Could not evaluate expression - Function sqrt must be called with arguments"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Evaluate(tt.input).String(); got != tt.want {
				t.Errorf("Evaluate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEvaluateStrictMode(t *testing.T) {
	c := New(Options{Mode: ModeStrict})

	if got := c.Format("2^10"); got != "Result: 1024" {
		t.Errorf("strict 2^10 = %q", got)
	}
	if got := c.Format("sqrt(16)"); got != "Error: Expression contains unsupported characters or operations" {
		t.Errorf("strict sqrt(16) = %q", got)
	}
}

func TestEvaluateInvalidCharactersSkipParser(t *testing.T) {
	// The nesting here would fail the parser; the gate must answer first.
	expr := strings.Repeat("(", 500) + "os"
	res := New(Options{Mode: ModeStrict}).Evaluate(expr)
	if res.OK() || res.Err.Kind != KindInvalidCharacters {
		t.Fatalf("expected invalid characters, got %v", res)
	}
}

func TestEvaluateLimits(t *testing.T) {
	c := New(Options{MaxLength: 16, MaxDepth: 2})

	if res := c.Evaluate("1+1+1+1+1+1+1+1+1"); res.OK() || res.Err.Kind != KindParse {
		t.Errorf("long expression: %v", res)
	}
	if res := c.Evaluate("((1))"); !res.OK() {
		t.Errorf("depth 2 rejected: %v", res)
	}
	if res := c.Evaluate("(((1)))"); res.OK() || res.Err.Kind != KindParse {
		t.Errorf("depth 3 accepted: %v", res)
	}

	opts := New(Options{}).Options()
	if opts.MaxLength != DefaultMaxLength || opts.MaxDepth != DefaultMaxDepth || opts.Mode != ModeFunctions {
		t.Errorf("default options = %+v", opts)
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	inputs := []string{"2^10", "sqrt(2)", "1/0", "2+)(", "import os", "max(1, 2, 3) * pi"}
	for _, in := range inputs {
		first := Evaluate(in)
		second := Evaluate(in)
		if first.String() != second.String() {
			t.Errorf("Evaluate(%q) not idempotent: %q vs %q", in, first, second)
		}
	}
}

func TestEvaluateConcurrent(t *testing.T) {
	c := New(Options{})
	want := c.Format("round(sqrt(2) * 100, 3)")

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := c.Format("round(sqrt(2) * 100, 3)"); got != want {
				errs <- got
			}
		}()
	}
	wg.Wait()
	close(errs)

	for got := range errs {
		t.Errorf("concurrent evaluation = %q, want %q", got, want)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{4, "4"},
		{-3, "-3"},
		{0.5, "0.5"},
		{1e15, "1e+15"},
		{999999999999999, "999999999999999"},
		{1e-7, "1e-07"},
		{1.5e300, "1.5e+300"},
	}

	for _, tt := range tests {
		if got := FormatNumber(tt.in); got != tt.want {
			t.Errorf("FormatNumber(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResultStringKinds(t *testing.T) {
	tests := []struct {
		res  Result
		want string
	}{
		{Result{Value: 2}, "Result: 2"},
		{Result{Err: &Error{Kind: KindInvalidCharacters, Msg: "anything"}}, "Error: Expression contains unsupported characters or operations"},
		{Result{Err: &Error{Kind: KindParse, Msg: "bad"}}, "Error: Could not evaluate expression - bad"},
		{Result{Err: &Error{Kind: KindUnsupported, Msg: "Unsupported function: f"}}, "Error: Could not evaluate expression - Unsupported function: f"},
		{Result{Err: &Error{Kind: KindDomain, Msg: "math domain error"}}, "Error: Could not evaluate expression - math domain error"},
	}

	for _, tt := range tests {
		if got := tt.res.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

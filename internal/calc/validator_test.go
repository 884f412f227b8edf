package calc

import (
	"errors"
	"testing"
)

func TestValidateStrict(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"digits and operators", "(5+3)*2", true},
		{"caret", "2^10", true},
		{"decimal point", "1.5 / .5", true},
		{"tabs and newlines", "1\t+\n2", true},
		{"grammar is not checked", ")(", true},
		{"letters rejected", "sqrt(16)", false},
		{"comma rejected", "1,2", false},
		{"identifier smuggling", "import os", false},
		{"attribute access", "().__class__", false},
		{"statement separator", "1;2", false},
		{"modulo", "7%2", false},
		{"empty", "", false},
		{"unicode digit", "٣", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.input, ModeStrict)
			if tt.ok && err != nil {
				t.Fatalf("Validate(%q) returned error: %v", tt.input, err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatalf("Validate(%q) accepted input", tt.input)
				}
				var ce *Error
				if !errors.As(err, &ce) || ce.Kind != KindInvalidCharacters {
					t.Fatalf("Validate(%q) error = %v, want invalid characters", tt.input, err)
				}
			}
		})
	}
}

func TestValidateFunctions(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"plain arithmetic", "2^10", true},
		{"function call", "sqrt(16)", true},
		{"several arguments", "max(1, 2, 3)", true},
		{"constants", "2*pi + e", true},
		{"bare function name", "sqrt", true},
		{"import statement", "import os", false},
		{"unknown function", "foo(1)", false},
		{"prefix of allowed name", "sq(4)", false},
		{"allowed name with suffix", "sqrtx(4)", false},
		{"upper case", "SQRT(4)", false},
		{"underscore", "__import__", false},
		{"quote", "'a'", false},
		{"brackets", "[1]", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.input, ModeFunctions)
			if (err == nil) != tt.ok {
				t.Fatalf("Validate(%q) error = %v, want ok=%v", tt.input, err, tt.ok)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"", ModeFunctions, false},
		{"functions", ModeFunctions, false},
		{" Strict ", ModeStrict, false},
		{"lenient", ModeFunctions, true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

package llm

import (
	"errors"
	"strings"
	"testing"
)

func TestTruncateAtStop(t *testing.T) {
	tests := []struct {
		text string
		stop []string
		want string
	}{
		{"no stops", nil, "no stops"},
		{"a\nObservation: b", []string{"\nObservation:"}, "a"},
		{"x STOP y END", []string{"END", "STOP"}, "x "},
		{"unchanged", []string{"", "missing"}, "unchanged"},
	}
	for _, tt := range tests {
		if got := TruncateAtStop(tt.text, tt.stop); got != tt.want {
			t.Errorf("TruncateAtStop(%q, %v) = %q, want %q", tt.text, tt.stop, got, tt.want)
		}
	}
}

func TestStopStreamerWithoutStopsPassesThrough(t *testing.T) {
	var chunks []string
	s := newStopStreamer(nil, func(c string) error {
		chunks = append(chunks, c)
		return nil
	})
	for _, c := range []string{"a", "b", "c"} {
		if err := s.write(c); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.flush(); err != nil {
		t.Fatal(err)
	}
	if strings.Join(chunks, "|") != "a|b|c" {
		t.Errorf("chunks = %v", chunks)
	}
}

func TestStopStreamerFlushesTail(t *testing.T) {
	var sb strings.Builder
	s := newStopStreamer([]string{"STOP"}, func(c string) error {
		sb.WriteString(c)
		return nil
	})
	for _, c := range []string{"hel", "lo ST", "x"} {
		if err := s.write(c); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.flush(); err != nil {
		t.Fatal(err)
	}
	if sb.String() != "hello STx" {
		t.Errorf("streamed %q", sb.String())
	}
}

func TestStopStreamerPropagatesCallbackError(t *testing.T) {
	boom := errors.New("boom")
	s := newStopStreamer(nil, func(string) error { return boom })
	if err := s.write("x"); !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
}

func TestNormalizeRole(t *testing.T) {
	tests := map[string]string{
		"system":    RoleSystem,
		"developer": RoleSystem,
		"assistant": RoleAssistant,
		"AI":        RoleAssistant,
		"model":     RoleAssistant,
		"human":     RoleUser,
		"":          RoleUser,
	}
	for in, want := range tests {
		if got := normalizeRole(in); got != want {
			t.Errorf("normalizeRole(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTokenCounter(t *testing.T) {
	counter := NewTokenCounter("gpt-4o-mini")
	if counter.Count("") != 0 {
		t.Error("empty text should have zero tokens")
	}
	short := counter.Count("2 + 2")
	long := counter.Count(strings.Repeat("the quick brown fox ", 50))
	if short <= 0 || long <= short {
		t.Errorf("unexpected counts short=%d long=%d", short, long)
	}
	if got := counter.CountMessage(&Message{Content: "2 + 2"}); got != short+perMessageOverhead {
		t.Errorf("CountMessage = %d, want %d", got, short+perMessageOverhead)
	}
	if NewTokenCounter("gpt-4o-mini") != counter {
		t.Error("expected cached counter")
	}
}

func TestEstimateTokenCount(t *testing.T) {
	if EstimateTokenCount("") != 0 {
		t.Error("empty text")
	}
	if got := EstimateTokenCount("abcd"); got != 1 {
		t.Errorf("EstimateTokenCount(abcd) = %d", got)
	}
	if got := EstimateTokenCount("abcde"); got != 2 {
		t.Errorf("EstimateTokenCount(abcde) = %d", got)
	}
}

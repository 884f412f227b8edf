package session

import (
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/codefionn/mathchat/internal/llm"
)

func TestNewSessionStartsWithGreeting(t *testing.T) {
	s := NewSession("")
	if s.ID == "" {
		t.Fatal("expected generated ID")
	}
	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Role != llm.RoleAssistant || msgs[0].Content != Greeting {
		t.Fatalf("unexpected initial messages: %+v", msgs)
	}
	if !s.IsDirty() {
		t.Error("new session should be dirty")
	}
}

func TestAddSetsTitleFromFirstQuestion(t *testing.T) {
	s := NewSession("abc")
	s.Add(llm.RoleUser, "What is   the square root of 144? Please explain.")
	s.Add(llm.RoleAssistant, "12")
	s.Add(llm.RoleUser, "And of 169?")

	if got := s.GetTitle(); got != "What is the square root of 144?" {
		t.Errorf("unexpected title %q", got)
	}
	if s.Len() != 4 {
		t.Errorf("expected 4 messages, got %d", s.Len())
	}
	if last := s.LastAssistantMessage(); last == nil || last.Content != "12" {
		t.Errorf("unexpected last assistant message %+v", last)
	}
}

func TestRecordError(t *testing.T) {
	s := NewSession("abc")
	msg := s.RecordError(errors.New("rate limit exceeded"))
	if msg.Role != llm.RoleAssistant || msg.Content != "An error occurred: rate limit exceeded" {
		t.Errorf("unexpected error message %+v", msg)
	}
}

func TestClearKeepsGreetingOnly(t *testing.T) {
	s := NewSession("abc")
	s.Add(llm.RoleUser, "1+1?")
	s.AccumulateUsage(llm.Usage{InputTokens: 5, OutputTokens: 2})
	s.Clear()

	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Content != Greeting {
		t.Fatalf("unexpected messages after clear: %+v", msgs)
	}
	if s.GetTitle() != "" || s.InputTokens != 0 {
		t.Error("expected title and usage to be reset")
	}
}

func TestTrimKeepsMostRecentWithinBudget(t *testing.T) {
	s := NewSession("abc")
	// 40 runes each: 10 estimated tokens + 4 overhead.
	for i := 0; i < 5; i++ {
		s.Add(llm.RoleUser, strings.Repeat("a", 40))
	}

	trimmed := s.Trim(30)
	if len(trimmed) != 2 {
		t.Fatalf("expected 2 messages within budget, got %d", len(trimmed))
	}
	all := s.Messages()
	if trimmed[1] != all[len(all)-1] {
		t.Error("expected newest message last")
	}
	if s.Len() != 6 {
		t.Error("Trim must not modify the session")
	}

	if got := s.Trim(1); len(got) != 1 {
		t.Errorf("newest message must always be kept, got %d", len(got))
	}
	if got := s.Trim(0); len(got) != 6 {
		t.Errorf("zero budget returns everything, got %d", len(got))
	}
}

func TestTrimWithTokenizer(t *testing.T) {
	s := NewSession("abc")
	s.SetTokenCounter(llm.NewTokenCounter("gpt-4o"))
	s.Add(llm.RoleUser, "What is 2+2?")

	history := s.History(10000)
	if len(history) != 2 {
		t.Fatalf("expected full history, got %d", len(history))
	}
	if history[0].Role != llm.RoleAssistant || history[1].Content != "What is 2+2?" {
		t.Errorf("unexpected history %+v", history)
	}
}

func TestSessionConcurrentAdds(t *testing.T) {
	s := NewSession("abc")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add(llm.RoleUser, "q")
			_ = s.Trim(50)
		}()
	}
	wg.Wait()
	if s.Len() != 21 {
		t.Errorf("expected 21 messages, got %d", s.Len())
	}
}

func TestTitleFromQuestion(t *testing.T) {
	long := strings.Repeat("word ", 40)
	got := TitleFromQuestion(long)
	if len([]rune(got)) != maxTitleLength || !strings.HasSuffix(got, "...") {
		t.Errorf("unexpected long title %q", got)
	}
	if got := TitleFromQuestion("  2 + 2  "); got != "2 + 2" {
		t.Errorf("unexpected title %q", got)
	}
}

func TestGenerateIDs(t *testing.T) {
	if !regexp.MustCompile(`^[a-z]+-[a-z]+-[a-z]+$`).MatchString(GenerateWordID()) {
		t.Error("unexpected word ID format")
	}
	if len(GenerateID()) != 12 {
		t.Error("expected 12 hex characters")
	}
}

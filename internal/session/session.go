package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/codefionn/mathchat/internal/llm"
)

// Greeting opens every new conversation.
const Greeting = "Hi, I'm a Math chatbot who can answer all your math questions"

// Message represents a conversation message
type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one chat conversation. It is safe for concurrent use.
type Session struct {
	ID    string
	Title string

	messages []*Message
	counter  *llm.TokenCounter

	// Usage accumulated across all agent runs in the session
	InputTokens  int
	OutputTokens int

	mu        sync.RWMutex
	CreatedAt time.Time
	UpdatedAt time.Time
	Dirty     bool // true when there are unsaved changes
}

// NewSession creates a session that starts with the assistant greeting.
// An empty id generates one.
func NewSession(id string) *Session {
	if id == "" {
		id = GenerateWordID()
	}
	now := time.Now()
	return &Session{
		ID: id,
		messages: []*Message{
			{Role: llm.RoleAssistant, Content: Greeting, Timestamp: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
		Dirty:     true,
	}
}

// GenerateID creates a random hex session ID.
func GenerateID() string {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fmt.Sprintf("sess-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf[:])
}

// SetTokenCounter selects the tokenizer used by Trim. Without one, tokens
// are estimated from the text length.
func (s *Session) SetTokenCounter(counter *llm.TokenCounter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter = counter
}

// Add appends a message. The first user message also names the session.
func (s *Session) Add(role, content string) *Message {
	msg := &Message{Role: role, Content: content}
	s.AddMessage(msg)
	return msg
}

// AddMessage appends msg, stamping it with the current time.
func (s *Session) AddMessage(msg *Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.messages = append(s.messages, msg)
	if s.Title == "" && msg.Role == llm.RoleUser {
		s.Title = TitleFromQuestion(msg.Content)
	}
	s.UpdatedAt = time.Now()
	s.Dirty = true
}

// RecordError stores a failed run as an assistant message and returns it.
func (s *Session) RecordError(err error) *Message {
	return s.Add(llm.RoleAssistant, ErrorMessage(err))
}

// ErrorMessage renders err the way failed answers appear in the transcript.
func ErrorMessage(err error) string {
	return fmt.Sprintf("An error occurred: %v", err)
}

// Messages returns a copy of the conversation.
func (s *Session) Messages() []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	messages := make([]*Message, len(s.messages))
	copy(messages, s.messages)
	return messages
}

// Len returns the number of messages.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// LastAssistantMessage returns the newest assistant reply, or nil.
func (s *Session) LastAssistantMessage() *Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == llm.RoleAssistant {
			return s.messages[i]
		}
	}
	return nil
}

// Clear resets the conversation to the greeting.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.messages = []*Message{{Role: llm.RoleAssistant, Content: Greeting, Timestamp: now}}
	s.Title = ""
	s.InputTokens = 0
	s.OutputTokens = 0
	s.UpdatedAt = now
	s.Dirty = true
}

// Trim returns the most recent messages whose combined token count fits
// budget. The newest message is always included. A budget <= 0 returns all
// messages. The session itself is not modified.
func (s *Session) Trim(budget int) []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if budget <= 0 {
		out := make([]*Message, len(s.messages))
		copy(out, s.messages)
		return out
	}

	used := 0
	start := len(s.messages)
	for i := len(s.messages) - 1; i >= 0; i-- {
		msg := s.messages[i]
		cost := s.counter.CountMessage(&llm.Message{Role: msg.Role, Content: msg.Content})
		if used+cost > budget && start < len(s.messages) {
			break
		}
		used += cost
		start = i
	}

	out := make([]*Message, len(s.messages)-start)
	copy(out, s.messages[start:])
	return out
}

// History converts the trimmed conversation into model messages.
func (s *Session) History(budget int) []*llm.Message {
	trimmed := s.Trim(budget)
	out := make([]*llm.Message, 0, len(trimmed))
	for _, msg := range trimmed {
		out = append(out, &llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return out
}

// AccumulateUsage adds the token usage of one agent run.
func (s *Session) AccumulateUsage(usage llm.Usage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InputTokens += usage.InputTokens
	s.OutputTokens += usage.OutputTokens
}

// IsDirty reports whether the session has unsaved changes.
func (s *Session) IsDirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Dirty
}

// MarkSaved clears the dirty flag after a successful save.
func (s *Session) MarkSaved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Dirty = false
}

// GetTitle returns the session title.
func (s *Session) GetTitle() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Title
}

const maxTitleLength = 80

// TitleFromQuestion derives a short session title from the first question.
func TitleFromQuestion(question string) string {
	title := strings.Join(strings.Fields(question), " ")
	if idx := strings.IndexAny(title, "?.!"); idx > 0 && idx < maxTitleLength {
		title = title[:idx+1]
	}
	if runes := []rune(title); len(runes) > maxTitleLength {
		title = string(runes[:maxTitleLength-3]) + "..."
	}
	return title
}

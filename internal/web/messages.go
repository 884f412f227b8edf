package web

import (
	"time"

	"github.com/codefionn/mathchat/internal/agent"
)

// Message types
const (
	// client -> server
	MessageTypeAsk      = "ask"
	MessageTypeEvaluate = "evaluate"
	MessageTypeClear    = "clear"
	MessageTypeStop     = "stop"

	// server -> client
	MessageTypeEvent  = "event"
	MessageTypeAnswer = "answer"
	MessageTypeResult = "result"
	MessageTypeError  = "error"
	MessageTypeSystem = "system"
)

// WebMessage represents a message sent over WebSocket
type WebMessage struct {
	Type       string       `json:"type"`
	RequestID  string       `json:"request_id,omitempty"`
	SessionID  string       `json:"session_id,omitempty"`
	Question   string       `json:"question,omitempty"`
	Expression string       `json:"expression,omitempty"`
	Content    string       `json:"content,omitempty"`
	Event      *agent.Event `json:"event,omitempty"`
	Steps      []agent.Step `json:"steps,omitempty"`
	Error      string       `json:"error,omitempty"`
	Timestamp  time.Time    `json:"timestamp,omitempty"`
}

// EvaluateRequest is the body of POST /api/evaluate.
type EvaluateRequest struct {
	Expression string `json:"expression"`
}

// EvaluateResponse carries the calculator's boundary string and, on success,
// the numeric value.
type EvaluateResponse struct {
	Result    string   `json:"result"`
	OK        bool     `json:"ok"`
	Value     *float64 `json:"value,omitempty"`
	ErrorKind string   `json:"error_kind,omitempty"`
}

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

// AskResponse is the outcome of one agent run.
type AskResponse struct {
	SessionID  string       `json:"session_id"`
	Answer     string       `json:"answer"`
	Steps      []agent.Step `json:"steps,omitempty"`
	Iterations int          `json:"iterations"`
	Stopped    bool         `json:"stopped,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// SessionInfo represents session information
type SessionInfo struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Messages  []SessionMessage `json:"messages"`
}

// SessionMessage is one transcript entry.
type SessionMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthStatus is returned by GET /api/health.
type HealthStatus struct {
	Status   string    `json:"status"`
	Time     time.Time `json:"time"`
	Clients  int       `json:"clients"`
	Sessions int       `json:"sessions"`
	Model    string    `json:"model,omitempty"`
	Tools    []string  `json:"tools,omitempty"`
}

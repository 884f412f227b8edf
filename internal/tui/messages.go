package tui

import (
	"github.com/charmbracelet/glamour"

	"github.com/codefionn/mathchat/internal/agent"
)

// agentEventMsg carries one intermediate agent event into the update loop.
type agentEventMsg struct {
	event agent.Event
}

// runDoneMsg ends a run started by submit.
type runDoneMsg struct {
	result *agent.Result
	err    error
}

// ClipboardCopyMsg reports the outcome of ctrl+y.
type ClipboardCopyMsg struct {
	Content string
	Success bool
	Error   string
}

// rendererReadyMsg delivers a markdown renderer built for a new width.
type rendererReadyMsg struct {
	renderer *glamour.TermRenderer
	width    int
	err      error
}

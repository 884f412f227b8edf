package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/reflow/wordwrap"

	"github.com/codefionn/mathchat/internal/calc"
)

type messageKind int

const (
	kindUser messageKind = iota
	kindAssistant
	kindThought
	kindTool
	kindError
)

type message struct {
	kind        messageKind
	content     string // raw markdown content
	timestamp   string
	tool        string
	observation string
	done        bool
}

func newRenderer(wrapWidth int) (*glamour.TermRenderer, error) {
	return glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrapWidth),
		glamour.WithPreservedNewLines(),
	)
}

// renderMessages turns the transcript into viewport content.
func renderMessages(messages []message, renderer *glamour.TermRenderer, wrapWidth int) string {
	var sb strings.Builder
	for i, msg := range messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(renderMessage(msg, renderer, wrapWidth))
	}
	return sb.String()
}

func renderMessage(msg message, renderer *glamour.TermRenderer, wrapWidth int) string {
	switch msg.kind {
	case kindUser:
		return header(userRoleStyle.Render("You"), msg.timestamp) + "\n" + wordwrap.String(msg.content, wrapWidth) + "\n"
	case kindAssistant:
		return header(assistantRoleStyle.Render("Assistant"), msg.timestamp) + "\n" + renderMarkdown(msg.content, renderer, wrapWidth)
	case kindThought:
		return thoughtStyle.Render(wordwrap.String(msg.content, wrapWidth)) + "\n"
	case kindTool:
		return renderToolStep(msg, wrapWidth)
	case kindError:
		return errorStyle.MarginLeft(0).Render(wordwrap.String(msg.content, wrapWidth)) + "\n"
	default:
		return msg.content + "\n"
	}
}

func header(role, timestamp string) string {
	if timestamp == "" {
		return role
	}
	return role + " " + timestampStyle.Render(timestamp)
}

func renderMarkdown(content string, renderer *glamour.TermRenderer, wrapWidth int) string {
	if renderer != nil {
		if out, err := renderer.Render(content); err == nil {
			return out
		}
	}
	return wordwrap.String(content, wrapWidth) + "\n"
}

func renderToolStep(msg message, wrapWidth int) string {
	var sb strings.Builder
	sb.WriteString(toolCallStyle.Render(fmt.Sprintf("⚙ %s", msg.tool)))
	if msg.content != "" {
		sb.WriteString(toolResultStyle.Render(" " + msg.content))
	}
	sb.WriteString("\n")

	if !msg.done {
		sb.WriteString(toolResultStyle.Render("  …"))
		sb.WriteString("\n")
		return sb.String()
	}

	style := toolResultStyle
	if strings.HasPrefix(msg.observation, calc.ErrorPrefix) {
		style = toolErrorStyle
	}
	width := wrapWidth - 2
	if width < 10 {
		width = 10
	}
	for _, line := range strings.Split(wordwrap.String(strings.TrimSpace(msg.observation), width), "\n") {
		sb.WriteString(style.Render("  " + line))
		sb.WriteString("\n")
	}
	return sb.String()
}

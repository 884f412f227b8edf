package acp

import (
	"fmt"
	"strings"

	"github.com/coder/acp-go-sdk"
)

func availableCommands() []acp.AvailableCommand {
	return []acp.AvailableCommand{
		{
			Name:        "eval",
			Description: "Evaluate an arithmetic expression without asking the model",
			Input: &acp.AvailableCommandInput{
				UnstructuredCommandInput: &acp.AvailableCommandUnstructuredCommandInput{
					Hint: "expression, e.g. 2^10 / 4",
				},
			},
		},
		{
			Name:        "clear",
			Description: "Start the conversation over",
		},
		{
			Name:        "help",
			Description: "Show available commands",
		},
	}
}

// parseSlashCommand splits "/name args" into its parts.
func parseSlashCommand(text string) (command, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	fields := strings.SplitN(text[1:], " ", 2)
	command = strings.ToLower(strings.TrimSpace(fields[0]))
	if command == "" {
		return "", "", false
	}
	if len(fields) == 2 {
		args = strings.TrimSpace(fields[1])
	}
	return command, args, true
}

func (a *MathAgent) executeSlashCommand(sess *acpSession, command, args string) (string, error) {
	switch command {
	case "eval":
		if args == "" {
			return "", fmt.Errorf("usage: /eval <expression>")
		}
		return a.calculator.Evaluate(args).String(), nil
	case "clear":
		sess.chat.Clear()
		a.save(sess)
		return "Conversation cleared.", nil
	case "help":
		var b strings.Builder
		b.WriteString("Available commands:\n")
		for _, cmd := range availableCommands() {
			fmt.Fprintf(&b, "  /%s - %s\n", cmd.Name, cmd.Description)
		}
		b.WriteString("\nAnything else is answered by the math agent.")
		return b.String(), nil
	default:
		return "", fmt.Errorf("unknown command /%s (try /help)", command)
	}
}

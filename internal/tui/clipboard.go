package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.design/x/clipboard"
)

// clipboardWriter is swapped in tests.
var clipboardWriter = func(content string) error {
	if err := clipboard.Init(); err != nil {
		return err
	}
	clipboard.Write(clipboard.FmtText, []byte(content))
	return nil
}

// copyToClipboard copies content to the system clipboard.
func copyToClipboard(content string) tea.Cmd {
	return func() tea.Msg {
		if strings.TrimSpace(content) == "" {
			return ClipboardCopyMsg{Success: false, Error: "No answer to copy yet"}
		}
		if err := clipboardWriter(content); err != nil {
			return ClipboardCopyMsg{
				Success: false,
				Error:   fmt.Sprintf("Failed to initialize clipboard: %v", err),
			}
		}
		return ClipboardCopyMsg{
			Content: truncateForDisplay(content, 50),
			Success: true,
		}
	}
}

// truncateForDisplay shortens the first line of s for status messages.
func truncateForDisplay(s string, maxLen int) string {
	firstLine := strings.SplitN(s, "\n", 2)[0]
	if runes := []rune(firstLine); len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return firstLine
}

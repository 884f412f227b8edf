package agent

import (
	"fmt"
	"regexp"
	"strings"
)

const finalAnswerMarker = "Final Answer:"

const (
	missingActionMessage      = "Invalid Format: Missing 'Action:' after 'Thought:'"
	missingActionInputMessage = "Invalid Format: Missing 'Action Input:' after 'Action:'"
	bothAnswerAndAction       = "Parsing LLM output produced both a final answer and a parse-able action:"
	invalidResponseMessage    = "Invalid or incomplete response"
)

var (
	actionPattern      = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
	actionOnlyPattern  = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)`)
	actionInputPattern = regexp.MustCompile(`(?s)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
)

// Action is a tool invocation requested by the model.
type Action struct {
	Tool  string
	Input string
	// Log is the raw model text that produced the action.
	Log string
}

// Finish is the model's final answer.
type Finish struct {
	Output string
	Log    string
}

// ParseError reports model output that follows neither the action nor the
// final answer format. Observation is what the model is told on retry.
type ParseError struct {
	Text        string
	Observation string
	// SendToModel is set when Observation explains the mistake; otherwise
	// the model sees a generic message.
	SendToModel bool
	reason      string
}

func (e *ParseError) Error() string {
	return e.reason
}

// Parse turns one completion into an Action or a Finish.
func Parse(text string) (*Action, *Finish, error) {
	includesAnswer := strings.Contains(text, finalAnswerMarker)

	if m := actionPattern.FindStringSubmatch(text); m != nil {
		if includesAnswer {
			return nil, nil, &ParseError{
				Text:   text,
				reason: fmt.Sprintf("%s %s", bothAnswerAndAction, text),
			}
		}
		input := strings.TrimSpace(m[2])
		input = strings.Trim(strings.Trim(input, " "), `"`)
		return &Action{Tool: strings.TrimSpace(m[1]), Input: input, Log: text}, nil, nil
	}

	if includesAnswer {
		parts := strings.Split(text, finalAnswerMarker)
		return nil, &Finish{Output: strings.TrimSpace(parts[len(parts)-1]), Log: text}, nil
	}

	reason := fmt.Sprintf("Could not parse LLM output: `%s`", text)
	switch {
	case !actionOnlyPattern.MatchString(text):
		return nil, nil, &ParseError{Text: text, Observation: missingActionMessage, SendToModel: true, reason: reason}
	case !actionInputPattern.MatchString(text):
		return nil, nil, &ParseError{Text: text, Observation: missingActionInputMessage, SendToModel: true, reason: reason}
	default:
		return nil, nil, &ParseError{Text: text, reason: reason}
	}
}

// Package agent runs the zero-shot ReAct loop that answers chat questions
// with the calculator, Wikipedia and reasoning tools.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/codefionn/mathchat/internal/consts"
	"github.com/codefionn/mathchat/internal/llm"
	"github.com/codefionn/mathchat/internal/logger"
	"github.com/codefionn/mathchat/internal/tools"
)

// StoppedMessage is the answer when the iteration or time budget runs out.
const StoppedMessage = "Agent stopped due to iteration limit or time limit."

// exceptionTool names the pseudo step recorded for unparsable output.
const exceptionTool = "_Exception"

const maxRepeatedActions = 3

// EventType identifies an intermediate agent event.
type EventType string

const (
	EventThought   EventType = "thought"
	EventToken     EventType = "token"
	EventToolStart EventType = "tool_start"
	EventToolEnd   EventType = "tool_end"
	EventFinal     EventType = "final"
	EventError     EventType = "error"
)

// Event is emitted while the agent works so UIs can render each step.
type Event struct {
	Type        EventType `json:"type"`
	Iteration   int       `json:"iteration"`
	Text        string    `json:"text,omitempty"`
	Tool        string    `json:"tool,omitempty"`
	Input       string    `json:"input,omitempty"`
	Observation string    `json:"observation,omitempty"`
}

// EventHandler receives agent events. It is called from the goroutine
// running Run.
type EventHandler func(Event)

// Step is one completed Thought/Action/Observation round.
type Step struct {
	Tool        string `json:"tool"`
	Input       string `json:"input"`
	Log         string `json:"log"`
	Observation string `json:"observation"`
}

// Result is the outcome of a run.
type Result struct {
	Output     string    `json:"output"`
	Steps      []Step    `json:"steps"`
	Iterations int       `json:"iterations"`
	Stopped    bool      `json:"stopped"`
	Usage      llm.Usage `json:"usage"`
}

// Options configures an Agent. Zero values select defaults.
type Options struct {
	MaxIterations int
	// MaxExecutionTime bounds a whole run; zero means no limit.
	MaxExecutionTime time.Duration
	// RequestTimeout bounds each model call.
	RequestTimeout time.Duration
	Temperature    float64
	MaxTokens      int
	// Streaming requests completions incrementally and emits token events.
	Streaming bool
}

// Agent answers questions with a ReAct loop over a tool registry.
type Agent struct {
	client   llm.Client
	registry *tools.Registry
	opts     Options
	log      *logger.Logger
}

// New creates an agent.
func New(client llm.Client, registry *tools.Registry, opts Options) *Agent {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = consts.DefaultMaxIterations
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = consts.Timeout2Minutes
	}
	return &Agent{
		client:   client,
		registry: registry,
		opts:     opts,
		log:      logger.Global().WithPrefix("agent"),
	}
}

// Registry returns the tools available to the agent.
func (a *Agent) Registry() *tools.Registry {
	return a.registry
}

// ToolNames lists the agent's tools in prompt order.
func (a *Agent) ToolNames() []string {
	return a.registry.Names()
}

// ModelName returns the name of the model answering questions.
func (a *Agent) ModelName() string {
	if a.client == nil {
		return ""
	}
	return a.client.GetModelName()
}

// Run answers question. history holds earlier conversation turns and is sent
// ahead of the ReAct prompt. Model failures end the run with an error; output
// the model formats badly is fed back to it as an observation.
func (a *Agent) Run(ctx context.Context, question string, history []*llm.Message, onEvent EventHandler) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("question is required")
	}
	if a.client == nil {
		return nil, errors.New("agent has no language model configured")
	}

	emit := func(ev Event) {
		if onEvent != nil {
			onEvent(ev)
		}
	}

	st := newState(a.opts.MaxIterations, a.opts.MaxExecutionTime)
	result := &Result{}

	for st.shouldContinue() {
		iteration := st.increment()
		outcome, err := a.step(ctx, st, question, history, result, emit)
		result.Iterations = iteration
		if err != nil {
			emit(Event{Type: EventError, Iteration: iteration, Text: err.Error()})
			return nil, err
		}
		a.log.Debug("iteration %d: %s", iteration, outcome)
		if outcome == finished {
			return result, nil
		}
	}

	a.log.Info("stopped after %d iterations", st.iteration)
	result.Output = StoppedMessage
	result.Stopped = true
	emit(Event{Type: EventFinal, Iteration: st.iteration, Text: StoppedMessage})
	return result, nil
}

func (a *Agent) step(ctx context.Context, st *state, question string, history []*llm.Message, result *Result, emit func(Event)) (iterationResult, error) {
	text, err := a.complete(ctx, st.iteration, question, history, result, emit)
	if err != nil {
		return stoppedAtLimit, err
	}

	action, finish, err := Parse(text)
	if err != nil {
		var pe *ParseError
		if !errors.As(err, &pe) {
			return stoppedAtLimit, err
		}
		observation := invalidResponseMessage
		if pe.SendToModel {
			observation = pe.Observation
		}
		a.log.Debug("unparsable output: %v", err)
		emit(Event{Type: EventToolStart, Iteration: st.iteration, Tool: exceptionTool, Input: text})
		emit(Event{Type: EventToolEnd, Iteration: st.iteration, Tool: exceptionTool, Observation: observation})
		result.Steps = append(result.Steps, Step{Tool: exceptionTool, Input: observation, Log: pe.Text, Observation: observation})
		return continueLoop, nil
	}

	if finish != nil {
		if thought := thoughtBefore(finish.Log, finalAnswerMarker); thought != "" {
			emit(Event{Type: EventThought, Iteration: st.iteration, Text: thought})
		}
		result.Output = finish.Output
		emit(Event{Type: EventFinal, Iteration: st.iteration, Text: finish.Output})
		return finished, nil
	}

	if thought := thoughtBefore(action.Log, "Action"); thought != "" {
		emit(Event{Type: EventThought, Iteration: st.iteration, Text: thought})
	}
	emit(Event{Type: EventToolStart, Iteration: st.iteration, Tool: action.Tool, Input: action.Input})

	observation := a.runAction(ctx, st, action, result.Steps)

	emit(Event{Type: EventToolEnd, Iteration: st.iteration, Tool: action.Tool, Input: action.Input, Observation: observation})
	result.Steps = append(result.Steps, Step{Tool: action.Tool, Input: action.Input, Log: action.Log, Observation: observation})
	return continueLoop, nil
}

func (a *Agent) complete(ctx context.Context, iteration int, question string, history []*llm.Message, result *Result, emit func(Event)) (string, error) {
	messages := make([]*llm.Message, 0, len(history)+1)
	for _, msg := range history {
		if msg != nil && strings.TrimSpace(msg.Content) != "" {
			messages = append(messages, msg)
		}
	}
	messages = append(messages, &llm.Message{Role: llm.RoleUser, Content: BuildPrompt(a.registry, question, result.Steps)})

	req := &llm.CompletionRequest{
		Messages:    messages,
		Temperature: a.opts.Temperature,
		MaxTokens:   a.opts.MaxTokens,
		Stop:        stopSequences,
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.opts.RequestTimeout)
	defer cancel()

	if !a.opts.Streaming {
		resp, err := a.client.CompleteWithRequest(reqCtx, req)
		if err != nil {
			return "", fmt.Errorf("model request failed: %w", err)
		}
		if resp.Usage != nil {
			result.Usage.InputTokens += resp.Usage.InputTokens
			result.Usage.OutputTokens += resp.Usage.OutputTokens
		}
		return llm.TruncateAtStop(resp.Content, stopSequences), nil
	}

	var sb strings.Builder
	err := a.client.Stream(reqCtx, req, func(chunk string) error {
		sb.WriteString(chunk)
		emit(Event{Type: EventToken, Iteration: iteration, Text: chunk})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("model request failed: %w", err)
	}
	return llm.TruncateAtStop(sb.String(), stopSequences), nil
}

func (a *Agent) runAction(ctx context.Context, st *state, action *Action, previous []Step) string {
	call, err := a.registry.TextCall(fmt.Sprintf("call_%d", st.iteration), action.Tool, action.Input)
	if err != nil {
		if errors.Is(err, tools.ErrToolNotFound) {
			return strings.TrimPrefix(err.Error(), tools.ErrToolNotFound.Error()+": ")
		}
		return "Error: " + err.Error()
	}

	if st.recordAction(action) > maxRepeatedActions {
		for i := len(previous) - 1; i >= 0; i-- {
			if previous[i].Tool == action.Tool && previous[i].Input == action.Input {
				a.log.Warn("repeated action %s(%q)", action.Tool, action.Input)
				return fmt.Sprintf("%s was already called with this input and returned: %s\nUse this result or give the Final Answer.", call.Name, previous[i].Observation)
			}
		}
	}

	res := a.registry.Execute(ctx, call)
	if res.ExecutionMetadata != nil {
		a.log.Debug("tool %s took %dms", call.Name, res.ExecutionMetadata.DurationMs)
	}
	return res.Text()
}

// thoughtBefore returns the model's reasoning ahead of marker.
func thoughtBefore(text, marker string) string {
	idx := strings.Index(text, marker)
	if idx < 0 {
		return ""
	}
	thought := strings.TrimSpace(text[:idx])
	return strings.TrimSpace(strings.TrimPrefix(thought, "Thought:"))
}

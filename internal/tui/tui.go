// Package tui implements the terminal chat interface for `mathchat chat`.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/codefionn/mathchat/internal/agent"
	"github.com/codefionn/mathchat/internal/calc"
	"github.com/codefionn/mathchat/internal/llm"
	"github.com/codefionn/mathchat/internal/logger"
	"github.com/codefionn/mathchat/internal/session"
)

const (
	errorDisplayDuration = 5 * time.Second
	runEventBuffer       = 64
	minWrapWidth         = 20

	// title, model line, blank line, gap, textarea, footer and help line
	chromeHeight = 10
)

const defaultInputPlaceholder = "Ask a math question... (Enter to send, /eval 2^10 for a quick calculation)"

const helpText = "enter send • ctrl+y copy answer • ctrl+l clear • esc stop • ctrl+c quit"

// Runner answers a question. *agent.Agent implements it.
type Runner interface {
	Run(ctx context.Context, question string, history []*llm.Message, onEvent agent.EventHandler) (*agent.Result, error)
}

// Options configures the chat model.
type Options struct {
	Runner     Runner
	Calculator *calc.Calculator
	// Session resumes a conversation; nil starts a new one.
	Session *session.Session
	// Store persists the conversation after each answer; nil disables it.
	Store             *session.Store
	TokenCounter      *llm.TokenCounter
	HistoryBudget     int
	ModelName         string
	DisableAnimations bool
}

// Model is the bubbletea model of the chat.
type Model struct {
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	messages []message

	renderer      *glamour.TermRenderer
	rendererCache map[int]*glamour.TermRenderer
	wrapWidth     int

	ready  bool
	width  int
	height int

	runner        Runner
	calculator    *calc.Calculator
	chat          *session.Session
	store         *session.Store
	historyBudget int
	modelName     string
	animations    bool

	ctx        context.Context
	generating bool
	runCancel  context.CancelFunc
	runEvents  chan tea.Msg
	status     string
	lastAnswer string

	info            string
	err             error
	errVisibleUntil time.Time
}

// New creates the chat model. ctx bounds every agent run.
func New(ctx context.Context, opts Options) *Model {
	ta := textarea.New()
	ta.Placeholder = defaultInputPlaceholder
	ta.Focus()
	ta.Prompt = "│ "
	ta.CharLimit = calc.DefaultMaxLength * 4
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	sp := spinner.New(
		spinner.WithSpinner(spinner.Line),
		spinner.WithStyle(statusStyle.MarginLeft(0)),
	)

	chat := opts.Session
	if chat == nil {
		chat = session.NewSession("")
	}
	chat.SetTokenCounter(opts.TokenCounter)

	calculator := opts.Calculator
	if calculator == nil {
		calculator = calc.New(calc.Options{})
	}

	m := &Model{
		viewport:      viewport.New(80, 20),
		textarea:      ta,
		spinner:       sp,
		rendererCache: make(map[int]*glamour.TermRenderer),
		runner:        opts.Runner,
		calculator:    calculator,
		chat:          chat,
		store:         opts.Store,
		historyBudget: opts.HistoryBudget,
		modelName:     opts.ModelName,
		animations:    !opts.DisableAnimations,
		ctx:           ctx,
	}
	for _, msg := range chat.Messages() {
		switch msg.Role {
		case llm.RoleUser:
			m.messages = append(m.messages, message{kind: kindUser, content: msg.Content, timestamp: formatTime(msg.Timestamp)})
		case llm.RoleAssistant:
			m.messages = append(m.messages, message{kind: kindAssistant, content: msg.Content, timestamp: formatTime(msg.Timestamp)})
		}
	}
	return m
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("15:04")
}

func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

// Session returns the conversation shown by the model.
func (m *Model) Session() *session.Session {
	return m.chat
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		cmds = append(cmds, m.applyWindowSize(msg.Width, msg.Height))

	case rendererReadyMsg:
		if msg.err != nil {
			logger.Warn("tui: markdown renderer for width %d: %v", msg.width, msg.err)
			break
		}
		m.rendererCache[msg.width] = msg.renderer
		if msg.width == m.wrapWidth {
			m.renderer = msg.renderer
			m.refreshViewport()
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.generating {
				m.stopRun()
				return m, nil
			}
			return m, tea.Quit
		case "esc":
			if m.generating {
				m.stopRun()
			}
			return m, nil
		case "ctrl+y":
			return m, copyToClipboard(m.lastAnswer)
		case "ctrl+l":
			if !m.generating {
				m.clearConversation()
			}
			return m, nil
		case "enter":
			return m, m.submit()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case agentEventMsg:
		m.handleEvent(msg.event)
		return m, waitForRunMsg(m.runEvents)

	case runDoneMsg:
		m.finishRun(msg.result, msg.err)
		return m, nil

	case spinner.TickMsg:
		if m.generating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case ClipboardCopyMsg:
		if msg.Success {
			m.info = fmt.Sprintf("Copied: %s", msg.Content)
		} else {
			m.setError(errors.New(msg.Error))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	// Letter keys belong to the input, not to viewport scrolling.
	if _, isKey := msg.(tea.KeyMsg); !isKey {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) applyWindowSize(width, height int) tea.Cmd {
	if width <= 0 || height <= 0 {
		return nil
	}
	m.width = width
	m.height = height

	vpHeight := height - chromeHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = width
	m.viewport.Height = vpHeight

	wrapWidth := width - 4
	if wrapWidth < minWrapWidth {
		wrapWidth = minWrapWidth
	}
	m.textarea.SetWidth(wrapWidth)
	m.ready = true

	if wrapWidth == m.wrapWidth && m.renderer != nil {
		m.refreshViewport()
		return nil
	}
	m.wrapWidth = wrapWidth
	if cached, ok := m.rendererCache[wrapWidth]; ok {
		m.renderer = cached
		m.refreshViewport()
		return nil
	}
	m.refreshViewport()
	return createRendererAsync(wrapWidth)
}

func createRendererAsync(wrapWidth int) tea.Cmd {
	return func() tea.Msg {
		renderer, err := newRenderer(wrapWidth)
		return rendererReadyMsg{renderer: renderer, width: wrapWidth, err: err}
	}
}

func (m *Model) refreshViewport() {
	atBottom := m.viewport.AtBottom()
	width := m.wrapWidth
	if width <= 0 {
		width = 76
	}
	m.viewport.SetContent(renderMessages(m.messages, m.renderer, width))
	if atBottom || m.generating {
		m.viewport.GotoBottom()
	}
}

func (m *Model) submit() tea.Cmd {
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return nil
	}
	if m.generating {
		m.info = "Still working on the previous question (esc to stop)"
		return nil
	}
	m.textarea.Reset()
	m.info = ""

	if strings.HasPrefix(input, "/") {
		m.runCommand(input)
		return nil
	}
	return m.startRun(input)
}

func (m *Model) runCommand(input string) {
	fields := strings.SplitN(strings.TrimPrefix(input, "/"), " ", 2)
	command := strings.ToLower(strings.TrimSpace(fields[0]))
	args := ""
	if len(fields) == 2 {
		args = strings.TrimSpace(fields[1])
	}

	switch command {
	case "eval":
		if args == "" {
			m.setError(errors.New("usage: /eval <expression>"))
			return
		}
		answer := m.calculator.Evaluate(args).String()
		m.chat.Add(llm.RoleUser, input)
		m.chat.Add(llm.RoleAssistant, answer)
		now := formatTime(time.Now())
		m.messages = append(m.messages,
			message{kind: kindUser, content: input, timestamp: now},
			message{kind: kindAssistant, content: answer, timestamp: now},
		)
		m.lastAnswer = answer
		m.save()
		m.refreshViewport()
	case "clear":
		m.clearConversation()
	case "help":
		m.info = "/eval <expression> • /clear • " + helpText
	default:
		m.setError(fmt.Errorf("unknown command /%s", command))
	}
}

func (m *Model) startRun(question string) tea.Cmd {
	history := m.chat.History(m.historyBudget)
	m.chat.Add(llm.RoleUser, question)
	m.messages = append(m.messages, message{kind: kindUser, content: question, timestamp: formatTime(time.Now())})

	if m.runner == nil {
		m.recordFailure(errors.New("no language model configured"))
		m.refreshViewport()
		return nil
	}

	runCtx, cancel := context.WithCancel(m.ctx)
	events := make(chan tea.Msg, runEventBuffer)
	m.generating = true
	m.runCancel = cancel
	m.runEvents = events
	m.status = "Thinking..."
	m.refreshViewport()

	send := func(msg tea.Msg) {
		select {
		case events <- msg:
		case <-m.ctx.Done():
		}
	}
	runner := m.runner
	go func() {
		defer close(events)
		result, err := runner.Run(runCtx, question, history, func(ev agent.Event) {
			send(agentEventMsg{event: ev})
		})
		send(runDoneMsg{result: result, err: err})
	}()

	cmds := []tea.Cmd{waitForRunMsg(events)}
	if m.animations {
		cmds = append(cmds, m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

// waitForRunMsg delivers the next message of a running agent.
func waitForRunMsg(events <-chan tea.Msg) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

func (m *Model) handleEvent(ev agent.Event) {
	switch ev.Type {
	case agent.EventThought:
		if text := strings.TrimSpace(ev.Text); text != "" {
			m.messages = append(m.messages, message{kind: kindThought, content: text})
		}
		m.status = "Thinking..."
	case agent.EventToken:
		m.status = "Generating..."
		return
	case agent.EventToolStart:
		m.messages = append(m.messages, message{kind: kindTool, tool: ev.Tool, content: ev.Input})
		m.status = fmt.Sprintf("Calling %s", ev.Tool)
	case agent.EventToolEnd:
		for i := len(m.messages) - 1; i >= 0; i-- {
			if m.messages[i].kind == kindTool && !m.messages[i].done && m.messages[i].tool == ev.Tool {
				m.messages[i].observation = ev.Observation
				m.messages[i].done = true
				break
			}
		}
		m.status = "Thinking..."
	case agent.EventFinal:
		m.status = ""
	case agent.EventError:
		logger.Debug("tui: agent error event: %s", ev.Text)
	}
	m.refreshViewport()
}

func (m *Model) finishRun(result *agent.Result, err error) {
	m.generating = false
	if m.runCancel != nil {
		m.runCancel()
		m.runCancel = nil
	}
	m.runEvents = nil
	m.status = ""

	switch {
	case errors.Is(err, context.Canceled):
		m.messages = append(m.messages, message{kind: kindError, content: "Stopped."})
	case err != nil:
		m.recordFailure(err)
	case result != nil:
		m.chat.Add(llm.RoleAssistant, result.Output)
		m.chat.AccumulateUsage(result.Usage)
		m.messages = append(m.messages, message{kind: kindAssistant, content: result.Output, timestamp: formatTime(time.Now())})
		m.lastAnswer = result.Output
	}
	m.save()
	m.refreshViewport()
}

func (m *Model) recordFailure(err error) {
	logger.Warn("tui: agent failed: %v", err)
	msg := m.chat.RecordError(err)
	m.messages = append(m.messages, message{kind: kindError, content: msg.Content})
}

func (m *Model) stopRun() {
	if m.runCancel != nil {
		m.runCancel()
	}
	m.status = "Stopping..."
}

func (m *Model) clearConversation() {
	m.chat.Clear()
	m.messages = m.messages[:0]
	for _, msg := range m.chat.Messages() {
		m.messages = append(m.messages, message{kind: kindAssistant, content: msg.Content, timestamp: formatTime(msg.Timestamp)})
	}
	m.lastAnswer = ""
	m.info = "Conversation cleared"
	m.save()
	m.refreshViewport()
}

func (m *Model) save() {
	if m.store == nil || !m.chat.IsDirty() {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(m.ctx), 5*time.Second)
	defer cancel()
	if err := m.store.Save(ctx, m.chat); err != nil {
		m.setError(fmt.Errorf("save conversation: %w", err))
	}
}

func (m *Model) setError(err error) {
	m.err = err
	m.errVisibleUntil = time.Now().Add(errorDisplayDuration)
}

func (m *Model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Math Chatbot"))
	sb.WriteString("\n")
	model := m.modelName
	if model == "" {
		model = "none"
	}
	sb.WriteString(statusStyle.Render(fmt.Sprintf("Model: %s • Session: %s", model, m.chat.ID)))
	sb.WriteString("\n\n")

	sb.WriteString(m.viewport.View())
	sb.WriteString("\n\n")
	sb.WriteString(m.textarea.View())
	sb.WriteString("\n")
	sb.WriteString(m.footer())
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render(helpText))
	return sb.String()
}

func (m *Model) footer() string {
	switch {
	case m.generating:
		status := m.status
		if status == "" {
			status = "Thinking..."
		}
		if m.animations {
			return statusStyle.Render(fmt.Sprintf("%s %s", m.spinner.View(), status))
		}
		return statusStyle.Render("⏳ " + status)
	case m.err != nil && time.Now().Before(m.errVisibleUntil):
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	case m.info != "":
		return infoStyle.Render(m.info)
	default:
		return ""
	}
}

// Run starts the full-screen chat and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := New(ctx, opts)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Package acp exposes the math agent to editors over the Agent Client
// Protocol on stdio.
package acp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/coder/acp-go-sdk"

	"github.com/codefionn/mathchat/internal/agent"
	"github.com/codefionn/mathchat/internal/calc"
	"github.com/codefionn/mathchat/internal/llm"
	"github.com/codefionn/mathchat/internal/logger"
	"github.com/codefionn/mathchat/internal/session"
	"github.com/codefionn/mathchat/internal/tools"
)

const maxLogSnippetLen = 256

func truncateForLog(s string) string {
	if len(s) <= maxLogSnippetLen {
		return s
	}
	return s[:maxLogSnippetLen] + "...(truncated)"
}

// Runner answers a question. *agent.Agent implements it.
type Runner interface {
	Run(ctx context.Context, question string, history []*llm.Message, onEvent agent.EventHandler) (*agent.Result, error)
}

// notifier is the part of *acp.AgentSideConnection the agent talks to.
type notifier interface {
	SessionUpdate(ctx context.Context, params acp.SessionNotification) error
}

// Options configures MathAgent.
type Options struct {
	Runner     Runner
	Calculator *calc.Calculator
	// Store persists sessions; nil keeps them in memory only.
	Store         *session.Store
	TokenCounter  *llm.TokenCounter
	HistoryBudget int
}

// MathAgent implements acp.Agent on top of the ReAct agent.
type MathAgent struct {
	conn          notifier
	runner        Runner
	calculator    *calc.Calculator
	store         *session.Store
	counter       *llm.TokenCounter
	historyBudget int

	sessions map[string]*acpSession
	mu       sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

type acpSession struct {
	chat         *session.Session
	promptCancel context.CancelFunc
	mu           sync.Mutex
}

var (
	_ acp.Agent             = (*MathAgent)(nil)
	_ acp.AgentLoader       = (*MathAgent)(nil)
	_ acp.AgentExperimental = (*MathAgent)(nil)
)

// NewMathAgent creates the ACP agent. The connection is bound afterwards
// with SetAgentConnection.
func NewMathAgent(ctx context.Context, opts Options) *MathAgent {
	calculator := opts.Calculator
	if calculator == nil {
		calculator = calc.New(calc.Options{})
	}
	agentCtx, cancel := context.WithCancel(ctx)
	return &MathAgent{
		runner:        opts.Runner,
		calculator:    calculator,
		store:         opts.Store,
		counter:       opts.TokenCounter,
		historyBudget: opts.HistoryBudget,
		sessions:      make(map[string]*acpSession),
		ctx:           agentCtx,
		cancel:        cancel,
	}
}

// SetAgentConnection binds the connection used for session updates.
func (a *MathAgent) SetAgentConnection(conn *acp.AgentSideConnection) {
	a.conn = conn
}

// Initialize implements acp.Agent
func (a *MathAgent) Initialize(ctx context.Context, params acp.InitializeRequest) (acp.InitializeResponse, error) {
	if params.ClientInfo != nil {
		logger.Info("acp: client %s %s connected", params.ClientInfo.Name, params.ClientInfo.Version)
	}
	return acp.InitializeResponse{
		ProtocolVersion: acp.ProtocolVersionNumber,
		AgentCapabilities: acp.AgentCapabilities{
			LoadSession: a.store != nil,
		},
	}, nil
}

// Authenticate implements acp.Agent
func (a *MathAgent) Authenticate(ctx context.Context, params acp.AuthenticateRequest) (acp.AuthenticateResponse, error) {
	return acp.AuthenticateResponse{}, nil
}

// NewSession implements acp.Agent
func (a *MathAgent) NewSession(ctx context.Context, params acp.NewSessionRequest) (acp.NewSessionResponse, error) {
	chat := session.NewSession("")
	chat.SetTokenCounter(a.counter)

	a.mu.Lock()
	a.sessions[chat.ID] = &acpSession{chat: chat}
	a.mu.Unlock()
	logger.Info("acp: new session %s", chat.ID)

	a.notify(ctx, chat.ID, acp.SessionUpdate{
		AvailableCommandsUpdate: &acp.SessionAvailableCommandsUpdate{
			AvailableCommands: availableCommands(),
		},
	})
	return acp.NewSessionResponse{SessionId: acp.SessionId(chat.ID)}, nil
}

// LoadSession implements acp.AgentLoader by replaying a stored chat.
func (a *MathAgent) LoadSession(ctx context.Context, params acp.LoadSessionRequest) (acp.LoadSessionResponse, error) {
	if a.store == nil {
		return acp.LoadSessionResponse{}, fmt.Errorf("session loading not supported")
	}
	id := string(params.SessionId)
	chat, err := a.store.Load(ctx, id)
	if err != nil {
		return acp.LoadSessionResponse{}, fmt.Errorf("load session %s: %w", id, err)
	}
	chat.SetTokenCounter(a.counter)

	a.mu.Lock()
	a.sessions[id] = &acpSession{chat: chat}
	a.mu.Unlock()

	for _, msg := range chat.Messages() {
		if update, ok := messageUpdate(msg); ok {
			a.notify(ctx, id, update)
		}
	}
	return acp.LoadSessionResponse{}, nil
}

func messageUpdate(msg *session.Message) (acp.SessionUpdate, bool) {
	if msg == nil || msg.Content == "" {
		return acp.SessionUpdate{}, false
	}
	switch msg.Role {
	case llm.RoleUser:
		return acp.UpdateUserMessageText(msg.Content), true
	case llm.RoleAssistant:
		return acp.UpdateAgentMessageText(msg.Content), true
	default:
		return acp.SessionUpdate{}, false
	}
}

// Cancel implements acp.Agent
func (a *MathAgent) Cancel(ctx context.Context, params acp.CancelNotification) error {
	id := string(params.SessionId)
	sess := a.session(id)
	if sess == nil {
		logger.Warn("acp: cancel for unknown session %s", id)
		return nil
	}
	sess.mu.Lock()
	if sess.promptCancel != nil {
		sess.promptCancel()
		sess.promptCancel = nil
	}
	sess.mu.Unlock()
	logger.Info("acp: session %s cancelled", id)
	return nil
}

// SetSessionMode implements acp.Agent
func (a *MathAgent) SetSessionMode(ctx context.Context, params acp.SetSessionModeRequest) (acp.SetSessionModeResponse, error) {
	return acp.SetSessionModeResponse{}, nil
}

// SetSessionModel implements acp.AgentExperimental
func (a *MathAgent) SetSessionModel(ctx context.Context, params acp.SetSessionModelRequest) (acp.SetSessionModelResponse, error) {
	return acp.SetSessionModelResponse{}, nil
}

// Prompt implements acp.Agent. Slash commands are answered directly, any
// other text is a question for the agent.
func (a *MathAgent) Prompt(ctx context.Context, params acp.PromptRequest) (acp.PromptResponse, error) {
	id := string(params.SessionId)
	sess := a.session(id)
	if sess == nil {
		return acp.PromptResponse{}, fmt.Errorf("session %s not found", id)
	}

	var text strings.Builder
	for _, block := range params.Prompt {
		if block.Text != nil {
			text.WriteString(block.Text.Text)
		}
	}
	question := strings.TrimSpace(text.String())
	if question == "" {
		return acp.PromptResponse{}, fmt.Errorf("no text content found in prompt")
	}
	logger.Debug("acp: prompt[%s] %q", id, truncateForLog(question))

	sess.mu.Lock()
	if sess.promptCancel != nil {
		sess.promptCancel()
	}
	promptCtx, cancel := context.WithCancel(a.ctx)
	sess.promptCancel = cancel
	sess.mu.Unlock()
	defer func() {
		sess.mu.Lock()
		sess.promptCancel = nil
		sess.mu.Unlock()
		cancel()
	}()

	if command, args, ok := parseSlashCommand(question); ok {
		reply, err := a.executeSlashCommand(sess, command, args)
		if err != nil {
			reply = fmt.Sprintf("Error: %v", err)
		}
		a.notify(promptCtx, id, acp.UpdateAgentMessageText(reply))
		return acp.PromptResponse{StopReason: acp.StopReasonEndTurn}, nil
	}

	if err := a.ask(promptCtx, sess, question); err != nil {
		if promptCtx.Err() != nil {
			return acp.PromptResponse{StopReason: acp.StopReasonCancelled}, nil
		}
		return acp.PromptResponse{}, err
	}
	return acp.PromptResponse{StopReason: acp.StopReasonEndTurn}, nil
}

func (a *MathAgent) ask(ctx context.Context, sess *acpSession, question string) error {
	id := sess.chat.ID
	if a.runner == nil {
		msg := sess.chat.RecordError(fmt.Errorf("no language model configured"))
		a.notify(ctx, id, acp.UpdateAgentMessageText(msg.Content))
		return nil
	}

	history := sess.chat.History(a.historyBudget)
	sess.chat.Add(llm.RoleUser, question)

	result, err := a.runner.Run(ctx, question, history, func(ev agent.Event) {
		a.handleEvent(ctx, id, ev)
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		logger.Warn("acp: session %s: agent failed: %v", id, err)
		msg := sess.chat.RecordError(err)
		a.notify(ctx, id, acp.UpdateAgentMessageText(msg.Content))
		a.save(sess)
		return nil
	}

	sess.chat.Add(llm.RoleAssistant, result.Output)
	sess.chat.AccumulateUsage(result.Usage)
	a.save(sess)
	return nil
}

func (a *MathAgent) handleEvent(ctx context.Context, sessionID string, ev agent.Event) {
	callID := acp.ToolCallId(fmt.Sprintf("%s-%d", strings.ReplaceAll(strings.ToLower(ev.Tool), " ", "_"), ev.Iteration))

	switch ev.Type {
	case agent.EventToolStart:
		a.notify(ctx, sessionID, acp.StartToolCall(
			callID,
			toolTitle(ev.Tool, ev.Input),
			acp.WithStartKind(toolKind(ev.Tool)),
			acp.WithStartStatus(acp.ToolCallStatusInProgress),
			acp.WithStartRawInput(map[string]interface{}{"input": ev.Input}),
		))
	case agent.EventToolEnd:
		status := acp.ToolCallStatusCompleted
		if strings.HasPrefix(ev.Observation, calc.ErrorPrefix) {
			status = acp.ToolCallStatusFailed
		}
		var content []acp.ToolCallContent
		if ev.Observation != "" {
			content = append(content, acp.ToolContent(acp.TextBlock(ev.Observation)))
		}
		a.notify(ctx, sessionID, acp.UpdateToolCall(
			callID,
			acp.WithUpdateStatus(status),
			acp.WithUpdateContent(content),
			acp.WithUpdateRawOutput(map[string]interface{}{"result": ev.Observation}),
		))
	case agent.EventFinal:
		a.notify(ctx, sessionID, acp.UpdateAgentMessageText(ev.Text))
	case agent.EventError:
		logger.Debug("acp: session %s: %s", sessionID, ev.Text)
	}
}

func toolKind(name string) acp.ToolKind {
	switch name {
	case tools.ToolNameWikipedia:
		return acp.ToolKindSearch
	case tools.ToolNameCalculator:
		return acp.ToolKindExecute
	default:
		return acp.ToolKindThink
	}
}

func toolTitle(name, input string) string {
	switch name {
	case tools.ToolNameCalculator:
		return fmt.Sprintf("Calculating %s", input)
	case tools.ToolNameWikipedia:
		return fmt.Sprintf("Searching Wikipedia for %s", input)
	default:
		return fmt.Sprintf("Running %s", name)
	}
}

func (a *MathAgent) notify(ctx context.Context, sessionID string, update acp.SessionUpdate) {
	if a.conn == nil {
		return
	}
	if err := a.conn.SessionUpdate(ctx, acp.SessionNotification{
		SessionId: acp.SessionId(sessionID),
		Update:    update,
	}); err != nil {
		logger.Warn("acp: session %s: update failed: %v", sessionID, err)
	}
}

func (a *MathAgent) save(sess *acpSession) {
	if a.store == nil {
		return
	}
	if err := a.store.Save(context.WithoutCancel(a.ctx), sess.chat); err != nil {
		logger.Warn("acp: save session %s: %v", sess.chat.ID, err)
	}
}

func (a *MathAgent) session(id string) *acpSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessions[id]
}

// Close cancels running prompts.
func (a *MathAgent) Close() error {
	a.mu.Lock()
	for _, sess := range a.sessions {
		sess.mu.Lock()
		if sess.promptCancel != nil {
			sess.promptCancel()
		}
		sess.mu.Unlock()
	}
	a.sessions = make(map[string]*acpSession)
	a.mu.Unlock()
	a.cancel()
	return nil
}

// Run serves the agent on stdio until the client disconnects.
func Run(ctx context.Context, opts Options) error {
	logger.Info("starting ACP agent on stdio")

	mathAgent := NewMathAgent(ctx, opts)
	defer mathAgent.Close()

	conn := acp.NewAgentSideConnection(mathAgent, os.Stdout, os.Stdin)
	// SDK logs must not reach stdout.
	conn.SetLogger(slog.New(logger.NewSlogHandler(logger.Global())))
	mathAgent.SetAgentConnection(conn)

	select {
	case <-conn.Done():
	case <-ctx.Done():
	}
	logger.Info("ACP agent connection closed")
	return nil
}

// Package web serves the calculator and the chat agent over HTTP and
// WebSocket.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/mathchat/internal/agent"
	"github.com/codefionn/mathchat/internal/calc"
	"github.com/codefionn/mathchat/internal/consts"
	"github.com/codefionn/mathchat/internal/llm"
	"github.com/codefionn/mathchat/internal/logger"
	"github.com/codefionn/mathchat/internal/securemem"
	"github.com/codefionn/mathchat/internal/session"
	"github.com/codefionn/mathchat/internal/tools"
)

//go:embed static/*
var staticFiles embed.FS

const defaultAddr = "127.0.0.1:8501"

// Runner answers a question. *agent.Agent implements it.
type Runner interface {
	Run(ctx context.Context, question string, history []*llm.Message, onEvent agent.EventHandler) (*agent.Result, error)
}

// Options configures a Server.
type Options struct {
	Addr string
	// AuthToken, when set, is required as a bearer token (or ?token= for
	// the page and the WebSocket).
	AuthToken  string
	Agent      Runner
	Calculator *calc.Calculator
	// Store persists sessions; nil keeps them in memory only.
	Store         *session.Store
	TokenCounter  *llm.TokenCounter
	HistoryBudget int
	ModelName     string
}

// Server represents the web server
type Server struct {
	addr       string
	authToken  *securemem.Secret
	runner     Runner
	router     *httprouter.Router
	httpServer *http.Server
	hub        *Hub
	sessions   *sessionManager

	historyBudget int
	modelName     string

	calcMu     sync.RWMutex
	calculator *calc.Calculator

	upgrader websocket.Upgrader
}

// NewServer creates a new web server
func NewServer(opts Options) (*Server, error) {
	if opts.Addr == "" {
		opts.Addr = defaultAddr
	}
	if opts.Calculator == nil {
		opts.Calculator = calc.New(calc.Options{})
	}

	s := &Server{
		addr:          opts.Addr,
		runner:        opts.Agent,
		router:        httprouter.New(),
		hub:           NewHub(),
		sessions:      newSessionManager(opts.Store, opts.TokenCounter),
		historyBudget: opts.HistoryBudget,
		modelName:     opts.ModelName,
		calculator:    opts.Calculator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  consts.BufferSize4KB,
			WriteBufferSize: consts.BufferSize4KB,
		},
	}
	if opts.AuthToken != "" {
		s.authToken = securemem.NewSecret(opts.AuthToken)
	}
	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() error {
	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("static files: %w", err)
	}
	s.router.ServeFiles("/static/*filepath", http.FS(static))

	s.router.GET("/", s.handleIndex)
	s.router.GET("/api/health", s.handleHealth)
	s.router.POST("/api/evaluate", s.requireAuth(s.handleEvaluate))
	s.router.POST("/api/ask", s.requireAuth(s.handleAsk))
	s.router.GET("/api/sessions", s.requireAuth(s.handleListSessions))
	s.router.GET("/api/sessions/:id", s.requireAuth(s.handleGetSession))
	s.router.DELETE("/api/sessions/:id", s.requireAuth(s.handleDeleteSession))
	s.router.GET("/ws", s.requireAuth(s.handleWebSocket))
	return nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// SetCalculator swaps the calculator, e.g. after a configuration reload.
func (s *Server) SetCalculator(c *calc.Calculator) {
	s.calcMu.Lock()
	defer s.calcMu.Unlock()
	s.calculator = c
	s.hub.Broadcast(&WebMessage{Type: MessageTypeSystem, Content: "Calculator settings reloaded", Timestamp: time.Now()})
}

func (s *Server) currentCalculator() *calc.Calculator {
	s.calcMu.RLock()
	defer s.calcMu.RUnlock()
	return s.calculator
}

// Serve listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: consts.Timeout10Seconds,
	}

	go s.hub.Run()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Web server listening on %s", ln.Addr())
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.hub.Stop()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Stopping web server...")
	s.hub.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), consts.Timeout5Seconds)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// requireAuth rejects requests without the configured token.
func (s *Server) requireAuth(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !s.authorized(r) {
			logger.Warn("Rejected %s %s: invalid auth token", r.Method, r.URL.Path)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, ps)
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == nil {
		return true
	}
	token := r.URL.Query().Get("token")
	if header := r.Header.Get("Authorization"); header != "" {
		if after, ok := strings.CutPrefix(header, "Bearer "); ok {
			token = strings.TrimSpace(after)
		}
	}
	return token != "" && s.authToken.Equal(token)
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade WebSocket: %v", err)
		return
	}

	client := NewClient(s.hub, conn, s)
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// evaluate runs the calculator and shapes the API response.
func (s *Server) evaluate(expression string) EvaluateResponse {
	res := s.currentCalculator().Evaluate(tools.CleanExpression(expression))
	out := EvaluateResponse{Result: res.String(), OK: res.Err == nil}
	if res.Err != nil {
		out.ErrorKind = res.Err.Kind.String()
	} else {
		value := res.Value
		out.Value = &value
	}
	return out
}

// ask runs the agent on question within a session and records the exchange.
func (s *Server) ask(ctx context.Context, sessionID, question string, onEvent agent.EventHandler) AskResponse {
	sess := s.sessions.getOrCreate(ctx, sessionID)
	resp := AskResponse{SessionID: sess.ID}

	question = strings.TrimSpace(question)
	if question == "" {
		resp.Error = "Please enter a question"
		return resp
	}
	if s.runner == nil {
		resp.Error = "no language model configured"
		resp.Answer = session.ErrorMessage(errors.New(resp.Error))
		return resp
	}

	history := sess.History(s.historyBudget)
	sess.Add(llm.RoleUser, question)

	result, err := s.runner.Run(ctx, question, history, onEvent)
	if err != nil {
		logger.Warn("session %s: agent failed: %v", sess.ID, err)
		msg := sess.RecordError(err)
		resp.Answer = msg.Content
		resp.Error = err.Error()
	} else {
		sess.Add(llm.RoleAssistant, result.Output)
		sess.AccumulateUsage(result.Usage)
		resp.Answer = result.Output
		resp.Steps = result.Steps
		resp.Iterations = result.Iterations
		resp.Stopped = result.Stopped
	}

	s.sessions.save(context.WithoutCancel(ctx), sess)
	return resp
}

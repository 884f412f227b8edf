package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/codefionn/mathchat/internal/acp"
	"github.com/codefionn/mathchat/internal/agent"
	"github.com/codefionn/mathchat/internal/config"
	"github.com/codefionn/mathchat/internal/logger"
	"github.com/codefionn/mathchat/internal/pprof"
	"github.com/codefionn/mathchat/internal/sandbox"
	"github.com/codefionn/mathchat/internal/session"
	"github.com/codefionn/mathchat/internal/tui"
	"github.com/codefionn/mathchat/internal/web"
)

// runEval prints the calculator result. Evaluation failures are output, not
// errors.
func (a *App) runEval(_ context.Context, cfg *config.Config, args []string) error {
	expr := strings.TrimSpace(strings.Join(args, " "))
	if expr == "" {
		fmt.Fprintln(a.Stderr, "Usage: mathchat eval <expression>")
		return ErrUsage
	}

	calculator, err := newCalculator(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Stdout, calculator.Evaluate(expr).String())
	return nil
}

// runAsk answers one question. Steps go to stderr so stdout only carries the
// answer.
func (a *App) runAsk(ctx context.Context, cfg *config.Config, args []string) error {
	fs := a.newFlagSet("ask", "[-quiet] <question>")
	quiet := fs.Bool("quiet", false, "Do not print intermediate steps")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fs.Usage()
		return ErrUsage
	}

	rt, err := a.buildRuntime(ctx, cfg, runtimeOptions{requireModel: true})
	if err != nil {
		return err
	}
	defer rt.close()

	onEvent := func(ev agent.Event) {
		if !*quiet {
			a.printStep(ev)
		}
	}

	result, err := rt.agent.Run(ctx, question, nil, onEvent)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Stdout, result.Output)
	logger.Info("answered in %d iterations (%d input, %d output tokens)",
		result.Iterations, result.Usage.InputTokens, result.Usage.OutputTokens)
	return nil
}

func (a *App) printStep(ev agent.Event) {
	switch ev.Type {
	case agent.EventThought:
		if text := strings.TrimSpace(ev.Text); text != "" {
			fmt.Fprintf(a.Stderr, "Thought: %s\n", text)
		}
	case agent.EventToolStart:
		fmt.Fprintf(a.Stderr, "Action: %s[%s]\n", ev.Tool, ev.Input)
	case agent.EventToolEnd:
		fmt.Fprintf(a.Stderr, "Observation: %s\n", strings.TrimSpace(ev.Observation))
	case agent.EventError:
		fmt.Fprintf(a.Stderr, "Error: %s\n", ev.Text)
	}
}

func (a *App) runChat(ctx context.Context, cfg *config.Config, args []string) error {
	fs := a.newFlagSet("chat", "[-session id] [-no-animations]")
	sessionID := fs.String("session", "", "Resume a saved conversation")
	noAnimations := fs.Bool("no-animations", false, "Disable the thinking spinner")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	rt, err := a.buildRuntime(ctx, cfg, runtimeOptions{streaming: true, openStore: true})
	if err != nil {
		return err
	}
	defer rt.close()

	var resumed *session.Session
	if *sessionID != "" {
		if rt.store == nil {
			return errors.New("chat history is disabled")
		}
		resumed, err = rt.store.Load(ctx, *sessionID)
		if err != nil {
			return fmt.Errorf("failed to load session %s: %w", *sessionID, err)
		}
	}

	opts := tui.Options{
		Calculator:        rt.calculator,
		Session:           resumed,
		Store:             rt.store,
		TokenCounter:      rt.counter,
		HistoryBudget:     cfg.Agent.HistoryTokenBudget,
		ModelName:         rt.modelName(),
		DisableAnimations: *noAnimations,
	}
	if rt.agent != nil {
		opts.Runner = rt.agent
	}
	return tui.Run(ctx, opts)
}

func (a *App) runServe(ctx context.Context, cfg *config.Config, args []string) error {
	fs := a.newFlagSet("serve", "[-listen addr] [-token token] [-sandbox] [-pprof addr]")
	listen := fs.String("listen", cfg.Server.Listen, "Address to listen on")
	token := fs.String("token", cfg.Server.AuthToken, "Bearer token required by the API")
	confine := fs.Bool("sandbox", cfg.Server.Sandbox, "Confine file access with landlock (Linux)")
	var profiling pprof.Config
	fs.StringVar(&profiling.HTTPAddr, "pprof", "", "Serve runtime profiles on this address")
	fs.StringVar(&profiling.CPUProfile, "cpuprofile", "", "Write a CPU profile to this file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if profiling.Enabled() {
		profiler := pprof.NewHandler(profiling)
		if err := profiler.Start(); err != nil {
			return err
		}
		defer func() {
			if err := profiler.Stop(); err != nil {
				logger.Warn("failed to stop profiling: %v", err)
			}
		}()
	}

	a.interactive = false
	rt, err := a.buildRuntime(ctx, cfg, runtimeOptions{openStore: true})
	if err != nil {
		return err
	}
	defer rt.close()

	opts := web.Options{
		Addr:          *listen,
		AuthToken:     *token,
		Calculator:    rt.calculator,
		Store:         rt.store,
		TokenCounter:  rt.counter,
		HistoryBudget: cfg.Agent.HistoryTokenBudget,
		ModelName:     rt.modelName(),
	}
	if rt.agent != nil {
		opts.Agent = rt.agent
	}
	server, err := web.NewServer(opts)
	if err != nil {
		return err
	}

	go func() {
		err := config.Watch(ctx, a.ConfigPath, func(updated *config.Config) {
			calculator, err := newCalculator(updated)
			if err != nil {
				logger.Warn("ignoring calculator settings: %v", err)
				return
			}
			server.SetCalculator(calculator)
		})
		if err != nil {
			logger.Warn("config watcher stopped: %v", err)
		}
	}()

	if *confine {
		if err := sandbox.Restrict(a.sandboxConfig(cfg)); err != nil {
			return fmt.Errorf("failed to apply sandbox: %w", err)
		}
		logger.Info("landlock sandbox applied (supported: %t)", sandbox.Supported())
	}

	fmt.Fprintf(a.Stderr, "Serving on http://%s\n", *listen)
	return server.Serve(ctx)
}

// sandboxConfig allows reading the configuration and writing state only.
func (a *App) sandboxConfig(cfg *config.Config) sandbox.Config {
	readWrite := []string{config.StateDir()}
	if cfg.HistoryPath != "" {
		readWrite = append(readWrite, filepath.Dir(cfg.HistoryPath))
	}
	if cfg.LogPath != "" {
		readWrite = append(readWrite, filepath.Dir(cfg.LogPath))
	}
	return sandbox.Config{
		ReadOnlyPaths:  []string{config.ConfigDir(), filepath.Dir(a.ConfigPath)},
		ReadWritePaths: readWrite,
		BestEffort:     true,
	}
}

// runACP speaks the Agent Client Protocol on stdio, so it never prompts.
func (a *App) runACP(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) > 0 {
		fmt.Fprintln(a.Stderr, "Usage: mathchat acp")
		return ErrUsage
	}
	fmt.Fprintln(a.Stderr, "Starting mathchat in Agent Client Protocol (ACP) mode...")

	a.interactive = false
	rt, err := a.buildRuntime(ctx, cfg, runtimeOptions{openStore: true})
	if err != nil {
		return err
	}
	defer rt.close()

	opts := acp.Options{
		Calculator:    rt.calculator,
		Store:         rt.store,
		TokenCounter:  rt.counter,
		HistoryBudget: cfg.Agent.HistoryTokenBudget,
	}
	if rt.agent != nil {
		opts.Runner = rt.agent
	}
	return acp.Run(ctx, opts)
}

// Package cli implements the mathchat command line: one-shot evaluation and
// questions, the interactive chat, the HTTP server and the ACP agent.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/codefionn/mathchat/internal/config"
	"github.com/codefionn/mathchat/internal/llm"
	"github.com/codefionn/mathchat/internal/logger"
)

// SecretsPasswordEnv supplies the secrets password to commands that cannot
// prompt for it.
const SecretsPasswordEnv = "MATHCHAT_SECRETS_PASSWORD"

// ErrUsage is returned after usage text was printed for invalid arguments.
var ErrUsage = errors.New("invalid usage")

// App holds the process streams and hooks shared by all subcommands.
type App struct {
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader

	// ConfigPath overrides the default configuration file.
	ConfigPath string
	// PromptPassword reads a password without echo; nil uses the terminal.
	PromptPassword func(prompt string) (string, error)

	newClient func(ctx context.Context, opts llm.Options) (llm.Client, error)
	// interactive reports whether the password may be prompted for.
	interactive bool
	stdinReader *bufio.Reader
}

// New returns an App bound to the process streams.
func New() *App {
	return &App{
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Stdin:       os.Stdin,
		ConfigPath:  config.GetConfigPath(),
		newClient:   llm.NewClient,
		interactive: true,
	}
}

type command struct {
	name    string
	args    string
	summary string
	run     func(a *App, ctx context.Context, cfg *config.Config, args []string) error
}

var commands = []command{
	{name: "eval", args: "<expression>", summary: "Evaluate an arithmetic expression", run: (*App).runEval},
	{name: "ask", args: "<question>", summary: "Answer one question and exit", run: (*App).runAsk},
	{name: "chat", args: "[-session id]", summary: "Start the interactive chat", run: (*App).runChat},
	{name: "serve", args: "[-listen addr]", summary: "Serve the HTTP API and web page", run: (*App).runServe},
	{name: "acp", summary: "Run as an Agent Client Protocol agent on stdio", run: (*App).runACP},
	{name: "history", args: "list|show <id>|delete <id>", summary: "Manage saved conversations", run: (*App).runHistory},
	{name: "config", args: "path|set-key <provider>|set-password", summary: "Edit the configuration", run: (*App).runConfig},
}

// IsServe reports whether args select the long running HTTP server.
func IsServe(args []string) bool {
	for _, arg := range args {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		return arg == "serve"
	}
	return false
}

// Run parses global flags, loads the configuration and dispatches to the
// subcommand named by args.
func (a *App) Run(ctx context.Context, args []string) error {
	a.defaults()

	fs := flag.NewFlagSet("mathchat", flag.ContinueOnError)
	fs.SetOutput(a.Stderr)
	var (
		configPath   string
		providerName string
		model        string
		logLevel     string
	)
	fs.StringVar(&configPath, "config", a.ConfigPath, "Path to the configuration file")
	fs.StringVar(&providerName, "provider", "", "Provider name (groq, openai, anthropic, google, openai-compatible)")
	fs.StringVar(&model, "model", "", "Model to use instead of the provider default")
	fs.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error, none)")
	fs.Usage = func() { a.usage(fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return ErrUsage
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return ErrUsage
	}
	if rest[0] == "help" {
		fs.Usage()
		return nil
	}

	cmd, ok := lookupCommand(rest[0])
	if !ok {
		fmt.Fprintf(a.Stderr, "unknown command %q\n\n", rest[0])
		fs.Usage()
		return ErrUsage
	}

	a.ConfigPath = configPath
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnv()
	if providerName != "" {
		cfg.Provider = providerName
	}
	if model != "" {
		cfg.Model = model
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		fmt.Fprintf(a.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}
	logger.Debug("running %s with provider %s", cmd.name, cfg.Provider)

	return cmd.run(a, ctx, cfg, rest[1:])
}

func (a *App) defaults() {
	if a.Stdout == nil {
		a.Stdout = os.Stdout
	}
	if a.Stderr == nil {
		a.Stderr = os.Stderr
	}
	if a.Stdin == nil {
		a.Stdin = os.Stdin
	}
	if a.ConfigPath == "" {
		a.ConfigPath = config.GetConfigPath()
	}
	if a.newClient == nil {
		a.newClient = llm.NewClient
	}
}

func lookupCommand(name string) (command, bool) {
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

func (a *App) usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintln(out, "Usage: mathchat [options] <command> [arguments]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(out, "  %-8s %-28s %s\n", cmd.name, cmd.args, cmd.summary)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Options:")
	fs.PrintDefaults()
}

// newFlagSet builds the flag set of a subcommand.
func (a *App) newFlagSet(name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: mathchat %s %s\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return flag.ErrHelp
		}
		return ErrUsage
	}
	return nil
}

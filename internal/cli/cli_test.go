package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/mathchat/internal/config"
	"github.com/codefionn/mathchat/internal/llm"
	"github.com/codefionn/mathchat/internal/provider"
	"github.com/codefionn/mathchat/internal/secrets"
	"github.com/codefionn/mathchat/internal/session"
)

// scriptedClient answers each request with the next scripted reply.
type scriptedClient struct {
	mu      sync.Mutex
	replies []string
}

func (c *scriptedClient) next() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	reply := c.replies[0]
	if len(c.replies) > 1 {
		c.replies = c.replies[1:]
	}
	return reply
}

func (c *scriptedClient) CompleteWithRequest(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Content: c.next(), Usage: &llm.Usage{InputTokens: 10, OutputTokens: 2}}, nil
}

func (c *scriptedClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.next(), nil
}

func (c *scriptedClient) Stream(ctx context.Context, req *llm.CompletionRequest, callback func(chunk string) error) error {
	return callback(c.next())
}

func (c *scriptedClient) GetModelName() string { return "scripted" }

type testApp struct {
	*App
	stdout    *bytes.Buffer
	stderr    *bytes.Buffer
	passwords []string
	clientOpt *llm.Options
}

// newTestApp writes a config file with logging disabled and history in a
// temporary directory.
func newTestApp(t *testing.T, client llm.Client) *testApp {
	t.Helper()
	t.Setenv("MATHCHAT_LOG_LEVEL", "none")
	t.Setenv("MATHCHAT_PROVIDER", "")
	t.Setenv("MATHCHAT_MODEL", "")
	for _, name := range provider.Names() {
		for _, env := range provider.EnvVarHints(name) {
			t.Setenv(env, "")
		}
	}

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.LogLevel = "none"
	cfg.HistoryPath = filepath.Join(dir, "history.db")
	cfgPath := filepath.Join(dir, "config.json")
	require.NoError(t, cfg.Save(cfgPath))

	ta := &testApp{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	ta.App = &App{
		Stdout:     ta.stdout,
		Stderr:     ta.stderr,
		Stdin:      strings.NewReader(""),
		ConfigPath: cfgPath,
		PromptPassword: func(prompt string) (string, error) {
			require.NotEmpty(t, ta.passwords, "unexpected prompt %q", prompt)
			pw := ta.passwords[0]
			ta.passwords = ta.passwords[1:]
			return pw, nil
		},
		newClient: func(ctx context.Context, opts llm.Options) (llm.Client, error) {
			ta.clientOpt = &opts
			return client, nil
		},
		interactive: true,
	}
	return ta
}

func (ta *testApp) loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(ta.ConfigPath)
	require.NoError(t, err)
	return cfg
}

func TestEvalPrintsResult(t *testing.T) {
	ta := newTestApp(t, nil)

	require.NoError(t, ta.Run(context.Background(), []string{"eval", "2", "+", "2*3"}))
	assert.Equal(t, "Result: 8\n", ta.stdout.String())
}

func TestEvalFailureIsOutput(t *testing.T) {
	ta := newTestApp(t, nil)

	require.NoError(t, ta.Run(context.Background(), []string{"eval", "1/0"}))
	assert.True(t, strings.HasPrefix(ta.stdout.String(), "Error: "), ta.stdout.String())
}

func TestEvalRequiresExpression(t *testing.T) {
	ta := newTestApp(t, nil)

	err := ta.Run(context.Background(), []string{"eval"})
	assert.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, ta.stderr.String(), "Usage: mathchat eval")
}

func TestUnknownCommand(t *testing.T) {
	ta := newTestApp(t, nil)

	err := ta.Run(context.Background(), []string{"plot"})
	assert.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, ta.stderr.String(), `unknown command "plot"`)
	assert.Contains(t, ta.stderr.String(), "Commands:")
}

func TestNoCommandPrintsUsage(t *testing.T) {
	ta := newTestApp(t, nil)

	assert.ErrorIs(t, ta.Run(context.Background(), nil), ErrUsage)
	assert.Contains(t, ta.stderr.String(), "Usage: mathchat")
}

func TestHelpCommand(t *testing.T) {
	ta := newTestApp(t, nil)

	require.NoError(t, ta.Run(context.Background(), []string{"help"}))
	for _, cmd := range commands {
		assert.Contains(t, ta.stderr.String(), cmd.name)
	}
}

func TestAskPrintsAnswerAndSteps(t *testing.T) {
	client := &scriptedClient{replies: []string{
		" I should add.\nAction: Calculator\nAction Input: 2+2",
		" I now know the final answer\nFinal Answer: 4",
	}}
	ta := newTestApp(t, client)
	t.Setenv("GROQ_API_KEY", "gsk-test")

	require.NoError(t, ta.Run(context.Background(), []string{"ask", "What", "is", "2+2?"}))
	assert.Equal(t, "4\n", ta.stdout.String())
	assert.Contains(t, ta.stderr.String(), "Action: Calculator[2+2]")
	assert.Contains(t, ta.stderr.String(), "Observation: Result: 4")

	require.NotNil(t, ta.clientOpt)
	assert.Equal(t, "gsk-test", ta.clientOpt.APIKey)
	assert.Equal(t, provider.Groq, ta.clientOpt.Provider)
}

func TestAskQuiet(t *testing.T) {
	client := &scriptedClient{replies: []string{"Final Answer: 4"}}
	ta := newTestApp(t, client)
	t.Setenv("GROQ_API_KEY", "gsk-test")

	require.NoError(t, ta.Run(context.Background(), []string{"ask", "-quiet", "2+2?"}))
	assert.Equal(t, "4\n", ta.stdout.String())
	assert.NotContains(t, ta.stderr.String(), "Thought:")
}

func TestAskWithoutKeyFails(t *testing.T) {
	ta := newTestApp(t, &scriptedClient{replies: []string{"Final Answer: 4"}})

	err := ta.Run(context.Background(), []string{"ask", "2+2?"})
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrNoAPIKey)
	assert.Nil(t, ta.clientOpt)
}

func TestGlobalFlagsOverrideConfig(t *testing.T) {
	client := &scriptedClient{replies: []string{"Final Answer: 4"}}
	ta := newTestApp(t, client)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	require.NoError(t, ta.Run(context.Background(), []string{"-provider", "openai", "-model", "gpt-test", "ask", "2+2?"}))
	require.NotNil(t, ta.clientOpt)
	assert.Equal(t, provider.OpenAI, ta.clientOpt.Provider)
	assert.Equal(t, "gpt-test", ta.clientOpt.Model)
	assert.Equal(t, "sk-test", ta.clientOpt.APIKey)
}

func TestSetKeyPlainText(t *testing.T) {
	ta := newTestApp(t, nil)
	ta.passwords = []string{"gsk-stored"}

	require.NoError(t, ta.Run(context.Background(), []string{"config", "set-key", "groq"}))
	assert.Contains(t, ta.stdout.String(), "in plain text")

	cfg := ta.loadConfig(t)
	key, err := cfg.APIKey(provider.Groq)
	require.NoError(t, err)
	assert.Equal(t, "gsk-stored", key)
}

func TestSetKeyUnknownProvider(t *testing.T) {
	ta := newTestApp(t, nil)

	err := ta.Run(context.Background(), []string{"config", "set-key", "nope"})
	assert.Error(t, err)
}

func TestEncryptedKeyRoundTrip(t *testing.T) {
	client := &scriptedClient{replies: []string{"Final Answer: 4"}}
	ta := newTestApp(t, client)

	ta.passwords = []string{"hunter2", "hunter2"}
	require.NoError(t, ta.Run(context.Background(), []string{"config", "set-password"}))

	ta.passwords = []string{"hunter2", "gsk-secret"}
	require.NoError(t, ta.Run(context.Background(), []string{"config", "set-key", "groq"}))
	assert.Contains(t, ta.stdout.String(), "encrypted")

	raw, err := os.ReadFile(ta.ConfigPath)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "gsk-secret")
	assert.Contains(t, string(raw), secrets.SealedPrefix)

	ta.passwords = []string{"wrong", "hunter2"}
	require.NoError(t, ta.Run(context.Background(), []string{"ask", "2+2?"}))
	assert.Contains(t, ta.stderr.String(), "Invalid password, try again.")
	require.NotNil(t, ta.clientOpt)
	assert.Equal(t, "gsk-secret", ta.clientOpt.APIKey)
}

func TestSecretsPasswordFromEnvironment(t *testing.T) {
	client := &scriptedClient{replies: []string{"Final Answer: 4"}}
	ta := newTestApp(t, client)

	cfg := ta.loadConfig(t)
	cfg.SetAPIKey(provider.Groq, "gsk-env")
	cfg.UpdateSecretsPassword("from-env")
	require.NoError(t, cfg.Save(ta.ConfigPath))

	t.Setenv(SecretsPasswordEnv, "from-env")
	ta.interactive = false
	require.NoError(t, ta.Run(context.Background(), []string{"ask", "2+2?"}))
	assert.Equal(t, "gsk-env", ta.clientOpt.APIKey)
}

func TestNonInteractiveNeedsPasswordEnv(t *testing.T) {
	ta := newTestApp(t, nil)

	cfg := ta.loadConfig(t)
	cfg.SetAPIKey(provider.Groq, "gsk-env")
	cfg.UpdateSecretsPassword("secret")
	require.NoError(t, cfg.Save(ta.ConfigPath))

	ta.interactive = false
	err := ta.ensureSecretsPassword(ta.loadConfig(t))
	assert.ErrorIs(t, err, secrets.ErrPasswordRequired)
}

func TestTooManyPasswordAttempts(t *testing.T) {
	ta := newTestApp(t, nil)

	cfg := ta.loadConfig(t)
	cfg.SetAPIKey(provider.Groq, "gsk")
	cfg.UpdateSecretsPassword("right")
	require.NoError(t, cfg.Save(ta.ConfigPath))

	ta.passwords = []string{"a", "b", "c"}
	err := ta.ensureSecretsPassword(ta.loadConfig(t))
	assert.EqualError(t, err, "too many invalid password attempts")
}

func TestSetPasswordMismatch(t *testing.T) {
	ta := newTestApp(t, nil)
	ta.passwords = []string{"one", "two"}

	err := ta.Run(context.Background(), []string{"config", "set-password"})
	assert.EqualError(t, err, "passwords do not match")
}

func TestConfigPath(t *testing.T) {
	ta := newTestApp(t, nil)

	require.NoError(t, ta.Run(context.Background(), []string{"config", "path"}))
	assert.Equal(t, ta.ConfigPath+"\n", ta.stdout.String())
}

func TestHistoryCommands(t *testing.T) {
	ta := newTestApp(t, nil)
	cfg := ta.loadConfig(t)

	store, err := session.OpenStore(cfg.HistoryPath)
	require.NoError(t, err)
	sess := session.NewSession("quiet-otter")
	sess.Title = "What is 2+2?"
	sess.Add(llm.RoleUser, "What is 2+2?")
	sess.Add(llm.RoleAssistant, "4")
	require.NoError(t, store.Save(context.Background(), sess))
	require.NoError(t, store.Close())

	require.NoError(t, ta.Run(context.Background(), []string{"history", "list"}))
	assert.Contains(t, ta.stdout.String(), "quiet-otter")
	assert.Contains(t, ta.stdout.String(), "What is 2+2?")

	ta.stdout.Reset()
	require.NoError(t, ta.Run(context.Background(), []string{"history", "show", "quiet-otter"}))
	assert.Contains(t, ta.stdout.String(), "user: What is 2+2?")
	assert.Contains(t, ta.stdout.String(), "assistant: 4")

	ta.stdout.Reset()
	require.NoError(t, ta.Run(context.Background(), []string{"history", "delete", "quiet-otter"}))

	ta.stdout.Reset()
	require.NoError(t, ta.Run(context.Background(), []string{"history", "list"}))
	assert.Equal(t, "No saved conversations.\n", ta.stdout.String())
}

func TestHistoryUsage(t *testing.T) {
	ta := newTestApp(t, nil)

	assert.ErrorIs(t, ta.Run(context.Background(), []string{"history", "show"}), ErrUsage)
	assert.ErrorIs(t, ta.Run(context.Background(), []string{"history"}), ErrUsage)
}

func TestIsServe(t *testing.T) {
	assert.True(t, IsServe([]string{"serve"}))
	assert.True(t, IsServe([]string{"-config=/tmp/mathchat.json", "serve"}))
	assert.False(t, IsServe([]string{"eval", "serve"}))
	assert.False(t, IsServe(nil))
}

func TestSandboxConfigPaths(t *testing.T) {
	ta := newTestApp(t, nil)
	cfg := ta.loadConfig(t)

	sc := ta.sandboxConfig(cfg)
	assert.Contains(t, sc.ReadOnlyPaths, filepath.Dir(ta.ConfigPath))
	assert.Contains(t, sc.ReadWritePaths, filepath.Dir(cfg.HistoryPath))
	assert.True(t, sc.BestEffort)
}

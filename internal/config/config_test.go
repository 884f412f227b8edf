package config

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codefionn/mathchat/internal/calc"
	"github.com/codefionn/mathchat/internal/secrets"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Provider != "groq" {
		t.Errorf("default provider = %q, want groq", cfg.Provider)
	}
	if cfg.ModelName() != "gemma2-9b-it" {
		t.Errorf("default model = %q", cfg.ModelName())
	}
	if cfg.Agent.MaxIterations != 15 {
		t.Errorf("default max iterations = %d", cfg.Agent.MaxIterations)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"provider":"openai","calculator":{"mode":"strict"}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Provider != "openai" {
		t.Errorf("provider = %q", cfg.Provider)
	}
	opts, err := cfg.CalculatorOptions()
	if err != nil {
		t.Fatalf("CalculatorOptions returned error: %v", err)
	}
	if opts.Mode != calc.ModeStrict {
		t.Errorf("mode = %v, want strict", opts.Mode)
	}
	if opts.MaxLength != calc.DefaultMaxLength || opts.MaxDepth != calc.DefaultMaxDepth {
		t.Errorf("limits not defaulted: %+v", opts)
	}
	if cfg.Wikipedia.TopK != 3 {
		t.Errorf("wikipedia top_k = %d, want default 3", cfg.Wikipedia.TopK)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"unknown provider": `{"provider":"nope"}`,
		"unknown mode":     `{"calculator":{"mode":"loose"}}`,
		"temperature":      `{"temperature":3}`,
		"missing base url": `{"provider":"openai-compatible"}`,
		"bad json":         `{`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Fatalf("Load accepted %s", content)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MATHCHAT_LOG_LEVEL", "debug")
	t.Setenv("MATHCHAT_PROVIDER", "anthropic")
	t.Setenv("MATHCHAT_MODEL", "claude-test")

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	if cfg.LogLevel != "debug" || cfg.Provider != "anthropic" || cfg.ModelName() != "claude-test" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestSaveSealsKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	cfg := DefaultConfig()
	cfg.SetAPIKey("groq", "gsk_plain")
	cfg.UpdateSecretsPassword("pw")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "gsk_plain") {
		t.Fatal("saved config contains the plain key")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config permissions = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !loaded.HasSealedKeys() {
		t.Fatal("expected sealed keys after load")
	}
	if _, err := loaded.APIKey("groq"); !errors.Is(err, secrets.ErrPasswordRequired) {
		t.Fatalf("APIKey before unlock: err = %v", err)
	}
	if err := loaded.ApplySecretsPassword("wrong"); !errors.Is(err, secrets.ErrInvalidPassword) {
		t.Fatalf("wrong password: err = %v", err)
	}
	if err := loaded.ApplySecretsPassword("pw"); err != nil {
		t.Fatalf("ApplySecretsPassword returned error: %v", err)
	}
	key, err := loaded.APIKey("GROQ")
	if err != nil || key != "gsk_plain" {
		t.Fatalf("APIKey = %q, %v", key, err)
	}
}

func TestSaveWithoutPasswordKeepsPlainKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := DefaultConfig()
	cfg.SetAPIKey("openai", "sk-plain")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	keys := decoded["api_keys"].(map[string]interface{})
	if keys["openai"] != "sk-plain" {
		t.Errorf("api_keys = %v", keys)
	}
	if _, ok := decoded["secrets"].(map[string]interface{})["verifier"]; ok {
		t.Error("verifier written without a password")
	}
}

func TestRateLimitInterval(t *testing.T) {
	tests := []struct {
		cfg  RateLimitConfig
		want time.Duration
	}{
		{RateLimitConfig{}, 0},
		{RateLimitConfig{MinIntervalMillis: 500}, 500 * time.Millisecond},
		{RateLimitConfig{RequestsPerMinute: 30}, 2 * time.Second},
		{RateLimitConfig{RequestsPerMinute: 600, MinIntervalMillis: 500}, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := tt.cfg.Interval(); got != tt.want {
			t.Errorf("Interval(%+v) = %v, want %v", tt.cfg, got, tt.want)
		}
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := DefaultConfig().Save(path); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) {
			select {
			case reloaded <- c:
			default:
			}
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	updated := DefaultConfig()
	updated.Calculator.MaxDepth = 8
	if err := updated.Save(path); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-reloaded:
		if c.Calculator.MaxDepth != 8 {
			t.Errorf("reloaded max depth = %d, want 8", c.Calculator.MaxDepth)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned error: %v", err)
	}
}

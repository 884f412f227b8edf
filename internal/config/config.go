package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/codefionn/mathchat/internal/calc"
	"github.com/codefionn/mathchat/internal/provider"
	"github.com/codefionn/mathchat/internal/secrets"
)

const appName = "mathchat"

// verifierText is sealed with the secrets password so a wrong password is
// detected before any key is used.
const verifierText = appName

// CalculatorConfig bounds the expression evaluator.
type CalculatorConfig struct {
	Mode      string `json:"mode"` // "functions" or "strict"
	MaxLength int    `json:"max_length"`
	MaxDepth  int    `json:"max_depth"`
}

// WikipediaConfig configures the knowledge lookup tool.
type WikipediaConfig struct {
	Language       string `json:"language"`
	TopK           int    `json:"top_k"`
	MaxChars       int    `json:"max_chars"`
	CacheEntries   int    `json:"cache_entries"`
	UserAgent      string `json:"user_agent,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// AgentConfig configures the question answering loop.
type AgentConfig struct {
	MaxIterations      int `json:"max_iterations"`
	HistoryTokenBudget int `json:"history_token_budget"`
	RequestTimeoutSecs int `json:"request_timeout_seconds"`
	ReasoningMaxTokens int `json:"reasoning_max_tokens"`
}

// ServerConfig configures `mathchat serve`.
type ServerConfig struct {
	Listen    string `json:"listen"`
	AuthToken string `json:"auth_token,omitempty"`
	// Sandbox confines the server process to its config and state directories (Linux only).
	Sandbox bool `json:"sandbox"`
}

// RateLimitConfig controls how quickly requests are sent to the provider.
type RateLimitConfig struct {
	// RequestsPerMinute enforces a ceiling on request throughput.
	// If both fields are set, the slower effective interval wins.
	RequestsPerMinute int `json:"requests_per_minute,omitempty"`
	MinIntervalMillis int `json:"min_interval_ms,omitempty"`
	TokensPerMinute   int `json:"tokens_per_minute,omitempty"`
}

// Interval returns the minimum delay between two requests, or zero.
func (r RateLimitConfig) Interval() time.Duration {
	var interval time.Duration
	if r.MinIntervalMillis > 0 {
		interval = time.Duration(r.MinIntervalMillis) * time.Millisecond
	}
	if r.RequestsPerMinute > 0 {
		rpmInterval := time.Minute / time.Duration(r.RequestsPerMinute)
		if interval == 0 || rpmInterval > interval {
			interval = rpmInterval
		}
	}
	return interval
}

// SecretsSettings keeps track of password-protection state.
type SecretsSettings struct {
	PasswordSet bool   `json:"password_set,omitempty"`
	Verifier    string `json:"verifier,omitempty"`
}

// Config represents application configuration
type Config struct {
	Provider    string            `json:"provider"`
	Model       string            `json:"model,omitempty"`
	BaseURL     string            `json:"base_url,omitempty"` // openai-compatible only
	APIKeys     map[string]string `json:"api_keys,omitempty"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens"`
	LogLevel    string            `json:"log_level"` // debug, info, warn, error, none
	LogPath     string            `json:"-"`
	HistoryPath string            `json:"history_path,omitempty"`
	Calculator  CalculatorConfig  `json:"calculator"`
	Wikipedia   WikipediaConfig   `json:"wikipedia"`
	Agent       AgentConfig       `json:"agent"`
	Server      ServerConfig      `json:"server"`
	RateLimit   RateLimitConfig   `json:"rate_limit"`
	Secrets     SecretsSettings   `json:"secrets,omitempty"`

	secretsPassword string
}

// ConfigDir returns the per-user configuration directory.
func ConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, appName)
		}
		return filepath.Join(homeDir, "AppData", "Roaming", appName)
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", appName)
	default:
		if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
			return filepath.Join(xdg, appName)
		}
		return filepath.Join(homeDir, ".config", appName)
	}
}

// StateDir returns the per-user directory for logs and chat history.
func StateDir() string {
	homeDir, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, appName)
		}
		return filepath.Join(homeDir, "AppData", "Local", appName)
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", appName, "state")
	default:
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, appName)
		}
		return filepath.Join(homeDir, ".local", "state", appName)
	}
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	stateDir := StateDir()
	return &Config{
		Provider:    provider.Groq,
		APIKeys:     make(map[string]string),
		Temperature: 0.2,
		MaxTokens:   1024,
		LogLevel:    "info",
		LogPath:     filepath.Join(stateDir, appName+".log"),
		HistoryPath: filepath.Join(stateDir, "history.db"),
		Calculator: CalculatorConfig{
			Mode:      calc.ModeFunctions.String(),
			MaxLength: calc.DefaultMaxLength,
			MaxDepth:  calc.DefaultMaxDepth,
		},
		Wikipedia: WikipediaConfig{
			Language:       "en",
			TopK:           3,
			MaxChars:       4000,
			CacheEntries:   128,
			TimeoutSeconds: 15,
		},
		Agent: AgentConfig{
			MaxIterations:      15,
			HistoryTokenBudget: 3000,
			RequestTimeoutSecs: 120,
			ReasoningMaxTokens: 1024,
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8501",
		},
	}
}

// Load loads configuration from file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	// Unmarshal into the defaults so absent fields keep their default value.
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	defaults := DefaultConfig()
	if cfg.Provider == "" {
		cfg.Provider = defaults.Provider
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.LogPath == "" {
		cfg.LogPath = defaults.LogPath
	}
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = defaults.HistoryPath
	}
	if cfg.APIKeys == nil {
		cfg.APIKeys = make(map[string]string)
	}
	if cfg.Calculator.MaxLength <= 0 {
		cfg.Calculator.MaxLength = defaults.Calculator.MaxLength
	}
	if cfg.Calculator.MaxDepth <= 0 {
		cfg.Calculator.MaxDepth = defaults.Calculator.MaxDepth
	}
	if cfg.Agent.MaxIterations <= 0 {
		cfg.Agent.MaxIterations = defaults.Agent.MaxIterations
	}

	return cfg, cfg.Validate()
}

// Validate checks values that would otherwise fail much later.
func (c *Config) Validate() error {
	if _, err := provider.Lookup(c.Provider); err != nil {
		return err
	}
	if _, err := calc.ParseMode(c.Calculator.Mode); err != nil {
		return err
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature %.2f out of range [0, 2]", c.Temperature)
	}
	if provider.Canonical(c.Provider) == provider.OpenAICompatible && strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("provider %s requires base_url", provider.OpenAICompatible)
	}
	return nil
}

// ApplyEnv applies MATHCHAT_* environment overrides.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("MATHCHAT_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("MATHCHAT_LOG_PATH")); v != "" {
		c.LogPath = v
	}
	if v := strings.TrimSpace(os.Getenv("MATHCHAT_PROVIDER")); v != "" {
		c.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("MATHCHAT_MODEL")); v != "" {
		c.Model = v
	}
}

// CalculatorOptions converts the calculator section for calc.New.
func (c *Config) CalculatorOptions() (calc.Options, error) {
	mode, err := calc.ParseMode(c.Calculator.Mode)
	if err != nil {
		return calc.Options{}, err
	}
	return calc.Options{
		Mode:      mode,
		MaxLength: c.Calculator.MaxLength,
		MaxDepth:  c.Calculator.MaxDepth,
	}, nil
}

// ModelName returns the configured model or the provider default.
func (c *Config) ModelName() string {
	if m := strings.TrimSpace(c.Model); m != "" {
		return m
	}
	info, err := provider.Lookup(c.Provider)
	if err != nil {
		return ""
	}
	return info.DefaultModel
}

// Save writes the configuration, sealing API keys when a password is active.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	data, err := c.marshalWithSealedSecrets()
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// SetAPIKey stores key for providerName in memory; Save persists it.
func (c *Config) SetAPIKey(providerName, key string) {
	if c.APIKeys == nil {
		c.APIKeys = make(map[string]string)
	}
	name := provider.Canonical(providerName)
	if key == "" {
		delete(c.APIKeys, name)
		return
	}
	c.APIKeys[name] = key
}

// APIKey returns the stored key for providerName. Sealed keys require
// ApplySecretsPassword first.
func (c *Config) APIKey(providerName string) (string, error) {
	value := c.APIKeys[provider.Canonical(providerName)]
	if secrets.IsSealed(value) {
		return "", fmt.Errorf("API key for %s is encrypted: %w", providerName, secrets.ErrPasswordRequired)
	}
	return value, nil
}

// HasSealedKeys reports whether any stored key needs the secrets password.
func (c *Config) HasSealedKeys() bool {
	for _, v := range c.APIKeys {
		if secrets.IsSealed(v) {
			return true
		}
	}
	return false
}

// ApplySecretsPassword verifies password and decrypts stored keys in memory.
func (c *Config) ApplySecretsPassword(password string) error {
	if c.Secrets.PasswordSet && c.Secrets.Verifier != "" {
		text, err := secrets.Open(c.Secrets.Verifier, password)
		if err != nil {
			return err
		}
		if text != verifierText {
			return secrets.ErrInvalidPassword
		}
	}

	opened := make(map[string]string, len(c.APIKeys))
	for name, value := range c.APIKeys {
		plain, err := secrets.Open(value, password)
		if err != nil {
			return fmt.Errorf("open API key for %s: %w", name, err)
		}
		opened[name] = plain
	}
	c.APIKeys = opened
	c.secretsPassword = password
	return nil
}

// UpdateSecretsPassword switches the password used when saving. An empty
// password stores keys in plain text.
func (c *Config) UpdateSecretsPassword(password string) {
	c.secretsPassword = password
	c.Secrets.PasswordSet = password != ""
	c.Secrets.Verifier = ""
}

func (c *Config) marshalWithSealedSecrets() ([]byte, error) {
	copyCfg := *c
	copyCfg.APIKeys = make(map[string]string, len(c.APIKeys))

	names := make([]string, 0, len(c.APIKeys))
	for name := range c.APIKeys {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := c.APIKeys[name]
		if c.secretsPassword != "" && !secrets.IsSealed(value) {
			sealed, err := secrets.Seal(value, c.secretsPassword)
			if err != nil {
				return nil, err
			}
			value = sealed
		}
		copyCfg.APIKeys[name] = value
	}

	if c.secretsPassword != "" {
		verifier, err := secrets.Seal(verifierText, c.secretsPassword)
		if err != nil {
			return nil, err
		}
		copyCfg.Secrets = SecretsSettings{PasswordSet: true, Verifier: verifier}
	} else {
		copyCfg.Secrets = SecretsSettings{}
	}

	return json.MarshalIndent(&copyCfg, "", "  ")
}

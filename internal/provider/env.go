package provider

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when a provider needs a key and none is configured.
var ErrNoAPIKey = errors.New("no API key configured")

// ResolveAPIKey returns the key for a provider. Environment variables win over
// the configured value so a deployment can override the config file.
func ResolveAPIKey(providerName, configured string) string {
	for _, envVar := range EnvVarHints(providerName) {
		if value := strings.TrimSpace(os.Getenv(envVar)); value != "" {
			return value
		}
	}
	return strings.TrimSpace(configured)
}

// RequireAPIKey is ResolveAPIKey that fails for providers which cannot work
// without a key.
func RequireAPIKey(providerName, configured string) (string, error) {
	info, err := Lookup(providerName)
	if err != nil {
		return "", err
	}
	key := ResolveAPIKey(info.Name, configured)
	if key == "" && info.KeyRequired {
		return "", fmt.Errorf("%w for %s: set %s or store one with `mathchat config set-key %s`",
			ErrNoAPIKey, info.DisplayName, strings.Join(info.EnvVars, " or "), info.Name)
	}
	return key, nil
}

// EnvVarHints returns the environment variables consulted for a provider.
func EnvVarHints(providerName string) []string {
	info, ok := providers[Canonical(providerName)]
	if !ok {
		return nil
	}
	return append([]string(nil), info.EnvVars...)
}

// Package provider describes the supported LLM providers and where their
// credentials come from.
package provider

import (
	"fmt"
	"sort"
	"strings"
)

const (
	Groq             = "groq"
	OpenAI           = "openai"
	Anthropic        = "anthropic"
	Google           = "google"
	OpenAICompatible = "openai-compatible"
)

// Info describes one provider.
type Info struct {
	Name         string
	DisplayName  string
	DefaultModel string
	// BaseURL is only set for providers spoken to over the OpenAI-compatible wire format.
	BaseURL string
	EnvVars []string
	// KeyRequired is false for self-hosted endpoints that accept anonymous requests.
	KeyRequired bool
}

var providers = map[string]Info{
	Groq: {
		Name:         Groq,
		DisplayName:  "Groq",
		DefaultModel: "gemma2-9b-it",
		BaseURL:      "https://api.groq.com/openai/v1",
		EnvVars:      []string{"GROQ_API_KEY"},
		KeyRequired:  true,
	},
	OpenAI: {
		Name:         OpenAI,
		DisplayName:  "OpenAI",
		DefaultModel: "gpt-4o-mini",
		EnvVars:      []string{"OPENAI_API_KEY"},
		KeyRequired:  true,
	},
	Anthropic: {
		Name:         Anthropic,
		DisplayName:  "Anthropic",
		DefaultModel: "claude-3-5-haiku-latest",
		EnvVars:      []string{"ANTHROPIC_API_KEY"},
		KeyRequired:  true,
	},
	Google: {
		Name:         Google,
		DisplayName:  "Google Gemini",
		DefaultModel: "gemini-2.0-flash",
		EnvVars:      []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "GOOGLE_GENAI_API_KEY"},
		KeyRequired:  true,
	},
	OpenAICompatible: {
		Name:        OpenAICompatible,
		DisplayName: "OpenAI-compatible",
		EnvVars:     []string{"OPENAI_COMPATIBLE_API_KEY"},
	},
}

// Canonical normalizes provider aliases.
func Canonical(name string) string {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "", "groq", "groqcloud":
		return Groq
	case "google", "googleai", "gemini":
		return Google
	case "claude":
		return Anthropic
	case "compatible", "openai_compatible", "local":
		return OpenAICompatible
	default:
		return n
	}
}

// Lookup returns the provider registered under name or one of its aliases.
func Lookup(name string) (Info, error) {
	info, ok := providers[Canonical(name)]
	if !ok {
		return Info{}, fmt.Errorf("unknown provider %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	out := info
	out.EnvVars = append([]string(nil), info.EnvVars...)
	return out, nil
}

// Names lists the canonical provider names in sorted order.
func Names() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package securemem

import (
	"sort"
	"strings"
	"sync"
)

// Keyring maps provider names to their API keys.
type Keyring struct {
	mu      sync.RWMutex
	secrets map[string]*Secret
}

func NewKeyring() *Keyring {
	return &Keyring{secrets: make(map[string]*Secret)}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Set stores key for provider, replacing and destroying any previous value.
// An empty key removes the entry.
func (k *Keyring) Set(provider, key string) {
	name := normalizeName(provider)
	k.mu.Lock()
	defer k.mu.Unlock()

	if old, ok := k.secrets[name]; ok {
		old.Destroy()
		delete(k.secrets, name)
	}
	if key != "" {
		k.secrets[name] = NewSecret(key)
	}
}

// Get returns the secret for provider, or nil.
func (k *Keyring) Get(provider string) *Secret {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.secrets[normalizeName(provider)]
}

func (k *Keyring) Has(provider string) bool {
	return !k.Get(provider).IsEmpty()
}

// Providers lists the providers with a stored key in sorted order.
func (k *Keyring) Providers() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	names := make([]string, 0, len(k.secrets))
	for name := range k.secrets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear destroys every stored secret.
func (k *Keyring) Clear() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for name, s := range k.secrets {
		s.Destroy()
		delete(k.secrets, name)
	}
}

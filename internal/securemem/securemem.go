// Package securemem keeps API keys and access tokens in memguard-protected
// memory so they stay out of swap and core dumps and are wiped on exit.
package securemem

import (
	"crypto/subtle"
	"sync"

	"github.com/awnumar/memguard"
)

// Secret is a sensitive value held in an encrypted enclave. The zero value
// and a nil *Secret are both empty.
type Secret struct {
	mu      sync.RWMutex
	enclave *memguard.Enclave
	size    int
}

// NewSecret moves plaintext into protected memory.
func NewSecret(plaintext string) *Secret {
	if plaintext == "" {
		return &Secret{}
	}
	buf := memguard.NewBufferFromBytes([]byte(plaintext))
	size := buf.Size()
	return &Secret{enclave: buf.Seal(), size: size}
}

// Reveal decrypts the value for the duration of fn. fn must not retain the
// string it receives beyond the call.
func (s *Secret) Reveal(fn func(plaintext string)) error {
	if s == nil {
		fn("")
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.enclave == nil {
		fn("")
		return nil
	}
	buf, err := s.enclave.Open()
	if err != nil {
		return err
	}
	defer buf.Destroy()
	fn(buf.String())
	return nil
}

// Equal compares the secret with candidate in constant time.
func (s *Secret) Equal(candidate string) bool {
	matched := false
	err := s.Reveal(func(plaintext string) {
		matched = subtle.ConstantTimeCompare([]byte(plaintext), []byte(candidate)) == 1
	})
	return err == nil && matched
}

// IsEmpty reports whether the secret holds no value.
func (s *Secret) IsEmpty() bool {
	if s == nil {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enclave == nil || s.size == 0
}

// Destroy drops the enclave. The secret is empty afterwards.
func (s *Secret) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enclave = nil
	s.size = 0
}

// String never prints the value so a Secret can be logged safely.
func (s *Secret) String() string {
	if s.IsEmpty() {
		return "[empty]"
	}
	return "[redacted]"
}

// Init installs memguard's interrupt handler, which wipes protected memory
// when the process is interrupted.
func Init() {
	memguard.CatchInterrupt()
}

// Purge wipes all protected memory. Call it on normal exit.
func Purge() {
	memguard.Purge()
}

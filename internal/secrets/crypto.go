// Package secrets seals API keys stored in the configuration file with a
// password-derived key (scrypt + AES-256-GCM).
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// SealedPrefix marks a sealed value in the configuration file.
const SealedPrefix = "enc:"

const (
	formatVersion byte = 1
	saltSize           = 16
	keySize            = 32

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

var (
	// ErrInvalidPassword is returned when the password cannot open a sealed value.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrMalformed indicates a sealed value that cannot be decoded.
	ErrMalformed = errors.New("malformed sealed value")
	// ErrPasswordRequired is returned when sealing or opening without a password.
	ErrPasswordRequired = errors.New("password required")
)

// IsSealed reports whether value was produced by Seal.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}

// Seal encrypts plaintext. The layout after the prefix is
// base64(version | salt | nonce | ciphertext). Empty plaintext stays empty.
func Seal(plaintext, password string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	if password == "" {
		return "", ErrPasswordRequired
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	aead, err := newAEAD(password, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	header := make([]byte, 0, 1+saltSize+len(nonce))
	header = append(header, formatVersion)
	header = append(header, salt...)
	header = append(header, nonce...)

	// The header is authenticated so a tampered salt or version fails to open.
	sealed := aead.Seal(header, nonce, []byte(plaintext), header)
	return SealedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. Values without the prefix are
// returned unchanged, so plain keys in the configuration keep working.
func Open(value, password string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	if password == "" {
		return "", ErrPasswordRequired
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, SealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) < 1+saltSize || raw[0] != formatVersion {
		return "", ErrMalformed
	}

	salt := raw[1 : 1+saltSize]
	aead, err := newAEAD(password, salt)
	if err != nil {
		return "", err
	}

	headerLen := 1 + saltSize + aead.NonceSize()
	if len(raw) < headerLen+aead.Overhead() {
		return "", ErrMalformed
	}
	header := raw[:headerLen]
	nonce := raw[1+saltSize : headerLen]

	plaintext, err := aead.Open(nil, nonce, raw[headerLen:], header)
	if err != nil {
		return "", ErrInvalidPassword
	}
	return string(plaintext), nil
}

func newAEAD(password string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return aead, nil
}

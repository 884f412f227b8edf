//go:build !linux

package sandbox

import "github.com/codefionn/mathchat/internal/logger"

// Restrict is a no-op on non-Linux systems.
func Restrict(cfg Config) error {
	logger.Debug("landlock sandboxing not available on this platform")
	return nil
}

// Supported reports whether this build can apply restrictions.
func Supported() bool {
	return false
}

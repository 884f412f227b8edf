//go:build linux

package sandbox

import (
	"fmt"
	"os"

	landlock "github.com/landlock-lsm/go-landlock/landlock"

	"github.com/codefionn/mathchat/internal/logger"
)

// Restrict applies Landlock filesystem restrictions to the current process
// and every thread it owns. It cannot be undone.
func Restrict(cfg Config) error {
	paths := AllowedPaths(cfg)

	// Landlock rejects directory access rights on regular files.
	rules := make([]landlock.Rule, 0, len(paths))
	var ro, rw int
	for _, perm := range paths {
		isFile := false
		if info, err := os.Stat(perm.Path); err == nil && !info.IsDir() {
			isFile = true
		}
		switch {
		case perm.Access == AccessReadWrite && isFile:
			rules = append(rules, landlock.RWFiles(perm.Path))
			rw++
		case perm.Access == AccessReadWrite:
			rules = append(rules, landlock.RWDirs(perm.Path))
			rw++
		case isFile:
			rules = append(rules, landlock.ROFiles(perm.Path))
			ro++
		default:
			rules = append(rules, landlock.RODirs(perm.Path))
			ro++
		}
	}

	var err error
	if cfg.BestEffort {
		err = landlock.V6.BestEffort().RestrictPaths(rules...)
	} else {
		err = landlock.V6.RestrictPaths(rules...)
	}
	if err != nil {
		return fmt.Errorf("landlock restriction failed: %w", err)
	}

	logger.Info("landlock restrictions applied: %d read-only, %d read-write paths", ro, rw)
	return nil
}

// Supported reports whether this build can apply restrictions.
func Supported() bool {
	return true
}

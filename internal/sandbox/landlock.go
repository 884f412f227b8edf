// Package sandbox confines the running process to the directories it needs,
// using Linux Landlock (kernel 5.13+). On other systems, or when Landlock is
// unavailable, Restrict is a no-op.
package sandbox

import (
	"os"
	"path/filepath"
	"sort"
)

// AccessLevel represents the type of filesystem access granted to a path.
type AccessLevel int

const (
	// AccessReadOnly grants read-only access (read files, list directories)
	AccessReadOnly AccessLevel = iota
	// AccessReadWrite grants read and write access
	AccessReadWrite
)

func (a AccessLevel) String() string {
	if a == AccessReadWrite {
		return "rw"
	}
	return "ro"
}

// DirectoryPermission represents a path with its access level.
type DirectoryPermission struct {
	Path   string
	Access AccessLevel
}

// Config lists the application directories the process keeps access to.
type Config struct {
	// ReadOnlyPaths typically holds the configuration directory.
	ReadOnlyPaths []string
	// ReadWritePaths typically holds the state directory (logs, history).
	ReadWritePaths []string
	// BestEffort degrades to the strongest Landlock ABI the kernel supports
	// instead of failing.
	BestEffort bool
}

// systemReadOnlyPaths are needed for DNS resolution, TLS roots and time zones.
var systemReadOnlyPaths = []string{
	"/etc/ssl",
	"/etc/pki",
	"/etc/ca-certificates",
	"/usr/share/ca-certificates",
	"/etc/resolv.conf",
	"/etc/hosts",
	"/etc/nsswitch.conf",
	"/etc/gai.conf",
	"/etc/localtime",
	"/usr/share/zoneinfo",
}

var deviceFiles = []string{
	"/dev/null",
	"/dev/urandom",
	"/dev/random",
}

// AllowedPaths resolves cfg into the de-duplicated list of existing paths
// that stay accessible. Read-write wins when a path appears twice.
func AllowedPaths(cfg Config) []DirectoryPermission {
	access := make(map[string]AccessLevel)
	add := func(p string, level AccessLevel) {
		if p == "" {
			return
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return
		}
		if _, err := os.Stat(abs); err != nil {
			return
		}
		if existing, ok := access[abs]; ok && existing >= level {
			return
		}
		access[abs] = level
	}

	for _, p := range systemReadOnlyPaths {
		add(p, AccessReadOnly)
	}
	for _, p := range cfg.ReadOnlyPaths {
		add(p, AccessReadOnly)
	}
	for _, p := range deviceFiles {
		add(p, AccessReadWrite)
	}
	add(os.TempDir(), AccessReadWrite)
	for _, p := range cfg.ReadWritePaths {
		add(p, AccessReadWrite)
	}

	out := make([]DirectoryPermission, 0, len(access))
	for p, level := range access {
		out = append(out, DirectoryPermission{Path: p, Access: level})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

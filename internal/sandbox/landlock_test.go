package sandbox

import (
	"os"
	"path/filepath"
	"testing"
)

func findPath(perms []DirectoryPermission, path string) (DirectoryPermission, bool) {
	for _, p := range perms {
		if p.Path == path {
			return p, true
		}
	}
	return DirectoryPermission{}, false
}

func TestAllowedPathsIncludesConfiguredDirs(t *testing.T) {
	configDir := t.TempDir()
	stateDir := t.TempDir()

	perms := AllowedPaths(Config{
		ReadOnlyPaths:  []string{configDir},
		ReadWritePaths: []string{stateDir},
	})

	got, ok := findPath(perms, configDir)
	if !ok || got.Access != AccessReadOnly {
		t.Errorf("config dir: got %+v (found=%v), want read-only", got, ok)
	}
	got, ok = findPath(perms, stateDir)
	if !ok || got.Access != AccessReadWrite {
		t.Errorf("state dir: got %+v (found=%v), want read-write", got, ok)
	}
}

func TestAllowedPathsSkipsMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	perms := AllowedPaths(Config{ReadWritePaths: []string{missing}})
	if _, ok := findPath(perms, missing); ok {
		t.Errorf("missing path %s should not be allowed", missing)
	}
}

func TestAllowedPathsReadWriteWins(t *testing.T) {
	dir := t.TempDir()
	perms := AllowedPaths(Config{
		ReadOnlyPaths:  []string{dir},
		ReadWritePaths: []string{dir},
	})

	count := 0
	for _, p := range perms {
		if p.Path == dir {
			count++
			if p.Access != AccessReadWrite {
				t.Errorf("expected read-write, got %v", p.Access)
			}
		}
	}
	if count != 1 {
		t.Errorf("expected %s once, got %d", dir, count)
	}
}

func TestAllowedPathsSortedAndAbsolute(t *testing.T) {
	perms := AllowedPaths(Config{})
	for i, p := range perms {
		if !filepath.IsAbs(p.Path) {
			t.Errorf("path %q is not absolute", p.Path)
		}
		if i > 0 && perms[i-1].Path >= p.Path {
			t.Errorf("paths not sorted: %q before %q", perms[i-1].Path, p.Path)
		}
	}
	if _, ok := findPath(perms, filepath.Clean(os.TempDir())); !ok {
		t.Errorf("temp dir should be writable")
	}
}

func TestAccessLevelString(t *testing.T) {
	if AccessReadOnly.String() != "ro" || AccessReadWrite.String() != "rw" {
		t.Errorf("unexpected access strings %q %q", AccessReadOnly, AccessReadWrite)
	}
}

// Package workspace owns the on-disk layout of a buildscript workspace and
// the descriptor files generated into it.
package workspace

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Directory names relative to the workspace root.
const (
	CacheDir = ".cache"
	BinDir   = ".bin"
	BuildDir = ".build"
	RunDir   = ".run"
)

// Layout resolves well-known paths under a workspace root.
type Layout struct {
	Root string
}

// Tool returns the cache directory of an installed tool, joined with elem.
func (l Layout) Tool(name string, elem ...string) string {
	return filepath.Join(append([]string{l.Root, CacheDir, "tools", name}, elem...)...)
}

// Bin returns a path under the artifact directory.
func (l Layout) Bin(elem ...string) string {
	return filepath.Join(append([]string{l.Root, BinDir}, elem...)...)
}

// Build returns a path under the transient build directory.
func (l Layout) Build(elem ...string) string {
	return filepath.Join(append([]string{l.Root, BuildDir}, elem...)...)
}

// Run returns a path under the service runtime directory.
func (l Layout) Run(elem ...string) string {
	return filepath.Join(append([]string{l.Root, RunDir}, elem...)...)
}

// ResetBuild removes the build and artifact directories and recreates them
// empty.
func (l Layout) ResetBuild() error {
	for _, dir := range []string{l.Build(), l.Bin()} {
		if err := recreate(dir); err != nil {
			return err
		}
	}
	return nil
}

// ResetRun removes the runtime directory and recreates it empty.
func (l Layout) ResetRun() error {
	return recreate(l.Run())
}

// Clean removes every generated directory. The tool cache is only removed
// when cache is set.
func (l Layout) Clean(cache bool) error {
	dirs := []string{l.Build(), l.Bin(), l.Run()}
	if cache {
		dirs = append(dirs, filepath.Join(l.Root, CacheDir))
	}
	var errs []error
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, fmt.Errorf("removing %s: %w", dir, err))
		}
	}
	return errors.Join(errs...)
}

func recreate(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}

// WriteIfDiff writes data to path unless the file already holds exactly
// those bytes, and reports whether it wrote. Parent directories are created.
// The write goes through a temp file and rename.
func WriteIfDiff(path string, data []byte) (bool, error) {
	old, err := os.ReadFile(path)
	if err == nil && bytes.Equal(old, data) {
		return false, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return false, fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return false, fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return true, nil
}

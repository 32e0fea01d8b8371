// Package hostenv locates tools installed on the host system.
package hostenv

import (
	"os"
	"os/exec"
	"path/filepath"
)

// Lookup searches the process PATH for executables.
type Lookup struct{}

// FindExecutable searches PATH for name and returns its absolute path.
func (Lookup) FindExecutable(name string) (string, bool) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", false
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", false
	}
	return abs, true
}

// Resolve follows symlinks in path, returning path unchanged when it cannot
// be resolved.
func Resolve(path string) string {
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return path
	}
	return real
}

// IsDir reports whether path names an existing directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Exists reports whether path names an existing file of any kind.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

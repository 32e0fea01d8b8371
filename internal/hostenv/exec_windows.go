//go:build windows

package hostenv

import (
	"os"
	"path/filepath"
	"strings"
)

// IsExecutable reports whether path is a regular file with an executable
// extension listed in PATHEXT.
func IsExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	exts := os.Getenv("PATHEXT")
	if exts == "" {
		exts = ".com;.exe;.bat;.cmd"
	}
	for _, e := range filepath.SplitList(strings.ToLower(exts)) {
		if e == ext {
			return true
		}
	}
	return false
}

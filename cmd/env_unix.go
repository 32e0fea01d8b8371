//go:build unix

package cmd

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// execReplace replaces the current process with path.
func execReplace(path string, argv, env []string) error {
	if err := unix.Exec(path, argv, env); err != nil {
		return fmt.Errorf("env: exec %s: %w", path, err)
	}
	return nil
}

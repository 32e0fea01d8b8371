//go:build windows

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// execReplace runs path to completion and exits with its status; Windows
// has no exec.
func execReplace(path string, argv, env []string) error {
	c := exec.Command(path, argv[1:]...)
	c.Env = env
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		return fmt.Errorf("env: run %s: %w", path, err)
	}
	return nil
}

package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"
)

var envCmd = &cobra.Command{
	Use:   "env [CMD [ARGS...]]",
	Short: "Run a command inside the workspace environment",
	Long: `Runs CMD with WORKSPACE and MINDURKA_WORKSPACE set to the workspace root.
Without CMD, starts $SHELL (cmd.exe on Windows).`,
	Args: cobra.ArbitraryArgs,
	RunE: runEnv,
}

func init() {
	envCmd.Flags().SetInterspersed(false)
	rootCmd.AddCommand(envCmd)
}

func runEnv(_ *cobra.Command, args []string) error {
	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	if err := exportWorkspace(root); err != nil {
		return err
	}
	argv, err := envCommand(args, runtime.GOOS, os.Getenv("SHELL"))
	if err != nil {
		return err
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("env: %w", err)
	}
	return execReplace(path, argv, os.Environ())
}

// envCommand returns the argv to run for args, falling back to the user's
// shell.
func envCommand(args []string, goos, shell string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if goos == "windows" {
		return []string{"cmd.exe"}, nil
	}
	if shell == "" {
		return nil, fmt.Errorf("env: no command given and SHELL is not set")
	}
	return []string{shell}, nil
}

package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/buildscript/internal/target"
)

var errNoTargets = errors.New("no targets given")

var buildCmd = &cobra.Command{
	Use:   "build [TARGETS...]",
	Short: "Build targets, and optionally run them",
	Long: `Builds the given targets and every target they depend on, always in
declaration order. Two pseudo-targets are accepted: "all" enables every
target that is not deprecated, and "run" starts services after building.

By default host tools are used when available and you are asked before
anything is installed into $WORKSPACE/.cache.`,
	RunE: runBuild,
}

func init() {
	addBuildFlags(buildCmd)
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	names := goalNames(cmd, args)
	if len(names) == 0 {
		_ = cmd.Help()
		return errNoTargets
	}
	applyBuildFlags(cmd)

	s, err := newSession()
	if err != nil {
		return err
	}
	asm, err := s.assembler()
	if err != nil {
		return err
	}
	goals, err := target.ParseGoals(asm.Registry, names)
	if err != nil {
		return err
	}

	ctx, cancel := setupSignalContext(s.printer)
	defer cancel()

	s.logger.Debug("starting build", "goals", strings.Join(names, " "), "mode", string(s.cfg.Mode))
	if err := asm.Run(ctx, goals); err != nil {
		return err
	}
	s.printer.Success("done")
	return nil
}

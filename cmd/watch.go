package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/buildscript/internal/target"
	"github.com/papapumpkin/buildscript/internal/watch"
)

var errWatchRun = errors.New("watch cannot start services; use build --run")

var watchCmd = &cobra.Command{
	Use:   "watch [TARGETS...]",
	Short: "Rebuild targets whenever their sources change",
	Long: `Builds the given targets once, then rebuilds them each time a file
matching the configured watch patterns changes. Files whose contents are
unchanged after an event do not trigger a rebuild.`,
	RunE: runWatch,
}

func init() {
	addBuildFlags(watchCmd)
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
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
	if goals.Run {
		return errWatchRun
	}

	ctx, cancel := setupSignalContext(s.printer)
	defer cancel()

	w, err := watch.New(s.root, s.cfg.Watch.Patterns, time.Duration(s.cfg.Watch.DebounceMS)*time.Millisecond)
	if err != nil {
		return err
	}

	// The first build regenerates descriptors; start watching afterwards so
	// those writes do not trigger a rebuild.
	if err := asm.Run(ctx, goals); err != nil {
		s.printer.Error(err.Error())
	} else {
		s.printer.Success("built; watching for changes")
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("watching %s: %w", s.root, err)
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case changed, ok := <-w.Batches:
			if !ok {
				return nil
			}
			s.printer.RebuildTriggered(changed)
			if err := asm.Rebuild(ctx, goals, changed); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.printer.Error(err.Error())
				continue
			}
			s.printer.Success("rebuilt; watching for changes")
		}
	}
}

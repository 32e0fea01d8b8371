// Package assemble runs one buildscript invocation: it drives the selected
// targets through their lifecycle, writes the generated workspace files in
// between passes, and waits on the process supervisor when services run.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papapumpkin/buildscript/internal/config"
	"github.com/papapumpkin/buildscript/internal/supervisor"
	"github.com/papapumpkin/buildscript/internal/target"
	"github.com/papapumpkin/buildscript/internal/targets"
	"github.com/papapumpkin/buildscript/internal/telemetry"
	"github.com/papapumpkin/buildscript/internal/ui"
	"github.com/papapumpkin/buildscript/internal/workspace"
)

// EventsFile is the telemetry stream inside the build directory.
const EventsFile = "events.jsonl"

// Assembler holds everything an invocation needs besides its goals.
type Assembler struct {
	Root     string
	Config   config.Config
	Registry *target.Registry
	UI       ui.UI

	Fetch target.Fetcher
	Host  target.HostLookup
	Repos target.Cloner

	// HostPath is the host search path appended for services unless the
	// invocation is isolated.
	HostPath string
	Logger   *slog.Logger
}

// Run executes goals. Every enabled target is initialized, the build
// descriptors are regenerated, and every target is built. When goals.Run is
// set the run directory is reset, services are prepared, the shared
// configuration is written, services are registered with the supervisor,
// and Run blocks until the supervisor exits. Child processes are released
// before Run returns.
func (a *Assembler) Run(ctx context.Context, goals target.Goals) error {
	return a.run(ctx, goals, nil)
}

// Rebuild is Run for a watch-mode rebuild started by changes to the given
// files.
func (a *Assembler) Rebuild(ctx context.Context, goals target.Goals, changed []string) error {
	return a.run(ctx, goals, changed)
}

func (a *Assembler) run(ctx context.Context, goals target.Goals, changed []string) (err error) {
	layout := workspace.Layout{Root: a.Root}
	log := a.logger()

	if err := layout.ResetBuild(); err != nil {
		return err
	}
	events, eerr := telemetry.NewEmitter(layout.Build(EventsFile))
	if eerr != nil {
		log.Warn("telemetry disabled", "error", eerr)
		events = nil
	}
	defer events.Close()

	runID := telemetry.NewRunID()
	emit := func(kind, name string, data any) {
		evt := telemetry.Event{Timestamp: time.Now(), Kind: kind, RunID: runID, Target: name, Data: data}
		if err := events.Emit(evt); err != nil {
			log.Warn("telemetry emit failed", "error", err)
		}
	}

	start := time.Now()
	emit(telemetry.KindInvocationStart, "", map[string]any{
		"targets": a.enabledNames(goals.Recipe),
		"run":     goals.Run,
		"mode":    string(a.Config.Mode),
	})
	defer func() {
		data := map[string]any{"duration_ms": time.Since(start).Milliseconds()}
		if err != nil {
			data["error"] = err.Error()
		}
		emit(telemetry.KindInvocationDone, "", data)
	}()
	if len(changed) > 0 {
		emit(telemetry.KindRebuildTriggered, "", map[string]any{"files": changed})
	}

	d := target.NewDriver(a.Registry, goals.Recipe, a.Config.Mode)
	d.Confirm = a.UI.ConfirmInstall
	d.Reporter = a.UI
	d.Events = events
	d.RunID = runID
	d.Logger = log
	defer func() {
		if cerr := d.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	ip := target.NewInitParams(a.Root, a.Config, a.Fetch, a.Host, a.Repos)
	if err := d.InitializeAll(ctx, ip); err != nil {
		return err
	}

	written, err := workspace.WriteDescriptors(a.Root, workspace.Descriptors{
		CargoMembers:  ip.CargoMembers,
		GradleMembers: ip.GradleMembers,
		Version:       a.Config.MindustryVersion,
	})
	if err != nil {
		return fmt.Errorf("writing build descriptors: %w", err)
	}
	a.UI.DescriptorsWritten(written)
	for _, f := range written {
		emit(telemetry.KindDescriptorWritten, "", map[string]string{"file": f})
	}

	bp := target.NewBuildParams(ip)
	if err := d.BuildAll(ctx, bp); err != nil {
		return err
	}
	if !goals.Run {
		return nil
	}

	if err := layout.ResetRun(); err != nil {
		return err
	}
	rp := target.NewRunParams(bp, a.HostPath)
	if err := d.RunInitAll(ctx, rp); err != nil {
		return err
	}
	if shared, ok := targets.SharedConfig(d.Collection(), a.Config); ok {
		if err := layout.WriteSharedConfig(shared); err != nil {
			return err
		}
		log.Debug("shared config written", "rabbitmq_url", shared.RabbitMQURL)
	}
	if err := d.RunAll(ctx, rp); err != nil {
		return err
	}

	sk, ok := a.Registry.Supervisor()
	if !ok {
		return targets.ErrNoSupervisor
	}
	sup, ok := target.Lookup[supervisor.Supervisor](d.Collection(), sk)
	if !ok {
		return targets.ErrNoSupervisor
	}
	for _, k := range goals.Recipe.Enabled() {
		if k == sk {
			continue
		}
		if _, ok := target.Lookup[target.Runner](d.Collection(), k); ok {
			emit(telemetry.KindServiceRegistered, a.Registry.Name(k), nil)
		}
	}

	a.UI.Info("services registered; waiting for the supervisor to exit")
	werr := sup.Wait()
	exit := map[string]any{"ok": werr == nil}
	if werr != nil {
		exit["error"] = werr.Error()
	}
	emit(telemetry.KindSupervisorExited, a.Registry.Name(sk), exit)
	if werr != nil {
		return fmt.Errorf("%w: %w", target.ErrRun, werr)
	}
	return nil
}

func (a *Assembler) enabledNames(r *target.Recipe) []string {
	var names []string
	for _, k := range r.Enabled() {
		names = append(names, a.Registry.Name(k)+":"+r.Get(k).String())
	}
	return names
}

func (a *Assembler) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.Logger
}

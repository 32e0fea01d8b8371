package target

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/papapumpkin/buildscript/internal/config"
	"github.com/papapumpkin/buildscript/internal/telemetry"
)

// Reporter receives operator-facing progress from the driver.
type Reporter interface {
	TargetAcquired(name string, tier Tier)
	PhaseStarted(phase Phase, name string)
}

// Driver walks every enabled kind through the lifecycle passes in
// declaration order. It owns the Collection for the whole invocation.
// Passes must be called in order: InitializeAll, BuildAll, then optionally
// RunInitAll and RunAll. Close releases child processes.
type Driver struct {
	reg    *Registry
	recipe *Recipe
	mode   config.Mode
	coll   *Collection
	states []State

	// Confirm asks the operator whether name may be installed into the
	// workspace. It is consulted in host mode only; a nil Confirm declines.
	Confirm func(name string) bool
	// Reporter receives progress; nil is allowed.
	Reporter Reporter
	// Events records the lifecycle; a nil Emitter is a no-op.
	Events *telemetry.Emitter
	// RunID tags every emitted event.
	RunID string
	// Logger receives diagnostics; nil discards them.
	Logger *slog.Logger
}

// NewDriver returns a driver for recipe over reg, acquiring tools per mode.
func NewDriver(reg *Registry, recipe *Recipe, mode config.Mode) *Driver {
	return &Driver{
		reg:    reg,
		recipe: recipe,
		mode:   mode,
		coll:   NewCollection(reg.Len()),
		states: make([]State, reg.Len()),
	}
}

// Collection returns the arena of live instances.
func (d *Driver) Collection() *Collection {
	return d.coll
}

// State returns k's lifecycle position.
func (d *Driver) State(k Kind) State {
	return d.states[k]
}

// InitializeAll constructs an instance for every enabled kind. Per kind it
// tries the host tool, then the workspace cache, then a local install. Host
// probing is skipped in isolate mode and for AlwaysLocal kinds. In host mode
// the operator must confirm a local install; declining fails with
// ErrDeclined.
func (d *Driver) InitializeAll(ctx context.Context, p *InitParams) error {
	for _, k := range d.reg.Kinds() {
		en := d.recipe.Get(k)
		if !en.Enabled() {
			continue
		}
		name := d.reg.Name(k)
		d.phaseStarted(PhaseInitialize, name)

		t, tier, err := d.acquire(ctx, k, en, p)
		if err != nil {
			return d.fail(PhaseInitialize, name, err)
		}
		if err := d.coll.Put(k, t); err != nil {
			return d.fail(PhaseInitialize, name, err)
		}
		if err := d.advance(k, Initialized); err != nil {
			return err
		}
		if d.Reporter != nil {
			d.Reporter.TargetAcquired(name, tier)
		}
		d.emit(telemetry.KindTargetAcquired, name, map[string]string{
			"tier":       string(tier),
			"enablement": en.String(),
		})
	}
	return nil
}

func (d *Driver) acquire(ctx context.Context, k Kind, en Enablement, p *InitParams) (Target, Tier, error) {
	spec := d.reg.Spec(k)
	log := d.logger().With("target", spec.Name)

	if d.mode != config.ModeIsolate && !spec.Flags.AlwaysLocal {
		t, err := spec.Init.InitializeHost(ctx, en, d.coll, p)
		if err != nil {
			return nil, "", err
		}
		if t != nil {
			return t, TierHost, nil
		}
		log.Debug("host tool unavailable")
	}

	t, err := spec.Init.InitializeCached(ctx, en, d.coll, p)
	if err != nil {
		return nil, "", err
	}
	if t != nil {
		return t, TierCached, nil
	}
	log.Debug("workspace cache empty")

	if d.mode == config.ModeHost && (d.Confirm == nil || !d.Confirm(spec.Name)) {
		return nil, "", ErrDeclined
	}

	t, err = spec.Init.InitializeLocal(ctx, en, d.coll, p)
	if err != nil {
		return nil, "", err
	}
	if t == nil {
		return nil, "", errors.New("local install produced no instance")
	}
	return t, TierLocal, nil
}

// BuildAll builds every live instance in declaration order.
func (d *Driver) BuildAll(ctx context.Context, p *BuildParams) error {
	return d.pass(PhaseBuild, Built, func(t Target, view *Collection) error {
		return t.Build(ctx, view, p)
	})
}

// RunInitAll prepares every live instance for running.
func (d *Driver) RunInitAll(ctx context.Context, p *RunParams) error {
	return d.pass(PhaseRunInit, RunInitialized, func(t Target, view *Collection) error {
		if ri, ok := t.(RunIniter); ok {
			return ri.RunInit(ctx, view, p)
		}
		return nil
	})
}

// RunAll starts or registers every live instance that runs something.
func (d *Driver) RunAll(ctx context.Context, p *RunParams) error {
	return d.pass(PhaseRun, Running, func(t Target, view *Collection) error {
		if r, ok := t.(Runner); ok {
			return r.Run(ctx, view, p)
		}
		return nil
	})
}

// pass applies fn to every live instance with the instance split out of the
// collection, then advances its state to next.
func (d *Driver) pass(phase Phase, next State, fn func(Target, *Collection) error) error {
	for _, k := range d.reg.Kinds() {
		if !d.coll.Has(k) {
			continue
		}
		name := d.reg.Name(k)
		d.phaseStarted(phase, name)
		start := time.Now()
		if err := d.coll.With(k, fn); err != nil {
			return d.fail(phase, name, err)
		}
		if err := d.advance(k, next); err != nil {
			return err
		}
		d.emit(telemetry.KindPhaseDone, name, map[string]any{
			"phase":       string(phase),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
	return nil
}

// Close releases every instance that owns a child process, in reverse
// declaration order, and marks running kinds stopped.
func (d *Driver) Close() error {
	var errs []error
	kinds := d.reg.Kinds()
	for i := len(kinds) - 1; i >= 0; i-- {
		k := kinds[i]
		if c, ok := Lookup[io.Closer](d.coll, k); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", d.reg.Name(k), err))
			}
		}
		if d.states[k] == Running {
			if err := d.advance(k, Stopped); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (d *Driver) advance(k Kind, to State) error {
	from := d.states[k]
	if err := transition(d.states, k, to); err != nil {
		return err
	}
	d.emit(telemetry.KindTargetState, d.reg.Name(k), map[string]string{
		"from": from.String(),
		"to":   to.String(),
	})
	return nil
}

func (d *Driver) fail(phase Phase, name string, err error) error {
	d.emit(telemetry.KindTargetFailed, name, map[string]string{
		"phase": string(phase),
		"error": err.Error(),
	})
	return &PhaseError{Phase: phase, Target: name, Err: err}
}

func (d *Driver) phaseStarted(phase Phase, name string) {
	d.logger().Debug("phase started", "phase", string(phase), "target", name)
	if d.Reporter != nil {
		d.Reporter.PhaseStarted(phase, name)
	}
}

func (d *Driver) emit(kind, name string, data any) {
	err := d.Events.Emit(telemetry.Event{
		Timestamp: time.Now(),
		Kind:      kind,
		RunID:     d.RunID,
		Target:    name,
		Data:      data,
	})
	if err != nil {
		d.logger().Warn("telemetry emit failed", "error", err)
	}
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

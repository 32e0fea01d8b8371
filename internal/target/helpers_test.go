package target

import (
	"context"
	"fmt"
	"testing"
)

// Test kinds mirror the shape of the real registration table.
const (
	kSup Kind = iota
	kCoreutils
	kRabbit
	kSurreal
	kMindustry
	kJava
	kCorePlugin
	kForts
	kHub
)

// journal records calls across fakes in order.
type journal struct {
	entries []string
}

func (j *journal) add(format string, args ...any) {
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

// fakeInit returns an instance from the first tier whose flag is set.
type fakeInit struct {
	kind     Kind
	name     string
	host     bool
	cached   bool
	localErr error
	log      *journal
}

func (f *fakeInit) InitializeHost(_ context.Context, _ Enablement, deps *Collection, _ *InitParams) (Target, error) {
	f.log.add("host:%s", f.name)
	if !f.host {
		return nil, nil
	}
	return f.instance(), nil
}

func (f *fakeInit) InitializeCached(_ context.Context, _ Enablement, _ *Collection, _ *InitParams) (Target, error) {
	f.log.add("cached:%s", f.name)
	if !f.cached {
		return nil, nil
	}
	return f.instance(), nil
}

func (f *fakeInit) InitializeLocal(_ context.Context, _ Enablement, _ *Collection, _ *InitParams) (Target, error) {
	f.log.add("local:%s", f.name)
	if f.localErr != nil {
		return nil, f.localErr
	}
	return f.instance(), nil
}

func (f *fakeInit) instance() *fakeTarget {
	return &fakeTarget{kind: f.kind, name: f.name, log: f.log}
}

// fakeTarget records lifecycle calls and flags any view that exposes itself.
type fakeTarget struct {
	kind     Kind
	name     string
	log      *journal
	buildErr error
	sawSelf  bool
	closed   bool
}

func (t *fakeTarget) check(deps *Collection) {
	if deps.Has(t.kind) {
		t.sawSelf = true
	}
}

func (t *fakeTarget) Build(_ context.Context, deps *Collection, p *BuildParams) error {
	t.check(deps)
	t.log.add("build:%s", t.name)
	if t.buildErr != nil {
		return t.buildErr
	}
	p.Path = append(p.Path, "/bin/"+t.name)
	return nil
}

func (t *fakeTarget) RunInit(_ context.Context, deps *Collection, p *RunParams) error {
	t.check(deps)
	t.log.add("runinit:%s:%d", t.name, p.NextPort())
	return nil
}

func (t *fakeTarget) Run(_ context.Context, deps *Collection, _ *RunParams) error {
	t.check(deps)
	t.log.add("run:%s", t.name)
	return nil
}

func (t *fakeTarget) Close() error {
	t.closed = true
	t.log.add("close:%s", t.name)
	return nil
}

type specOpt func(*Spec, *fakeInit)

func requires(deps ...Kind) specOpt {
	return func(s *Spec, _ *fakeInit) { s.Requires = deps }
}

func flags(f Flags) specOpt {
	return func(s *Spec, _ *fakeInit) { s.Flags = f }
}

func onHost() specOpt {
	return func(_ *Spec, f *fakeInit) { f.host = true }
}

func inCache() specOpt {
	return func(_ *Spec, f *fakeInit) { f.cached = true }
}

func fakeSpec(k Kind, name string, log *journal, opts ...specOpt) Spec {
	init := &fakeInit{kind: k, name: name, log: log}
	s := Spec{Kind: k, Name: name, Init: init}
	for _, o := range opts {
		o(&s, init)
	}
	return s
}

// testRegistry builds a registry shaped like the production one. extra
// options are applied per kind.
func testRegistry(t *testing.T, log *journal, extra map[Kind][]specOpt) *Registry {
	t.Helper()
	base := []struct {
		name string
		opts []specOpt
	}{
		kSup:       {"mprocs", []specOpt{flags(Flags{AlwaysLocal: true, Supervisor: true})}},
		kCoreutils: {"coreutils", nil},
		kRabbit:    {"rabbitmq", []specOpt{requires(kCoreutils)}},
		kSurreal:   {"surrealdb", []specOpt{flags(Flags{AlwaysLocal: true})}},
		kMindustry: {"mindustry", []specOpt{flags(Flags{AlwaysLocal: true}), requires(kJava)}},
		kJava:      {"java", []specOpt{requires(kCoreutils)}},
		kCorePlugin: {"coreplugin", []specOpt{
			flags(Flags{AlwaysLocal: true}),
			requires(kJava, kRabbit, kSurreal, kMindustry),
		}},
		kForts: {"forts", []specOpt{flags(Flags{AlwaysLocal: true}), requires(kJava, kCorePlugin)}},
		kHub:   {"hub", []specOpt{flags(Flags{AlwaysLocal: true, Deprecated: true}), requires(kJava, kCorePlugin)}},
	}
	specs := make([]Spec, len(base))
	for i, b := range base {
		opts := append(append([]specOpt(nil), b.opts...), extra[Kind(i)]...)
		specs[i] = fakeSpec(Kind(i), b.name, log, opts...)
	}
	r, err := NewRegistry(specs...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

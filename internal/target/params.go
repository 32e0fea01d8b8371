package target

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/papapumpkin/buildscript/internal/config"
	"github.com/papapumpkin/buildscript/internal/supervisor"
)

// Fetcher downloads and unpacks remote artifacts.
type Fetcher interface {
	// Download writes the resource at url to dest, creating parent directories.
	Download(ctx context.Context, url, dest string) error
	// ExtractArchive unpacks archive into dest, dropping the first strip
	// leading path components of every entry.
	ExtractArchive(archive, dest string, strip int) error
}

// HostLookup finds executables installed on the host.
type HostLookup interface {
	// FindExecutable searches the host search path for name.
	FindExecutable(name string) (string, bool)
}

// Cloner fetches source repositories.
type Cloner interface {
	Clone(ctx context.Context, url, dest string) error
}

// InitParams is the context of the initialize pass. Targets register
// workspace members here for the generated build descriptors.
type InitParams struct {
	Root   string
	Config config.Config
	Env    map[string]string
	Path   []string

	CargoMembers  []string
	GradleMembers []string

	Fetch Fetcher
	Host  HostLookup
	Repos Cloner
}

// NewInitParams returns the initial context for an invocation rooted at root.
// Configured cargo members are registered first.
func NewInitParams(root string, cfg config.Config, fetch Fetcher, host HostLookup, repos Cloner) *InitParams {
	p := &InitParams{
		Root:   root,
		Config: cfg,
		Env:    make(map[string]string),
		Fetch:  fetch,
		Host:   host,
		Repos:  repos,
	}
	for _, m := range cfg.CargoMembers {
		p.AddCargoMember(m)
	}
	return p
}

// AddGradleMember registers dir as an included gradle build.
func (p *InitParams) AddGradleMember(dir string) {
	p.GradleMembers = append(p.GradleMembers, dir)
}

// AddCargoMember registers dir as a cargo workspace member.
func (p *InitParams) AddCargoMember(dir string) {
	p.CargoMembers = append(p.CargoMembers, dir)
}

// BuildParams is the context of the build pass. Targets add environment
// variables and search-path entries that later builds and services inherit.
type BuildParams struct {
	Root   string
	Config config.Config
	Env    map[string]string
	Path   []string
}

// NewBuildParams takes over p's root, config, environment and search path.
// p is zeroed; it must not be used afterwards.
func NewBuildParams(p *InitParams) *BuildParams {
	b := &BuildParams{Root: p.Root, Config: p.Config, Env: p.Env, Path: p.Path}
	if b.Env == nil {
		b.Env = make(map[string]string)
	}
	*p = InitParams{}
	return b
}

// Command returns a command for name whose environment is the current
// process environment overlaid with the accumulated variables and a PATH made
// of the accumulated search path only. Pass an absolute name: name is not
// resolved against the accumulated path.
func (p *BuildParams) Command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = Environ(os.Environ(), p.Env, p.Path)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

// Gradle returns a command running the workspace gradle wrapper with tasks.
func (p *BuildParams) Gradle(ctx context.Context, tasks ...string) *exec.Cmd {
	wrapper := "gradlew"
	if runtime.GOOS == "windows" {
		wrapper = "gradlew.bat"
	}
	args := append([]string(nil), tasks...)
	if p.Config.Stacktrace {
		args = append(args, "--stacktrace")
	}
	cmd := p.Command(ctx, filepath.Join(p.Root, wrapper), args...)
	cmd.Dir = p.Root
	return cmd
}

// RunParams is the context of the run-init and run passes.
type RunParams struct {
	Root   string
	Config config.Config
	Env    map[string]string
	Path   []string

	port int
}

// NewRunParams takes over b's root, config, environment and search path.
// Unless the invocation is isolated, the host search path hostPath is
// appended after the accumulated entries. b is zeroed; it must not be used
// afterwards.
func NewRunParams(b *BuildParams, hostPath string) *RunParams {
	r := &RunParams{
		Root:   b.Root,
		Config: b.Config,
		Env:    b.Env,
		Path:   b.Path,
		port:   b.Config.PortsStart,
	}
	if r.Config.Mode != config.ModeIsolate && hostPath != "" {
		r.Path = append(r.Path, filepath.SplitList(hostPath)...)
	}
	*b = BuildParams{}
	return r
}

// NextPort returns a fresh port. Ports are handed out in strictly
// increasing order starting at the configured ports_start; the host is not
// probed.
func (p *RunParams) NextPort() int {
	port := p.port
	p.port++
	return port
}

// Command returns a supervisor command for path whose environment carries
// the accumulated variables and search path.
func (p *RunParams) Command(path string, args ...string) *supervisor.Command {
	env := make(map[string]string, len(p.Env)+1)
	for k, v := range p.Env {
		env[k] = v
	}
	env["PATH"] = JoinPath(p.Path)
	return &supervisor.Command{Path: path, Args: args, Env: env}
}

// Environ returns the full environment for the accumulated variables and
// search path, layered over base.
func (p *RunParams) Environ(base []string) []string {
	return Environ(base, p.Env, p.Path)
}

// JoinPath joins search-path entries with the host list separator.
func JoinPath(path []string) string {
	return strings.Join(path, string(os.PathListSeparator))
}

// Environ overlays env and PATH onto base, a list of KEY=VALUE pairs.
// Overridden keys are dropped from base; overrides follow in key order.
func Environ(base []string, env map[string]string, path []string) []string {
	override := make(map[string]string, len(env)+1)
	for k, v := range env {
		override[k] = v
	}
	override["PATH"] = JoinPath(path)

	out := make([]string, 0, len(base)+len(override))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, ok := override[k]; ok {
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(override))
	for k := range override {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+override[k])
	}
	return out
}

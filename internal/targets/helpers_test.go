package targets

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/papapumpkin/buildscript/internal/config"
	"github.com/papapumpkin/buildscript/internal/supervisor"
	"github.com/papapumpkin/buildscript/internal/target"
)

type download struct {
	url, dest string
}

// fakeFetcher writes a placeholder file for every download and records
// extractions without unpacking anything.
type fakeFetcher struct {
	downloads []download
	extracted []string
	err       error
}

func (f *fakeFetcher) Download(_ context.Context, url, dest string) error {
	if f.err != nil {
		return f.err
	}
	f.downloads = append(f.downloads, download{url, dest})
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte(url), 0o644)
}

func (f *fakeFetcher) ExtractArchive(archive, dest string, strip int) error {
	f.extracted = append(f.extracted, archive)
	return nil
}

type fakeHost map[string]string

func (h fakeHost) FindExecutable(name string) (string, bool) {
	p, ok := h[name]
	return p, ok
}

type fakeCloner struct {
	urls []string
}

func (c *fakeCloner) Clone(_ context.Context, url, dest string) error {
	c.urls = append(c.urls, url)
	return os.MkdirAll(dest, 0o755)
}

type registration struct {
	cmd  *supervisor.Command
	name string
}

// fakeSupervisor stands in for the multiplexer in the mprocs slot.
type fakeSupervisor struct {
	registered []registration
}

func (s *fakeSupervisor) Build(context.Context, *target.Collection, *target.BuildParams) error {
	return nil
}

func (s *fakeSupervisor) Register(_ context.Context, cmd *supervisor.Command, name string) error {
	s.registered = append(s.registered, registration{cmd, name})
	return nil
}

func (s *fakeSupervisor) Wait() error { return nil }

func initParams(t *testing.T, root string) (*target.InitParams, *fakeFetcher, *fakeCloner) {
	t.Helper()
	f := &fakeFetcher{}
	c := &fakeCloner{}
	cfg := config.Config{
		Mode:             config.ModeAutoinstall,
		GitBackend:       config.GitHTTPS,
		MindustryVersion: config.MindustryV146,
		PortsStart:       4100,
		ServerIP:         "127.0.0.1",
	}
	return target.NewInitParams(root, cfg, f, fakeHost{}, c), f, c
}

func runParams(root string, cfg config.Config) *target.RunParams {
	if cfg.PortsStart == 0 {
		cfg.PortsStart = 4100
	}
	b := target.NewBuildParams(target.NewInitParams(root, cfg, nil, nil, nil))
	return target.NewRunParams(b, "")
}

func writeExecutable(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func skipWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses shell scripts and symlinks")
	}
}

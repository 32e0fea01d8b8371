package targets

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/papapumpkin/buildscript/internal/hostenv"
	"github.com/papapumpkin/buildscript/internal/target"
)

const busyboxURL = "https://busybox.net/downloads/binaries/1.35.0-x86_64-linux-musl/busybox"

// coreutilsProbe is the set of utilities a host directory must provide.
var coreutilsProbe = []string{"uname", "yes", "[", "cat", "touch"}

type coreutilsInit struct{}

type coreutilsTarget struct {
	dir string
}

func (coreutilsInit) InitializeHost(_ context.Context, _ target.Enablement, _ *target.Collection, p *target.InitParams) (target.Target, error) {
	xargs, ok := p.Host.FindExecutable("xargs")
	if !ok {
		return nil, nil
	}
	dir := filepath.Dir(xargs)
	for _, name := range coreutilsProbe {
		if !hostenv.IsExecutable(filepath.Join(dir, name)) {
			return nil, nil
		}
	}
	return &coreutilsTarget{dir: dir}, nil
}

func (coreutilsInit) InitializeCached(_ context.Context, _ target.Enablement, _ *target.Collection, p *target.InitParams) (target.Target, error) {
	dir := layout(p.Root).Tool("coreutils")
	if !hostenv.IsDir(dir) {
		return nil, nil
	}
	return &coreutilsTarget{dir: dir}, nil
}

func (coreutilsInit) InitializeLocal(ctx context.Context, _ target.Enablement, _ *target.Collection, p *target.InitParams) (target.Target, error) {
	if runtime.GOOS != "linux" || runtime.GOARCH != "amd64" {
		return nil, unsupported("coreutils")
	}
	dir := layout(p.Root).Tool("coreutils")
	busybox := filepath.Join(dir, "busybox")
	if err := p.Fetch.Download(ctx, busyboxURL, busybox); err != nil {
		return nil, err
	}
	if err := os.Chmod(busybox, 0o700); err != nil {
		return nil, fmt.Errorf("chmod busybox: %w", err)
	}
	if err := installApplets(ctx, busybox); err != nil {
		return nil, err
	}
	return &coreutilsTarget{dir: dir}, nil
}

// installApplets links every applet busybox reports next to the binary.
func installApplets(ctx context.Context, busybox string) error {
	cmd := exec.CommandContext(ctx, busybox)
	cmd.Env = append(os.Environ(), "LANG=C")
	var out bytes.Buffer
	cmd.Stdout = &out
	// busybox exits non-zero when run without an applet.
	_ = cmd.Run()

	applets := parseApplets(out.String())
	if len(applets) == 0 {
		return fmt.Errorf("busybox listed no applets")
	}
	dir := filepath.Dir(busybox)
	for _, a := range applets {
		if err := relink("busybox", filepath.Join(dir, a)); err != nil {
			return err
		}
	}
	return nil
}

// parseApplets extracts applet names from busybox's usage text.
func parseApplets(usage string) []string {
	var applets []string
	listing := false
	sc := bufio.NewScanner(strings.NewReader(usage))
	for sc.Scan() {
		line := sc.Text()
		if !listing {
			listing = strings.Contains(line, "Currently defined functions")
			continue
		}
		for _, name := range strings.Split(line, ",") {
			name = strings.TrimSpace(name)
			if name == "" || name == "busybox" || strings.ContainsAny(name, `/\`) {
				continue
			}
			applets = append(applets, name)
		}
	}
	return applets
}

func (c *coreutilsTarget) Build(_ context.Context, _ *target.Collection, p *target.BuildParams) error {
	p.Path = append(p.Path, c.dir)
	return nil
}

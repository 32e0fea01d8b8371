package targets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/papapumpkin/buildscript/internal/hostenv"
	"github.com/papapumpkin/buildscript/internal/supervisor"
	"github.com/papapumpkin/buildscript/internal/target"
)

const mprocsBaseURL = "https://github.com/pvolok/mprocs/releases/download/v0.7.3/mprocs-0.7.3"

type mprocsInit struct{}

// mprocsTarget is the process supervisor. It exposes the multiplexer's
// Register, Wait and Close to the rest of the invocation.
type mprocsTarget struct {
	*supervisor.Mprocs
}

func newMprocs(bin string) *mprocsTarget {
	return &mprocsTarget{Mprocs: supervisor.NewMprocs(bin, "")}
}

func mprocsBinary() string {
	if runtime.GOOS == "windows" {
		return "mprocs.exe"
	}
	return "mprocs"
}

func (mprocsInit) InitializeHost(_ context.Context, _ target.Enablement, _ *target.Collection, p *target.InitParams) (target.Target, error) {
	bin, ok := p.Host.FindExecutable("mprocs")
	if !ok {
		return nil, nil
	}
	return newMprocs(hostenv.Resolve(bin)), nil
}

func (mprocsInit) InitializeCached(_ context.Context, _ target.Enablement, _ *target.Collection, p *target.InitParams) (target.Target, error) {
	bin := layout(p.Root).Tool("mprocs", mprocsBinary())
	if !hostenv.IsExecutable(bin) {
		return nil, nil
	}
	return newMprocs(bin), nil
}

func (mprocsInit) InitializeLocal(ctx context.Context, _ target.Enablement, _ *target.Collection, p *target.InitParams) (target.Target, error) {
	if runtime.GOARCH != "amd64" {
		return nil, unsupported("mprocs")
	}
	var url, archive string
	switch runtime.GOOS {
	case "linux":
		url, archive = mprocsBaseURL+"-linux-x86_64-musl.tar.gz", "archive.tar.gz"
	case "windows":
		url, archive = mprocsBaseURL+"-windows-x86_64.zip", "archive.zip"
	default:
		return nil, unsupported("mprocs")
	}
	if err := installArchive(ctx, p, "mprocs", url, archive, 1); err != nil {
		return nil, err
	}
	bin := layout(p.Root).Tool("mprocs", mprocsBinary())
	if err := os.Chmod(bin, 0o755); err != nil {
		return nil, fmt.Errorf("mprocs archive did not contain %s: %w", filepath.Base(bin), err)
	}
	return newMprocs(bin), nil
}

func (m *mprocsTarget) Build(context.Context, *target.Collection, *target.BuildParams) error {
	return nil
}

func (m *mprocsTarget) RunInit(_ context.Context, _ *target.Collection, p *target.RunParams) error {
	m.Addr = fmt.Sprintf("127.0.0.1:%d", p.NextPort())
	return nil
}

func (m *mprocsTarget) Run(ctx context.Context, _ *target.Collection, p *target.RunParams) error {
	return m.Start(ctx, p.Environ(os.Environ()))
}

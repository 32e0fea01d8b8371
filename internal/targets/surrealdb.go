package targets

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/papapumpkin/buildscript/internal/hostenv"
	"github.com/papapumpkin/buildscript/internal/target"
)

const surrealInstallURL = "https://install.surrealdb.com/"

type surrealInit struct{}

type surrealTarget struct {
	bin  string
	port int
}

func (surrealInit) InitializeHost(_ context.Context, _ target.Enablement, _ *target.Collection, p *target.InitParams) (target.Target, error) {
	bin, ok := p.Host.FindExecutable("surreal")
	if !ok {
		return nil, nil
	}
	return &surrealTarget{bin: bin}, nil
}

func (surrealInit) InitializeCached(_ context.Context, _ target.Enablement, _ *target.Collection, p *target.InitParams) (target.Target, error) {
	bin := layout(p.Root).Tool("surrealdb", exeName("surreal"))
	if !hostenv.IsExecutable(bin) {
		return nil, nil
	}
	return &surrealTarget{bin: bin}, nil
}

// InitializeLocal runs the vendor install script with the tool directory as
// its install prefix.
func (surrealInit) InitializeLocal(ctx context.Context, _ target.Enablement, _ *target.Collection, p *target.InitParams) (target.Target, error) {
	if runtime.GOOS == "windows" {
		return nil, unsupported("surrealdb")
	}
	dir := layout(p.Root).Tool("surrealdb")
	script := filepath.Join(dir, "install.sh")
	if err := p.Fetch.Download(ctx, surrealInstallURL, script); err != nil {
		return nil, err
	}
	in, err := os.Open(script)
	if err != nil {
		return nil, fmt.Errorf("opening install script: %w", err)
	}
	defer in.Close()

	cmd := exec.CommandContext(ctx, "sh", "-s", dir)
	cmd.Stdin = in
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("surrealdb install script: %w", err)
	}
	os.Remove(script)

	bin := filepath.Join(dir, "surreal")
	if !hostenv.IsExecutable(bin) {
		return nil, fmt.Errorf("surrealdb install script did not produce %s", bin)
	}
	return &surrealTarget{bin: bin}, nil
}

func (s *surrealTarget) Build(_ context.Context, _ *target.Collection, p *target.BuildParams) error {
	p.Path = append(p.Path, filepath.Dir(s.bin))
	return nil
}

func (s *surrealTarget) RunInit(_ context.Context, _ *target.Collection, p *target.RunParams) error {
	s.port = p.NextPort()
	return nil
}

func (s *surrealTarget) Run(ctx context.Context, deps *target.Collection, p *target.RunParams) error {
	sup, err := supervisorOf(deps)
	if err != nil {
		return err
	}
	cmd := p.Command(s.bin, "start", "surrealkv://"+layout(p.Root).Run("surrealdb"))
	cmd.Env["SURREAL_USER"] = "admin"
	cmd.Env["SURREAL_PASS"] = "password"
	cmd.Env["SURREAL_BIND"] = fmt.Sprintf("127.0.0.1:%d", s.port)
	return sup.Register(ctx, cmd, "surreal")
}

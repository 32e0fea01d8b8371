package targets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/papapumpkin/buildscript/internal/supervisor"
	"github.com/papapumpkin/buildscript/internal/target"
	"github.com/papapumpkin/buildscript/internal/workspace"
)

// ErrNoSupervisor is returned when a service runs without the process
// supervisor enabled.
var ErrNoSupervisor = errors.New("no process supervisor enabled")

// ErrMissingDependency is returned when a declared dependency has no live
// instance.
var ErrMissingDependency = errors.New("dependency not initialized")

func layout(root string) workspace.Layout {
	return workspace.Layout{Root: root}
}

func unsupported(name string) error {
	return fmt.Errorf("%w: no %s install for %s/%s", target.ErrUnsupportedPlatform, name, runtime.GOOS, runtime.GOARCH)
}

// installArchive downloads url into the tool directory of name, unpacks it
// there and removes the archive.
func installArchive(ctx context.Context, p *target.InitParams, name, url, archive string, strip int) error {
	dir := layout(p.Root).Tool(name)
	dest := filepath.Join(dir, archive)
	if err := p.Fetch.Download(ctx, url, dest); err != nil {
		return err
	}
	if err := p.Fetch.ExtractArchive(dest, dir, strip); err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil {
		return fmt.Errorf("removing %s: %w", dest, err)
	}
	return nil
}

// supervisorOf returns the live process supervisor from deps.
func supervisorOf(deps *target.Collection) (supervisor.Supervisor, error) {
	if s, ok := target.Lookup[supervisor.Supervisor](deps, Mprocs); ok {
		return s, nil
	}
	return nil, ErrNoSupervisor
}

// need returns the live instance of k as T.
func need[T any](deps *target.Collection, k target.Kind, name string) (T, error) {
	v, ok := target.Lookup[T](deps, k)
	if !ok {
		return v, fmt.Errorf("%w: %s", ErrMissingDependency, name)
	}
	return v, nil
}

// relink points link at oldname, replacing whatever link was there.
func relink(oldname, link string) error {
	if err := os.Remove(link); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", link, err)
	}
	if err := os.Symlink(oldname, link); err != nil {
		return fmt.Errorf("linking %s: %w", link, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return out.Close()
}

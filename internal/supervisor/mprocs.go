package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"
)

// readyPollInterval is how often Start polls the control port.
const readyPollInterval = 25 * time.Millisecond

// readyTimeout bounds how long Start waits for the control port to accept
// connections.
const readyTimeout = 10 * time.Second

// Mprocs drives an mprocs process in server mode. The multiplexer owns the
// terminal; registered processes are added through its control port.
type Mprocs struct {
	Bin  string // absolute path to the mprocs executable
	Addr string // control address, host:port

	cmd  *exec.Cmd
	done chan error
	err  error
}

// NewMprocs returns an unstarted multiplexer for bin listening on addr.
func NewMprocs(bin, addr string) *Mprocs {
	return &Mprocs{Bin: bin, Addr: addr}
}

// Start launches the multiplexer attached to the current terminal with the
// given environment and waits until its control port accepts connections.
func (m *Mprocs) Start(ctx context.Context, env []string) error {
	if m.cmd != nil {
		return fmt.Errorf("supervisor: mprocs already started")
	}
	cmd := exec.Command(m.Bin, "--server", m.Addr)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("supervisor: start %s: %w", m.Bin, err)
	}
	m.cmd = cmd
	m.done = make(chan error, 1)
	go func() { m.done <- cmd.Wait() }()

	return m.awaitReady(ctx)
}

// awaitReady polls the control address until it accepts a TCP connection,
// the multiplexer exits, or the context or readiness deadline expires.
func (m *Mprocs) awaitReady(ctx context.Context) error {
	deadline := time.Now().Add(readyTimeout)
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()
	for {
		conn, err := net.DialTimeout("tcp", m.Addr, readyPollInterval)
		if err == nil {
			conn.Close()
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("supervisor: mprocs control port %s not ready: %w", m.Addr, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-m.done:
			m.finish(err)
			return fmt.Errorf("%w: mprocs exited before accepting control requests: %v", ErrSupervisorFailed, err)
		case <-ticker.C:
		}
	}
}

// Register asks the running multiplexer to add cmd as a process named name.
func (m *Mprocs) Register(ctx context.Context, cmd *Command, name string) error {
	if m.cmd == nil {
		return ErrNotStarted
	}
	msg, err := AddProcMessage(cmd.Shell(), name)
	if err != nil {
		return err
	}
	ctl := exec.CommandContext(ctx, m.Bin, "--server", m.Addr, "--ctl", msg)
	ctl.SysProcAttr = sessionAttr()
	var stderr bytes.Buffer
	ctl.Stderr = &stderr
	if err := ctl.Run(); err != nil {
		return fmt.Errorf("%w: register %q: %v\nstderr: %s", ErrSupervisorFailed, name, err, stderr.String())
	}
	return nil
}

// Wait blocks until the multiplexer exits. A multiplexer that was never
// started counts as a clean exit.
func (m *Mprocs) Wait() error {
	if m.cmd == nil {
		return nil
	}
	if m.done != nil {
		m.finish(<-m.done)
	}
	if m.err != nil {
		return fmt.Errorf("%w: %v", ErrSupervisorFailed, m.err)
	}
	return nil
}

// Close kills the multiplexer if it is still running.
func (m *Mprocs) Close() error {
	if m.cmd == nil || m.done == nil {
		return nil
	}
	if err := m.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("supervisor: kill mprocs: %w", err)
	}
	m.finish(<-m.done)
	return nil
}

func (m *Mprocs) finish(err error) {
	m.done = nil
	m.err = err
}

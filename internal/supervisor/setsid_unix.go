//go:build !windows

package supervisor

import "syscall"

// sessionAttr returns SysProcAttr that places a control client in its own
// session, keeping it off the terminal the multiplexer is drawing on.
func sessionAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

//go:build !windows

package process

import (
	"errors"
	"syscall"
)

// KillTree sends SIGKILL to the process group led by pid, taking the
// browser's renderer and GPU helpers down with it. A group that is already
// gone is not an error.
func KillTree(pid int) error {
	if pid <= 0 {
		return ErrInvalidPID
	}
	err := syscall.Kill(-pid, syscall.SIGKILL)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

// Alive reports whether a process with the given pid exists.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

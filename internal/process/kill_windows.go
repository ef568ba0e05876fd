//go:build windows

package process

import (
	"os"
	"os/exec"
	"strconv"
)

// KillTree terminates pid and its children with taskkill.
// /F forces termination and /T walks the process tree.
func KillTree(pid int) error {
	if pid <= 0 {
		return ErrInvalidPID
	}
	// #nosec G204 -- pid is an integer
	return exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
}

// Alive reports whether a process with the given pid exists.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}

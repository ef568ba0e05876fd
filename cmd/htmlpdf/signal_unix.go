//go:build !windows

package main

import (
	"os"
	"syscall"
)

// shutdownSignals cancel in-flight renders. SIGHUP covers a closed terminal,
// which would otherwise orphan launched browsers.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}

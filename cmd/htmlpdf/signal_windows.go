//go:build windows

package main

import "os"

// shutdownSignals cancel in-flight renders. Windows only delivers Ctrl+C.
var shutdownSignals = []os.Signal{os.Interrupt}

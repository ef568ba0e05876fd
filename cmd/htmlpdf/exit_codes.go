package main

import (
	"errors"
	"os"

	htmlpdf "github.com/alnah/go-htmlpdf"
	"github.com/alnah/go-htmlpdf/internal/config"
)

// Exit codes for the htmlpdf CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // All sources rendered
	ExitGeneral = 1 // General/unexpected error
	ExitUsage   = 2 // Invalid flags, config, or request
	ExitIO      = 3 // Source not found, output not writable
	ExitBrowser = 4 // Launch, attach, navigation or capture failed
	ExitTimeout = 5 // Request or trigger deadline expired
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Timeouts first: they may also wrap browser errors
	if errors.Is(err, htmlpdf.ErrOperationTimeout) ||
		errors.Is(err, htmlpdf.ErrTriggerTimeout) {
		return ExitTimeout
	}

	// Browser errors (exit 4)
	if errors.Is(err, htmlpdf.ErrLaunch) ||
		errors.Is(err, htmlpdf.ErrAttach) ||
		errors.Is(err, htmlpdf.ErrNavigation) ||
		errors.Is(err, htmlpdf.ErrCapture) {
		return ExitBrowser
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, htmlpdf.ErrFileOutput) ||
		errors.Is(err, ErrReadSource) ||
		errors.Is(err, ErrWriteOutput) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, ErrUsage) ||
		errors.Is(err, ErrNoInput) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, htmlpdf.ErrEmptySource) ||
		errors.Is(err, htmlpdf.ErrInvalidTrigger) ||
		errors.Is(err, htmlpdf.ErrInvalidCookie) ||
		errors.Is(err, htmlpdf.ErrInvalidPrint) {
		return ExitUsage
	}

	return ExitGeneral
}

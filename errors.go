package htmlpdf

import "errors"

// Sentinel errors for library operations.
var (
	ErrLaunch           = errors.New("failed to launch browser")
	ErrAttach           = errors.New("failed to attach to browser")
	ErrNavigation       = errors.New("page navigate failed")
	ErrTriggerTimeout   = errors.New("completion trigger timed out")
	ErrOperationTimeout = errors.New("operation timed out")
	ErrCapture          = errors.New("PDF capture failed")
	ErrFileOutput       = errors.New("failed to write PDF file")

	// Request validation errors.
	ErrEmptySource    = errors.New("source cannot be empty")
	ErrInvalidTrigger = errors.New("invalid completion trigger")
	ErrInvalidCookie  = errors.New("invalid cookie")
	ErrInvalidPrint   = errors.New("invalid print options")
)

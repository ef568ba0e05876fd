// Package fileutil provides file and path utility functions.
package fileutil

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Sentinel errors for file utility operations.
var (
	ErrExtensionEmpty         = errors.New("extension cannot be empty")
	ErrExtensionPathTraversal = errors.New("extension contains path separator or null byte")
)

// tempPattern prefixes temp files so leftovers are easy to spot.
const tempPattern = "htmlpdf-*."

// urlPrefixes are the schemes a browser can navigate to directly.
var urlPrefixes = []string{"http://", "https://", "file://", "data:", "about:"}

// WriteTempFile creates a temporary file with the given content and extension.
// Returns the file path and a cleanup function to remove the file.
func WriteTempFile(content, extension string) (path string, cleanup func(), err error) {
	if err := ValidateExtension(extension); err != nil {
		return "", nil, err
	}

	tmpFile, err := os.CreateTemp("", tempPattern+extension)
	if err != nil {
		return "", nil, fmt.Errorf("creating temp file: %w", err)
	}

	path = tmpFile.Name()
	cleanup = func() { _ = os.Remove(path) }

	if _, writeErr := tmpFile.WriteString(content); writeErr != nil {
		_ = tmpFile.Close()
		cleanup()
		return "", nil, fmt.Errorf("writing temp file: %w", writeErr)
	}

	if closeErr := tmpFile.Close(); closeErr != nil {
		cleanup()
		return "", nil, fmt.Errorf("closing temp file: %w", closeErr)
	}

	return path, cleanup, nil
}

// ValidateExtension checks that the extension is safe for use in temp file names.
func ValidateExtension(extension string) error {
	if extension == "" {
		return ErrExtensionEmpty
	}
	if strings.ContainsAny(extension, "/\\\x00") {
		return ErrExtensionPathTraversal
	}
	return nil
}

// FileExists returns true if the path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists returns true if the path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// IsURL returns true if the string starts with a scheme the browser can
// load without help (case-insensitive).
func IsURL(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range urlPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// PDFName derives an output file name from a source: "report.html" and
// "https://example.com/docs/report" both yield "report.pdf".
// Sources without a usable base name yield "output.pdf".
func PDFName(source string) string {
	base := ""
	if IsURL(source) {
		if u, err := url.Parse(source); err == nil {
			base = path.Base(u.Path)
			if base == "/" || base == "." {
				base = u.Hostname()
			}
		}
	} else {
		base = filepath.Base(source)
	}

	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" {
		return "output.pdf"
	}
	return base + ".pdf"
}

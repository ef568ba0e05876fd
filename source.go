package htmlpdf

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/alnah/go-htmlpdf/internal/fileutil"
)

// maxLoggedURL bounds URLs written to logs (data: URLs can be large).
const maxLoggedURL = 120

// resolveSource turns a request source into a URL the browser can load.
// URLs pass through, existing local files become file:// URLs, and anything
// else is treated as markup written to a temp file. cleanup may be nil.
func resolveSource(src string) (target string, cleanup func(), err error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return "", nil, ErrEmptySource
	}

	if fileutil.IsURL(trimmed) {
		return trimmed, nil, nil
	}

	if isLocalFile(trimmed) {
		abs, err := filepath.Abs(trimmed)
		if err != nil {
			return "", nil, fmt.Errorf("resolving %q: %w", trimmed, err)
		}
		return fileURL(abs), nil, nil
	}

	path, cleanup, err := fileutil.WriteTempFile(src, "html")
	if err != nil {
		return "", nil, err
	}
	return fileURL(path), cleanup, nil
}

// isLocalFile reports whether src names an existing file rather than markup.
func isLocalFile(src string) bool {
	if strings.ContainsAny(src, "<>\n") {
		return false
	}
	return fileutil.FileExists(src)
}

func fileURL(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path // Windows drive letters
	}
	return u.String()
}

func redactURL(u string) string {
	if len(u) <= maxLoggedURL {
		return u
	}
	return u[:maxLoggedURL] + "..."
}

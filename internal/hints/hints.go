// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alnah/go-htmlpdf/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// ForLaunch returns hints for browser launch errors.
// Detects CI/Docker environment and suggests relevant environment variables.
func ForLaunch() string {
	var hints []string

	inCI := os.Getenv("CI") != "" ||
		os.Getenv("GITHUB_ACTIONS") != "" ||
		os.Getenv("GITLAB_CI") != "" ||
		os.Getenv("JENKINS_URL") != ""

	if (inCI || IsInContainer()) && os.Getenv("ROD_NO_SANDBOX") != "1" {
		hints = append(hints, "set ROD_NO_SANDBOX=1 for Docker/CI")
	}
	if os.Getenv("ROD_BROWSER_BIN") == "" {
		hints = append(hints, "set ROD_BROWSER_BIN to use an installed Chrome")
	}
	hints = append(hints, "or attach to a running browser with --port")

	return formatHints(hints)
}

// ForAttach returns a hint for an unreachable debugging endpoint.
func ForAttach(port int) string {
	if port <= 0 {
		return format("start the browser with --remote-debugging-port")
	}
	return format(fmt.Sprintf("start the browser with --remote-debugging-port=%d", port))
}

// ForTimeout returns a hint about the overall request deadline.
func ForTimeout() string {
	return format("slow pages need a larger --timeout; omit it for no deadline")
}

// ForTrigger returns a hint for a page that never signalled readiness.
func ForTrigger(trigger string) string {
	kind, name, _ := strings.Cut(trigger, ":")
	switch kind {
	case "callback":
		if name == "" {
			name = "htmlPdfCb"
		}
		return format(fmt.Sprintf("the page must call window.%s(); raise --trigger-timeout if it is slow", name))
	case "variable":
		if name == "" {
			name = "htmlPdfDone"
		}
		return format(fmt.Sprintf("the page must set window.%s = true; raise --trigger-timeout if it is slow", name))
	case "event":
		return format("the event must be dispatched after the load event; raise --trigger-timeout if it is slow")
	case "element":
		return format("check the selector matches; raise --trigger-timeout if it is slow")
	default:
		return format("raise --trigger-timeout")
	}
}

// ForNavigation returns a hint for a page that failed to load.
func ForNavigation() string {
	return format("check the URL is reachable from the browser, not only from this host")
}

// ForConfigNotFound returns hints for config file not found errors.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	for _, p := range searchedPaths {
		if strings.Contains(filepath.ToSlash(p), "/htmlpdf/") {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// ForOutputDirectory returns hints for output directory creation errors.
func ForOutputDirectory() string {
	return format("check parent directory exists and is writable")
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}

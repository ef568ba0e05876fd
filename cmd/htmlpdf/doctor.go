package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/alnah/go-htmlpdf/internal/fileutil"
	"github.com/alnah/go-htmlpdf/internal/hints"
	"github.com/go-rod/rod/lib/launcher"
	flag "github.com/spf13/pflag"
)

// Doctor statuses.
const (
	statusReady    = "ready"
	statusWarnings = "warnings"
	statusErrors   = "errors"
)

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string        `json:"status"`
	Browser  browserInfo   `json:"browser"`
	Endpoint *endpointInfo `json:"endpoint,omitempty"`
	Env      envInfo       `json:"environment"`
	System   systemInfo    `json:"system"`
	Warnings []string      `json:"warnings,omitempty"`
	Errors   []string      `json:"errors,omitempty"`
}

// browserInfo holds local browser detection results.
type browserInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Sandbox bool   `json:"sandbox"`
}

// endpointInfo holds the result of probing a debugging endpoint.
type endpointInfo struct {
	Address    string `json:"address"`
	Reachable  bool   `json:"reachable"`
	ControlURL string `json:"control_url,omitempty"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS         string `json:"os"`
	Arch       string `json:"arch"`
	Container  bool   `json:"container"`
	CI         bool   `json:"ci"`
	NoSandbox  string `json:"rod_no_sandbox"`
	BrowserBin string `json:"rod_browser_bin"`
}

// systemInfo holds system check results.
type systemInfo struct {
	TempWritable bool `json:"temp_writable"`
}

// doctorHooks are the system calls that touch the machine, replaceable in tests.
type doctorHooks struct {
	lookPath   func() (string, bool)
	version    func(bin string) (string, error)
	resolveURL  func(addr string) (string, error)
	tempDir     func() string
	inContainer func() bool
}

var defaultHooks = doctorHooks{
	lookPath: launcher.LookPath,
	version: func(bin string) (string, error) {
		out, err := exec.Command(bin, "--version").Output() // #nosec G204 -- user-selected browser
		return strings.TrimSpace(string(out)), err
	},
	resolveURL:  launcher.ResolveURL,
	tempDir:     os.TempDir,
	inContainer: hints.IsInContainer,
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found.
func runDoctorCmd(args []string, env *Environment, hooks doctorHooks) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	jsonOutput := fs.Bool("json", false, "print results as JSON")
	host := fs.String("host", env.Getenv("HTMLPDF_HOST"), "debugging host to check")
	port := fs.Int("port", 0, "debugging port to check")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if !fs.Changed("port") {
		*port, _ = strconv.Atoi(env.Getenv("HTMLPDF_PORT"))
	}

	result := runDoctor(env.Getenv, hooks, *host, *port)

	if *jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == statusErrors {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks. A positive port checks a
// running browser instead of requiring a local binary.
func runDoctor(getenv func(string) string, hooks doctorHooks, host string, port int) *doctorResult {
	result := &doctorResult{
		Status: statusReady,
		Env: envInfo{
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			NoSandbox:  getenv("ROD_NO_SANDBOX"),
			BrowserBin: getenv("ROD_BROWSER_BIN"),
		},
	}

	if port > 0 {
		checkEndpoint(result, hooks, host, port)
	} else {
		checkBrowser(result, hooks)
	}
	checkEnvironment(result, getenv, hooks.inContainer)
	checkSystem(result, hooks)

	if len(result.Errors) > 0 {
		result.Status = statusErrors
	} else if len(result.Warnings) > 0 {
		result.Status = statusWarnings
	}
	return result
}

// checkBrowser detects a browser the command can launch.
func checkBrowser(result *doctorResult, hooks doctorHooks) {
	bin := result.Env.BrowserBin
	if bin == "" {
		var found bool
		if bin, found = hooks.lookPath(); !found {
			result.Warnings = append(result.Warnings,
				"No local browser found; rod will download Chromium on first launch, or set ROD_BROWSER_BIN")
			return
		}
	}

	if !fileutil.FileExists(bin) {
		result.Errors = append(result.Errors, fmt.Sprintf("Browser not found at %s", bin))
		return
	}

	result.Browser.Found = true
	result.Browser.Path = bin
	result.Browser.Sandbox = result.Env.NoSandbox != "1"

	version, err := hooks.version(bin)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Could not get browser version: %v", err))
		return
	}
	result.Browser.Version = version
}

// checkEndpoint checks a running browser's debugging endpoint.
func checkEndpoint(result *doctorResult, hooks doctorHooks, host string, port int) {
	if host == "" {
		host = "localhost"
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	result.Endpoint = &endpointInfo{Address: addr}

	controlURL, err := hooks.resolveURL(addr)
	if err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("No debugging endpoint at %s: %v", addr, err)+hints.ForAttach(port))
		return
	}
	result.Endpoint.Reachable = true
	result.Endpoint.ControlURL = controlURL
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult, getenv func(string) string, inContainer func() bool) {
	result.Env.Container = inContainer() ||
		getenv("container") != "" ||
		getenv("KUBERNETES_SERVICE_HOST") != ""

	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"} {
		if getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}

	if result.Endpoint == nil && (result.Env.Container || result.Env.CI) && result.Env.NoSandbox != "1" {
		result.Warnings = append(result.Warnings,
			"Container/CI detected but ROD_NO_SANDBOX not set. Set ROD_NO_SANDBOX=1 or use --no-sandbox")
	}
}

// checkSystem verifies the temp directory used for inline markup is writable.
func checkSystem(result *doctorResult, hooks doctorHooks) {
	dir := hooks.tempDir()
	f, err := os.CreateTemp(dir, "htmlpdf-doctor-*")
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Temp directory not writable: %s", dir))
		return
	}
	_ = f.Close()
	_ = os.Remove(filepath.Clean(f.Name()))
	result.System.TempWritable = true
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "htmlpdf doctor")
	fmt.Fprintln(w)

	if r.Endpoint != nil {
		fmt.Fprintln(w, "Debugging endpoint")
		if r.Endpoint.Reachable {
			fmt.Fprintf(w, "  [OK] %s -> %s\n", r.Endpoint.Address, r.Endpoint.ControlURL)
		} else {
			fmt.Fprintf(w, "  [ERROR] %s unreachable\n", r.Endpoint.Address)
		}
	} else {
		fmt.Fprintln(w, "Browser")
		if r.Browser.Found {
			fmt.Fprintf(w, "  [OK] Found at %s\n", r.Browser.Path)
			if r.Browser.Version != "" {
				fmt.Fprintf(w, "  [OK] Version: %s\n", r.Browser.Version)
			}
			if r.Browser.Sandbox {
				fmt.Fprintln(w, "  [OK] Sandbox: enabled")
			} else {
				fmt.Fprintln(w, "  [OK] Sandbox: disabled (ROD_NO_SANDBOX=1)")
			}
		} else {
			fmt.Fprintln(w, "  [WARN] Not found locally")
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s\n", r.Env.OS, r.Env.Arch)
	if r.Env.Container {
		fmt.Fprintln(w, "  [OK] Container: detected")
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	if r.System.TempWritable {
		fmt.Fprintln(w, "  [OK] Temp directory: writable")
	}
	fmt.Fprintln(w)

	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "[WARN] %s\n", warn)
	}
	for _, err := range r.Errors {
		fmt.Fprintf(w, "[ERROR] %s\n", err)
	}
	if len(r.Warnings)+len(r.Errors) > 0 {
		fmt.Fprintln(w)
	}

	switch r.Status {
	case statusReady:
		fmt.Fprintln(w, "Status: Ready to render")
	case statusWarnings:
		fmt.Fprintln(w, "Status: Ready with warnings")
	case statusErrors:
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}

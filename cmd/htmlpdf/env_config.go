package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alnah/go-htmlpdf/internal/config"
)

// envPrefix marks the command's environment variables.
const envPrefix = "HTMLPDF_"

// envConfig holds configuration from environment variables.
// Provides CI/CD-friendly overrides without requiring YAML files.
type envConfig struct {
	ConfigPath     string // HTMLPDF_CONFIG: config file name or path
	Host           string // HTMLPDF_HOST: debugging host
	Port           int    // HTMLPDF_PORT: debugging port
	BrowserBin     string // HTMLPDF_BROWSER_BIN: browser binary
	NoSandbox      bool   // HTMLPDF_NO_SANDBOX: launch without sandbox
	Timeout        string // HTMLPDF_TIMEOUT: deadline per source
	Trigger        string // HTMLPDF_TRIGGER: readiness trigger
	TriggerTimeout string // HTMLPDF_TRIGGER_TIMEOUT: trigger deadline
	PageSize       string // HTMLPDF_PAGE_SIZE: letter, a4, legal
	Workers        int    // HTMLPDF_WORKERS: parallel renders
	LogLevel       string // HTMLPDF_LOG_LEVEL
	LogFormat      string // HTMLPDF_LOG_FORMAT
	LogFile        string // HTMLPDF_LOG_FILE
}

// knownEnvVars lists valid HTMLPDF_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"HTMLPDF_CONFIG":          true,
	"HTMLPDF_HOST":            true,
	"HTMLPDF_PORT":            true,
	"HTMLPDF_BROWSER_BIN":     true,
	"HTMLPDF_NO_SANDBOX":      true,
	"HTMLPDF_TIMEOUT":         true,
	"HTMLPDF_TRIGGER":         true,
	"HTMLPDF_TRIGGER_TIMEOUT": true,
	"HTMLPDF_PAGE_SIZE":       true,
	"HTMLPDF_WORKERS":         true,
	"HTMLPDF_LOG_LEVEL":       true,
	"HTMLPDF_LOG_FORMAT":      true,
	"HTMLPDF_LOG_FILE":        true,
}

// loadEnvConfig reads configuration from environment variables.
// Malformed numbers and booleans are reported rather than ignored.
func loadEnvConfig(getenv func(string) string) (*envConfig, error) {
	cfg := &envConfig{
		ConfigPath:     getenv("HTMLPDF_CONFIG"),
		Host:           getenv("HTMLPDF_HOST"),
		BrowserBin:     getenv("HTMLPDF_BROWSER_BIN"),
		Timeout:        getenv("HTMLPDF_TIMEOUT"),
		Trigger:        getenv("HTMLPDF_TRIGGER"),
		TriggerTimeout: getenv("HTMLPDF_TRIGGER_TIMEOUT"),
		PageSize:       getenv("HTMLPDF_PAGE_SIZE"),
		LogLevel:       getenv("HTMLPDF_LOG_LEVEL"),
		LogFormat:      getenv("HTMLPDF_LOG_FORMAT"),
		LogFile:        getenv("HTMLPDF_LOG_FILE"),
	}

	var err error
	if cfg.Port, err = envInt(getenv, "HTMLPDF_PORT"); err != nil {
		return nil, err
	}
	if cfg.Workers, err = envInt(getenv, "HTMLPDF_WORKERS"); err != nil {
		return nil, err
	}
	if v := getenv("HTMLPDF_NO_SANDBOX"); v != "" {
		if cfg.NoSandbox, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("%w: HTMLPDF_NO_SANDBOX=%q is not a boolean", ErrUsage, v)
		}
	}
	return cfg, nil
}

func envInt(getenv func(string) string, name string) (int, error) {
	v := getenv(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a number", ErrUsage, name, v)
	}
	return n, nil
}

// warnUnknownEnvVars logs warnings for unrecognized HTMLPDF_* variables.
// Helps catch typos like HTMLPDF_TIMOUT.
func warnUnknownEnvVars(environ []string, w io.Writer) {
	for _, env := range environ {
		if !strings.HasPrefix(env, envPrefix) {
			continue
		}
		name, _, _ := strings.Cut(env, "=")
		if !knownEnvVars[name] {
			fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
		}
	}
}

// applyEnvConfig overlays set environment values onto cfg.
// Precedence: CLI flags > env vars > config file > defaults
// (CLI flags are applied later via mergeFlags).
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.Host != "" {
		cfg.Browser.Host = env.Host
	}
	if env.Port != 0 {
		cfg.Browser.Port = env.Port
	}
	if env.BrowserBin != "" {
		cfg.Browser.Bin = env.BrowserBin
	}
	if env.NoSandbox {
		cfg.Browser.NoSandbox = true
	}

	if env.Timeout != "" {
		cfg.Request.Timeout = env.Timeout
	}
	if env.Trigger != "" {
		cfg.Request.Trigger = env.Trigger
	}
	if env.TriggerTimeout != "" {
		cfg.Request.TriggerTimeout = env.TriggerTimeout
	}

	if env.PageSize != "" {
		cfg.Page.Size = env.PageSize
	}
	if env.Workers != 0 {
		cfg.Workers = env.Workers
	}

	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
	if env.LogFormat != "" {
		cfg.Log.Format = env.LogFormat
	}
	if env.LogFile != "" {
		cfg.Log.File = env.LogFile
	}
}

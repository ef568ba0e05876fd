// Package config loads the htmlpdf command's YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-htmlpdf/internal/fileutil"
	"github.com/alnah/go-htmlpdf/internal/logging"
	"github.com/alnah/go-htmlpdf/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// Field length limits.
const (
	MaxHostLength     = 253  // DNS name
	MaxPathLength     = 4096 // PATH_MAX
	MaxURLLength      = 2048 // Browser limit
	MaxTriggerLength  = 512  // "event:name@selector"
	MaxTemplateLength = 8192 // header/footer markup
	MaxRangesLength   = 100  // "1-5, 8, 11-13"
	MaxCookieLength   = 4096 // RFC 6265 practical limit
)

// MaxWorkers bounds concurrent renders in one invocation.
const MaxWorkers = 32

// Config holds everything the command can read from a file.
type Config struct {
	Browser BrowserConfig  `yaml:"browser"`
	Request RequestConfig  `yaml:"request"`
	Page    PageConfig     `yaml:"page"`
	Cookies []CookieConfig `yaml:"cookies"`
	Workers int            `yaml:"workers"` // 0 = derived from CPU count
	Log     logging.Config `yaml:"log"`
}

// BrowserConfig selects an existing endpoint or configures a launched browser.
type BrowserConfig struct {
	Host      string   `yaml:"host"`
	Port      int      `yaml:"port"` // 0 = launch a browser
	Bin       string   `yaml:"bin"`
	Headful   bool     `yaml:"headful"`
	NoSandbox bool     `yaml:"noSandbox"`
	Args      []string `yaml:"args"`
}

// RequestConfig controls the session of each render.
type RequestConfig struct {
	Timeout        string `yaml:"timeout"`        // e.g. "30s"; empty = unbounded
	Trigger        string `yaml:"trigger"`        // e.g. "variable:ready"
	TriggerTimeout string `yaml:"triggerTimeout"` // e.g. "10s"
	ClearCache     bool   `yaml:"clearCache"`
}

// PageConfig maps onto the browser's print options.
type PageConfig struct {
	Size              string  `yaml:"size"` // "letter", "a4", "legal"
	Landscape         bool    `yaml:"landscape"`
	Background        bool    `yaml:"background"`
	HeaderFooter      bool    `yaml:"headerFooter"`
	PreferCSSPageSize bool    `yaml:"preferCSSPageSize"`
	Scale             float64 `yaml:"scale"`
	Margin            float64 `yaml:"margin"` // inches, all sides
	PageRanges        string  `yaml:"pageRanges"`
	HeaderTemplate    string  `yaml:"headerTemplate"`
	FooterTemplate    string  `yaml:"footerTemplate"`
}

// CookieConfig is a cookie set before navigation.
type CookieConfig struct {
	Name     string `yaml:"name"`
	Value    string `yaml:"value"`
	Domain   string `yaml:"domain"`
	URL      string `yaml:"url"`
	Path     string `yaml:"path"`
	Secure   bool   `yaml:"secure"`
	HTTPOnly bool   `yaml:"httpOnly"`
	SameSite string `yaml:"sameSite"`
}

// Validate checks ranges, durations and field lengths. Called by LoadConfig,
// and again by the command after flags are applied.
func (c *Config) Validate() error {
	if err := validateFieldLength("browser.host", c.Browser.Host, MaxHostLength); err != nil {
		return err
	}
	if err := validateFieldLength("browser.bin", c.Browser.Bin, MaxPathLength); err != nil {
		return err
	}
	if c.Browser.Port < 0 || c.Browser.Port > 65535 {
		return fmt.Errorf("%w: browser.port %d out of range", ErrInvalidValue, c.Browser.Port)
	}

	if _, _, err := c.Request.TimeoutDuration(); err != nil {
		return err
	}
	if _, err := c.Request.TriggerTimeoutDuration(); err != nil {
		return err
	}
	if err := validateFieldLength("request.trigger", c.Request.Trigger, MaxTriggerLength); err != nil {
		return err
	}

	if c.Page.Scale < 0 {
		return fmt.Errorf("%w: page.scale must not be negative", ErrInvalidValue)
	}
	if c.Page.Margin < 0 {
		return fmt.Errorf("%w: page.margin must not be negative", ErrInvalidValue)
	}
	if err := validateFieldLength("page.pageRanges", c.Page.PageRanges, MaxRangesLength); err != nil {
		return err
	}
	if err := validateFieldLength("page.headerTemplate", c.Page.HeaderTemplate, MaxTemplateLength); err != nil {
		return err
	}
	if err := validateFieldLength("page.footerTemplate", c.Page.FooterTemplate, MaxTemplateLength); err != nil {
		return err
	}

	for i, ck := range c.Cookies {
		if err := validateFieldLength(fmt.Sprintf("cookies[%d].value", i), ck.Value, MaxCookieLength); err != nil {
			return err
		}
		if err := validateFieldLength(fmt.Sprintf("cookies[%d].url", i), ck.URL, MaxURLLength); err != nil {
			return err
		}
	}

	if c.Workers < 0 || c.Workers > MaxWorkers {
		return fmt.Errorf("%w: workers must be between 0 and %d, got %d", ErrInvalidValue, MaxWorkers, c.Workers)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("%w: log: %v", ErrInvalidValue, err)
	}
	return nil
}

// TimeoutDuration parses Timeout. ok is false when no timeout is set.
func (r RequestConfig) TimeoutDuration() (d time.Duration, ok bool, err error) {
	return parseDuration("request.timeout", r.Timeout)
}

// TriggerTimeoutDuration parses TriggerTimeout; zero when unset.
func (r RequestConfig) TriggerTimeoutDuration() (time.Duration, error) {
	d, _, err := parseDuration("request.triggerTimeout", r.TriggerTimeout)
	return d, err
}

func parseDuration(field, s string) (time.Duration, bool, error) {
	if s == "" {
		return 0, false, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s: %v", ErrInvalidValue, field, err)
	}
	if d < 0 {
		return 0, false, fmt.Errorf("%w: %s must not be negative", ErrInvalidValue, field)
	}
	return d, true, nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// DefaultConfig returns the configuration used when no file is given:
// launch a headless browser, print backgrounds, no timeout.
func DefaultConfig() *Config {
	return &Config{
		Page: PageConfig{Background: true},
		Log:  logging.Config{Level: "warn", Format: logging.FormatConsole},
	}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Fields absent from the file keep their DefaultConfig values.
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	configPath := nameOrPath
	if !isFilePath(nameOrPath) {
		var err error
		if configPath, err = resolveConfigPath(nameOrPath); err != nil {
			return nil, err
		}
	}

	cfg := DefaultConfig()
	if err := yamlutil.ReadFile(configPath, cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// isFilePath returns true if the string looks like a file path.
func isFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}

// resolveConfigPath searches for a config file by name.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, <user config dir>/htmlpdf/
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	tried := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		local := name + ext
		if fileutil.FileExists(local) {
			return local, nil
		}
		tried = append(tried, local)
	}

	if dir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			user := filepath.Join(dir, "htmlpdf", name+ext)
			if fileutil.FileExists(user) {
				return user, nil
			}
			tried = append(tried, user)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(tried, ", "))
}

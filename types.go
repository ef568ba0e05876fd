package htmlpdf

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ysmood/gson"
)

// Paper size constants.
const (
	PaperSizeLetter = "letter"
	PaperSizeA4     = "a4"
	PaperSizeLegal  = "legal"
)

// Scale bounds accepted by the browser's print-to-PDF.
const (
	MinScale = 0.1
	MaxScale = 2.0
)

// DefaultHost is used when an Endpoint has no host.
const DefaultHost = "localhost"

// paperDimensions maps paper sizes to width x height in inches.
var paperDimensions = map[string][2]float64{
	PaperSizeLetter: {8.5, 11},
	PaperSizeA4:     {8.27, 11.69},
	PaperSizeLegal:  {8.5, 14},
}

// Endpoint is the debugging endpoint of an already-running browser.
type Endpoint struct {
	Host string // defaults to "localhost"
	Port int
}

// Address returns the endpoint as host:port.
func (e *Endpoint) Address() string {
	host := e.Host
	if host == "" {
		host = DefaultHost
	}
	return net.JoinHostPort(host, strconv.Itoa(e.Port))
}

// Validate checks that the endpoint is usable.
// Returns nil if e is nil (nil means launch a browser).
func (e *Endpoint) Validate() error {
	if e == nil {
		return nil
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrAttach, e.Port)
	}
	return nil
}

// LaunchConfig configures the browser process started when no Endpoint is given.
type LaunchConfig struct {
	Bin       string   // browser binary; empty = ROD_BROWSER_BIN or managed download
	Headful   bool     // show the browser window
	NoSandbox bool     // required in most containers
	Args      []string // extra flags, "name" or "name=value", without leading dashes
}

// Cookie is set on the request's browser context before navigation.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	URL      string
	Path     string
	Secure   bool
	HTTPOnly bool
	SameSite string    // "Strict", "Lax", "None" or empty
	Expires  time.Time // zero = session cookie
}

// Validate checks that the cookie can be applied.
func (c Cookie) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCookie)
	}
	if c.Domain == "" && c.URL == "" {
		return fmt.Errorf("%w: %q needs a domain or url", ErrInvalidCookie, c.Name)
	}
	switch strings.ToLower(c.SameSite) {
	case "", "strict", "lax", "none":
	default:
		return fmt.Errorf("%w: %q has unknown sameSite %q", ErrInvalidCookie, c.Name, c.SameSite)
	}
	return nil
}

// Margins are page margins in inches. Zero values use the browser default.
type Margins struct {
	Top, Right, Bottom, Left float64
}

// PrintOptions maps onto the browser's native print-to-PDF flags.
// Zero values leave the browser's defaults in place.
type PrintOptions struct {
	Landscape           bool
	DisplayHeaderFooter bool
	PrintBackground     bool
	PreferCSSPageSize   bool
	Scale               float64 // 0.1 - 2.0
	PaperSize           string  // "letter", "a4", "legal"; overridden by PaperWidth/PaperHeight
	PaperWidth          float64 // inches
	PaperHeight         float64 // inches
	Margins             Margins
	PageRanges          string // e.g. "1-5, 8"
	HeaderTemplate      string
	FooterTemplate      string
}

// Validate checks that print options are valid.
// Returns nil if p is nil (nil means browser defaults).
func (p *PrintOptions) Validate() error {
	if p == nil {
		return nil
	}
	if p.Scale != 0 && (p.Scale < MinScale || p.Scale > MaxScale) {
		return fmt.Errorf("%w: scale %.2f (must be between %.1f and %.1f)", ErrInvalidPrint, p.Scale, MinScale, MaxScale)
	}
	if p.PaperSize != "" {
		if _, ok := paperDimensions[strings.ToLower(p.PaperSize)]; !ok {
			return fmt.Errorf("%w: paper size %q", ErrInvalidPrint, p.PaperSize)
		}
	}
	if p.PaperWidth < 0 || p.PaperHeight < 0 {
		return fmt.Errorf("%w: paper dimensions must not be negative", ErrInvalidPrint)
	}
	m := p.Margins
	if m.Top < 0 || m.Right < 0 || m.Bottom < 0 || m.Left < 0 {
		return fmt.Errorf("%w: margins must not be negative", ErrInvalidPrint)
	}
	return nil
}

// paper resolves the effective paper width and height; zero means browser default.
func (p *PrintOptions) paper() (width, height float64) {
	if dims, ok := paperDimensions[strings.ToLower(p.PaperSize)]; ok {
		width, height = dims[0], dims[1]
	}
	if p.PaperWidth > 0 {
		width = p.PaperWidth
	}
	if p.PaperHeight > 0 {
		height = p.PaperHeight
	}
	return width, height
}

// ConsoleArg is one argument passed to a console API call in the page.
type ConsoleArg struct {
	Type        string    // "string", "number", "object", ...
	Subtype     string    // "array", "null", "error", ...
	Value       gson.JSON // primitive or serializable value
	Description string    // present for objects and functions
}

// ConsoleEvent is produced for every console API call in the page.
type ConsoleEvent struct {
	Type      string // "log", "warning", "error", ...
	Timestamp time.Time
	Args      []ConsoleArg
}

// ExceptionEvent is produced for every uncaught exception in the page.
type ExceptionEvent struct {
	Timestamp   time.Time
	Text        string
	Description string // usually the error's stack
	URL         string
	Line        int
	Column      int
}

// Request describes one HTML to PDF generation.
type Request struct {
	Source     string        // inline markup, URL, or local file path (required)
	Endpoint   *Endpoint     // attach to a running browser; nil = launch one
	Launch     *LaunchConfig // used only when Endpoint is nil
	Cookies    []Cookie
	Print      *PrintOptions
	Trigger    CompletionTrigger // nil = capture at the load event
	Timeout    *time.Duration    // nil = unbounded; zero always times out
	ClearCache bool

	ConsoleHandler   func(ConsoleEvent)
	ExceptionHandler func(ExceptionEvent)
}

// Validate checks that required fields are present and valid.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.Source) == "" {
		return ErrEmptySource
	}
	if err := r.Endpoint.Validate(); err != nil {
		return err
	}
	for _, c := range r.Cookies {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	if err := r.Print.Validate(); err != nil {
		return err
	}
	if r.Trigger != nil {
		if err := r.Trigger.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Duration returns a pointer to d, for Request.Timeout.
func Duration(d time.Duration) *time.Duration {
	return &d
}

// floatPtr returns a pointer to a float64 value.
func floatPtr(v float64) *float64 {
	return &v
}

// optionalFloat returns nil for zero so the browser default applies.
func optionalFloat(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return floatPtr(v)
}

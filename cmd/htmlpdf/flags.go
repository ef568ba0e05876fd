package main

import (
	"fmt"
	"io"

	flag "github.com/spf13/pflag"
)

// commonFlags holds flags that control the command itself.
type commonFlags struct {
	config     string
	verbose    bool
	version    bool
	help       bool
	dumpConfig bool
}

// browserFlags selects the browser to render with.
type browserFlags struct {
	host      string
	port      int
	bin       string
	noSandbox bool
	headful   bool
}

// requestFlags holds per-render session flags.
type requestFlags struct {
	timeout        string
	trigger        string
	triggerTimeout string
	cookies        []string
	clearCache     bool
}

// pageFlags holds print-to-PDF flags.
type pageFlags struct {
	size         string
	landscape    bool
	headerFooter bool
	background   bool
	scale        float64
	margin       float64
	pageRanges   string
}

// logFlags holds logging flags.
type logFlags struct {
	level  string
	format string
	file   string
}

// outputFlags holds output mode flags.
type outputFlags struct {
	path    string
	base64  bool
	console bool
	workers int
}

// cliFlags holds every flag of the command.
type cliFlags struct {
	common  commonFlags
	browser browserFlags
	request requestFlags
	page    pageFlags
	log     logFlags
	output  outputFlags

	// changed reports whether a flag was set on the command line, so only
	// explicit flags override config and environment.
	changed func(name string) bool
}

// addCommonFlags adds command flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log at debug level")
	fs.BoolVar(&f.version, "version", false, "print version and exit")
	fs.BoolVarP(&f.help, "help", "h", false, "show help")
	fs.BoolVar(&f.dumpConfig, "dump-config", false, "print the merged config as YAML and exit")
}

// addBrowserFlags adds browser selection flags to a FlagSet.
func addBrowserFlags(fs *flag.FlagSet, f *browserFlags) {
	fs.StringVar(&f.host, "host", "", "debugging host of a running browser (default localhost)")
	fs.IntVar(&f.port, "port", 0, "debugging port of a running browser (0 = launch one)")
	fs.StringVar(&f.bin, "browser-bin", "", "browser binary to launch")
	fs.BoolVar(&f.noSandbox, "no-sandbox", false, "launch without the browser sandbox (containers)")
	fs.BoolVar(&f.headful, "headful", false, "show the launched browser window")
}

// addRequestFlags adds session flags to a FlagSet.
func addRequestFlags(fs *flag.FlagSet, f *requestFlags) {
	fs.StringVarP(&f.timeout, "timeout", "t", "", "deadline per source, e.g. 30s (empty = none)")
	fs.StringVar(&f.trigger, "trigger", "", "readiness trigger: timer:300ms, event:name[@selector], callback[:name], variable[:name], element:selector")
	fs.StringVar(&f.triggerTimeout, "trigger-timeout", "", "trigger deadline (default 5s)")
	fs.StringArrayVar(&f.cookies, "cookie", nil, "cookie name=value@domain (repeatable)")
	fs.BoolVar(&f.clearCache, "clear-cache", false, "clear the browser cache before navigation")
}

// addPageFlags adds print flags to a FlagSet.
func addPageFlags(fs *flag.FlagSet, f *pageFlags) {
	fs.StringVarP(&f.size, "page-size", "p", "", "paper size: letter, a4, legal")
	fs.BoolVar(&f.landscape, "landscape", false, "landscape orientation")
	fs.BoolVar(&f.headerFooter, "header-footer", false, "print the browser header and footer")
	fs.BoolVar(&f.background, "background", true, "print background graphics")
	fs.Float64Var(&f.scale, "scale", 0, "page scale (0.1-2.0)")
	fs.Float64Var(&f.margin, "margin", 0, "page margin in inches, all sides")
	fs.StringVar(&f.pageRanges, "page-ranges", "", "pages to print, e.g. 1-5,8")
}

// addLogFlags adds logging flags to a FlagSet.
func addLogFlags(fs *flag.FlagSet, f *logFlags) {
	fs.StringVar(&f.level, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&f.format, "log-format", "", "log format: console, json")
	fs.StringVar(&f.file, "log-file", "", "also write JSON logs to a rotated file")
}

// addOutputFlags adds output flags to a FlagSet.
func addOutputFlags(fs *flag.FlagSet, f *outputFlags) {
	fs.StringVarP(&f.path, "output", "o", "", "output file, directory, or - for stdout")
	fs.BoolVar(&f.base64, "base64", false, "write PDFs as base64 text")
	fs.BoolVar(&f.console, "console", false, "print page console output to stderr")
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel renders (0 = auto)")
}

// parseFlags parses command flags and returns positional args.
func parseFlags(args []string, stderr io.Writer) (*cliFlags, []string, error) {
	fs := flag.NewFlagSet("htmlpdf", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	f := &cliFlags{}

	addCommonFlags(fs, &f.common)
	addBrowserFlags(fs, &f.browser)
	addRequestFlags(fs, &f.request)
	addPageFlags(fs, &f.page)
	addLogFlags(fs, &f.log)
	addOutputFlags(fs, &f.output)

	fs.Usage = func() { printUsage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}

	f.changed = fs.Changed
	if f.common.help {
		fs.Usage()
	}
	return f, fs.Args(), nil
}

// printUsage writes the help text.
func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `htmlpdf - render HTML to PDF with a headless browser

Usage:
  htmlpdf [flags] <source>...
  htmlpdf doctor [--json] [--host H] [--port N]

Sources are HTML files, Markdown files (.md), http(s)/file URLs,
or - to read HTML from stdin.

Flags:
%s
Examples:
  htmlpdf report.html
  htmlpdf --trigger variable https://example.com/dashboard -o dash.pdf
  htmlpdf --port 9222 --trigger callback:done -w 4 -o out/ *.html
  cat page.html | htmlpdf - > page.pdf
`, fs.FlagUsages())
}

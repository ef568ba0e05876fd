package main

import (
	"fmt"
	"strings"
	"time"

	htmlpdf "github.com/alnah/go-htmlpdf"
	"github.com/alnah/go-htmlpdf/internal/config"
)

// renderParams groups the request settings shared by every source of a run.
type renderParams struct {
	timeout     *time.Duration
	trigger     htmlpdf.CompletionTrigger
	triggerSpec string
	cookies     []htmlpdf.Cookie
	print       *htmlpdf.PrintOptions
	clearCache  bool
	console     bool
	base64      bool
	output      string
}

// mergeFlags applies explicitly set flags to cfg (CLI wins).
func mergeFlags(f *cliFlags, cfg *config.Config) {
	set := f.changed
	if set == nil {
		set = func(string) bool { return false }
	}

	if set("host") {
		cfg.Browser.Host = f.browser.host
	}
	if set("port") {
		cfg.Browser.Port = f.browser.port
	}
	if set("browser-bin") {
		cfg.Browser.Bin = f.browser.bin
	}
	if set("no-sandbox") {
		cfg.Browser.NoSandbox = f.browser.noSandbox
	}
	if set("headful") {
		cfg.Browser.Headful = f.browser.headful
	}

	if set("timeout") {
		cfg.Request.Timeout = f.request.timeout
	}
	if set("trigger") {
		cfg.Request.Trigger = f.request.trigger
	}
	if set("trigger-timeout") {
		cfg.Request.TriggerTimeout = f.request.triggerTimeout
	}
	if set("clear-cache") {
		cfg.Request.ClearCache = f.request.clearCache
	}

	if set("page-size") {
		cfg.Page.Size = f.page.size
	}
	if set("landscape") {
		cfg.Page.Landscape = f.page.landscape
	}
	if set("header-footer") {
		cfg.Page.HeaderFooter = f.page.headerFooter
	}
	if set("background") {
		cfg.Page.Background = f.page.background
	}
	if set("scale") {
		cfg.Page.Scale = f.page.scale
	}
	if set("margin") {
		cfg.Page.Margin = f.page.margin
	}
	if set("page-ranges") {
		cfg.Page.PageRanges = f.page.pageRanges
	}

	if set("workers") {
		cfg.Workers = f.output.workers
	}

	if set("log-level") {
		cfg.Log.Level = f.log.level
	}
	if set("log-format") {
		cfg.Log.Format = f.log.format
	}
	if set("log-file") {
		cfg.Log.File = f.log.file
	}
	if f.common.verbose {
		cfg.Log.Level = "debug"
	}
}

// buildParams turns the merged config into request settings.
func buildParams(cfg *config.Config, f *cliFlags) (*renderParams, error) {
	p := &renderParams{
		triggerSpec: cfg.Request.Trigger,
		clearCache:  cfg.Request.ClearCache,
		console:     f.output.console,
		base64:      f.output.base64,
		output:      f.output.path,
	}

	timeout, ok, err := cfg.Request.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	if ok {
		p.timeout = htmlpdf.Duration(timeout)
	}

	triggerTimeout, err := cfg.Request.TriggerTimeoutDuration()
	if err != nil {
		return nil, err
	}
	if p.trigger, err = parseTrigger(cfg.Request.Trigger, triggerTimeout); err != nil {
		return nil, err
	}

	for _, c := range cfg.Cookies {
		cookie, err := toCookie(c)
		if err != nil {
			return nil, err
		}
		p.cookies = append(p.cookies, cookie)
	}
	for _, raw := range f.request.cookies {
		cookie, err := parseCookie(raw)
		if err != nil {
			return nil, err
		}
		p.cookies = append(p.cookies, cookie)
	}

	p.print = buildPrintOptions(cfg.Page)
	if err := p.print.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// parseTrigger parses a trigger spec:
//
//	timer:300ms | event:name[@selector] | callback[:name] | variable[:name] | element:selector
//
// An empty spec means capture at the load event.
func parseTrigger(spec string, timeout time.Duration) (htmlpdf.CompletionTrigger, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	kind, arg, _ := strings.Cut(spec, ":")
	var trigger htmlpdf.CompletionTrigger
	switch strings.ToLower(kind) {
	case "timer":
		if arg == "" {
			return nil, fmt.Errorf("%w: timer needs a duration, e.g. timer:300ms", htmlpdf.ErrInvalidTrigger)
		}
		d, err := time.ParseDuration(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", htmlpdf.ErrInvalidTrigger, err)
		}
		trigger = htmlpdf.Timer(d)
	case "event":
		name, selector, _ := strings.Cut(arg, "@")
		trigger = htmlpdf.Event(name, selector, timeout)
	case "callback":
		trigger = htmlpdf.Callback(arg, timeout)
	case "variable":
		trigger = htmlpdf.Variable(arg, timeout)
	case "element":
		trigger = htmlpdf.Element(arg, timeout)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", htmlpdf.ErrInvalidTrigger, kind)
	}

	if err := trigger.Validate(); err != nil {
		return nil, err
	}
	return trigger, nil
}

// parseCookie parses "name=value@domain". The domain may also be a URL.
func parseCookie(s string) (htmlpdf.Cookie, error) {
	name, rest, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return htmlpdf.Cookie{}, fmt.Errorf("%w: %q, want name=value@domain", htmlpdf.ErrInvalidCookie, s)
	}

	value, domain := rest, ""
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		value, domain = rest[:i], rest[i+1:]
	}

	c := htmlpdf.Cookie{Name: name, Value: value}
	if strings.Contains(domain, "://") {
		c.URL = domain
	} else {
		c.Domain = domain
	}
	return c, c.Validate()
}

// toCookie converts a cookie from the config file.
func toCookie(c config.CookieConfig) (htmlpdf.Cookie, error) {
	cookie := htmlpdf.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		URL:      c.URL,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
		SameSite: c.SameSite,
	}
	return cookie, cookie.Validate()
}

// buildPrintOptions maps page config onto print options.
func buildPrintOptions(pc config.PageConfig) *htmlpdf.PrintOptions {
	return &htmlpdf.PrintOptions{
		Landscape:           pc.Landscape,
		DisplayHeaderFooter: pc.HeaderFooter,
		PrintBackground:     pc.Background,
		PreferCSSPageSize:   pc.PreferCSSPageSize,
		Scale:               pc.Scale,
		PaperSize:           pc.Size,
		Margins:             htmlpdf.Margins{Top: pc.Margin, Right: pc.Margin, Bottom: pc.Margin, Left: pc.Margin},
		PageRanges:          pc.PageRanges,
		HeaderTemplate:      pc.HeaderTemplate,
		FooterTemplate:      pc.FooterTemplate,
	}
}

// newRequest builds the request for one resolved source.
func (p *renderParams) newRequest(source string) htmlpdf.Request {
	return htmlpdf.Request{
		Source:     source,
		Cookies:    p.cookies,
		Print:      p.print,
		Trigger:    p.trigger,
		Timeout:    p.timeout,
		ClearCache: p.clearCache,
	}
}

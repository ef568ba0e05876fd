package htmlpdf

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

// Compile-time interface checks
var (
	_ connection        = (*rodConnection)(nil)
	_ cdp.WebSocketable = (*liveSocket)(nil)
	_ target            = (*rodTarget)(nil)
)

// closeTimeout bounds detach calls, which run after the request context is gone.
const closeTimeout = 5 * time.Second

// dialer opens a protocol connection to a debugging endpoint.
type dialer func(ctx context.Context, controlURL string) (connection, error)

// rodConnection is one websocket connection to a browser, shared by every
// session of a Generator. Closing it leaves the browser process running.
type rodConnection struct {
	browser *rod.Browser
	ws      *cdp.WebSocket
	sock    *liveSocket
}

// dialRod connects to controlURL, which is either a websocket URL or a
// host:port debugging endpoint. Every step is bounded by ctx: rod's
// handshake and Connect ignore it, so ctx expiry closes the socket under them.
func dialRod(ctx context.Context, controlURL string) (connection, error) {
	u := controlURL
	if !strings.HasPrefix(u, "ws://") && !strings.HasPrefix(u, "wss://") {
		resolved, err := resolveControlURL(ctx, u)
		if err != nil {
			return nil, err
		}
		u = resolved
	}

	dg := &dialGuard{tls: strings.HasPrefix(u, "wss://")}
	stop := context.AfterFunc(ctx, dg.abort)

	ws := &cdp.WebSocket{Dialer: dg}
	sock := newLiveSocket(ws)
	var browser *rod.Browser
	err := ws.Connect(ctx, u, nil)
	if err == nil {
		browser = rod.New().Client(cdp.New().Start(sock))
		err = browser.Connect()
	}

	if !stop() {
		return nil, ctx.Err()
	}
	if err != nil {
		dg.abort()
		return nil, err
	}
	return &rodConnection{browser: browser, ws: ws, sock: sock}, nil
}

// liveSocket records the first read failure of the websocket. The cdp
// client reads from a single loop that stops on that failure.
type liveSocket struct {
	*cdp.WebSocket
	lost     chan struct{}
	lostOnce sync.Once
}

func newLiveSocket(ws *cdp.WebSocket) *liveSocket {
	return &liveSocket{WebSocket: ws, lost: make(chan struct{})}
}

func (s *liveSocket) Read() ([]byte, error) {
	msg, err := s.WebSocket.Read()
	if err != nil {
		s.lostOnce.Do(func() { close(s.lost) })
	}
	return msg, err
}

func (s *liveSocket) alive() bool {
	select {
	case <-s.lost:
		return false
	default:
		return true
	}
}

// maxVersionBody bounds the /json/version response.
const maxVersionBody = 64 << 10

// resolveControlURL asks the debugging endpoint at address for its
// websocket URL. The host of the answer is replaced by the one dialed, so
// endpoints behind port forwarding or in containers stay reachable.
func resolveControlURL(ctx context.Context, address string) (string, error) {
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	base, err := url.Parse(address)
	if err != nil {
		return "", err
	}
	versionURL := base.JoinPath("/json/version").String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, versionURL, nil)
	if err != nil {
		return "", err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: %s", versionURL, res.Status)
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, maxVersionBody))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", versionURL, err)
	}

	wsURL, ok := gson.New(body).Gets("webSocketDebuggerUrl")
	if !ok || wsURL.Str() == "" {
		return "", fmt.Errorf("%s: no webSocketDebuggerUrl in response", versionURL)
	}
	parsed, err := url.Parse(wsURL.Str())
	if err != nil {
		return "", fmt.Errorf("parsing websocket URL: %w", err)
	}
	parsed.Host = base.Host
	return parsed.String(), nil
}

// dialGuard is the websocket's dialer. abort closes the connection it
// dialed, failing any read or write still pending on it.
type dialGuard struct {
	tls bool

	mu      sync.Mutex
	conn    net.Conn
	aborted bool
}

func (d *dialGuard) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	var (
		conn net.Conn
		err  error
	)
	if d.tls {
		conn, err = (&tls.Dialer{}).DialContext(ctx, network, address)
	} else {
		conn, err = (&net.Dialer{}).DialContext(ctx, network, address)
	}
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.aborted {
		_ = conn.Close()
		return nil, net.ErrClosed
	}
	d.conn = conn
	return conn, nil
}

func (d *dialGuard) abort() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.aborted = true
	if d.conn != nil {
		_ = d.conn.Close()
	}
}

// Open creates an incognito browser context with one blank page, so
// cookies, storage and cache never leak between sessions.
func (c *rodConnection) Open(ctx context.Context) (target, error) {
	incognito, err := c.browser.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("creating browser context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = incognito.Context(context.Background()).Close()
		return nil, fmt.Errorf("creating page: %w", err)
	}
	return &rodTarget{incognito: incognito, page: page}, nil
}

// Alive is false once the websocket failed, e.g. after a browser crash.
func (c *rodConnection) Alive() bool {
	return c.sock.alive()
}

// Close drops the websocket connection.
func (c *rodConnection) Close() error {
	return c.ws.Close()
}

// rodTarget is an incognito page driven through go-rod.
type rodTarget struct {
	incognito *rod.Browser
	page      *rod.Page
}

func (t *rodTarget) Evaluate(ctx context.Context, js string, args ...any) (gson.JSON, error) {
	res, err := t.page.Context(ctx).Evaluate(rod.Eval(js, args...).ByPromise())
	if err != nil {
		return gson.JSON{}, err
	}
	return res.Value, nil
}

func (t *rodTarget) EnableDomains(ctx context.Context) error {
	p := t.page.Context(ctx)
	if err := (proto.PageEnable{}).Call(p); err != nil {
		return err
	}
	if err := (proto.RuntimeEnable{}).Call(p); err != nil {
		return err
	}
	return (proto.NetworkEnable{}).Call(p)
}

func (t *rodTarget) SetCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, toCookieParam(c))
	}
	return proto.NetworkSetCookies{Cookies: params}.Call(t.page.Context(ctx))
}

func (t *rodTarget) ClearCache(ctx context.Context) error {
	return (proto.NetworkClearBrowserCache{}).Call(t.page.Context(ctx))
}

func (t *rodTarget) Subscribe(callbacks []any) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	wait := t.page.Context(ctx).EachEvent(callbacks...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		wait()
	}()

	return func() {
		cancel()
		<-done
	}
}

func (t *rodTarget) Navigate(ctx context.Context, url string) error {
	p := t.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return err
	}
	return p.WaitLoad()
}

func (t *rodTarget) PrintToPDF(ctx context.Context, opts *PrintOptions) ([]byte, error) {
	reader, err := t.page.Context(ctx).PDF(buildPDFOptions(opts))
	if err != nil {
		return nil, err
	}

	pdfBuf, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading PDF stream: %w", err)
	}
	return pdfBuf, nil
}

// Close closes the page and disposes of its browser context.
func (t *rodTarget) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	return errors.Join(
		t.page.Context(ctx).Close(),
		t.incognito.Context(ctx).Close(),
	)
}

// buildPDFOptions maps PrintOptions onto proto.PagePrintToPDF.
// Nil options keep the browser defaults, with backgrounds printed.
// Empty header and footer templates leave Chrome's defaults in place.
func buildPDFOptions(opts *PrintOptions) *proto.PagePrintToPDF {
	if opts == nil {
		return &proto.PagePrintToPDF{PrintBackground: true}
	}

	width, height := opts.paper()
	pdfOpts := &proto.PagePrintToPDF{
		Landscape:           opts.Landscape,
		DisplayHeaderFooter: opts.DisplayHeaderFooter,
		PrintBackground:     opts.PrintBackground,
		PreferCSSPageSize:   opts.PreferCSSPageSize,
		Scale:               optionalFloat(opts.Scale),
		PaperWidth:          optionalFloat(width),
		PaperHeight:         optionalFloat(height),
		MarginTop:           optionalFloat(opts.Margins.Top),
		MarginBottom:        optionalFloat(opts.Margins.Bottom),
		MarginLeft:          optionalFloat(opts.Margins.Left),
		MarginRight:         optionalFloat(opts.Margins.Right),
		PageRanges:          opts.PageRanges,
		HeaderTemplate:      opts.HeaderTemplate,
		FooterTemplate:      opts.FooterTemplate,
	}
	return pdfOpts
}

func toCookieParam(c Cookie) *proto.NetworkCookieParam {
	p := &proto.NetworkCookieParam{
		Name:     c.Name,
		Value:    c.Value,
		URL:      c.URL,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
	}
	switch strings.ToLower(c.SameSite) {
	case "strict":
		p.SameSite = proto.NetworkCookieSameSiteStrict
	case "lax":
		p.SameSite = proto.NetworkCookieSameSiteLax
	case "none":
		p.SameSite = proto.NetworkCookieSameSiteNone
	}
	if !c.Expires.IsZero() {
		p.Expires = proto.TimeSinceEpoch(c.Expires.Unix())
	}
	return p
}

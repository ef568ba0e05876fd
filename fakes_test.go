package htmlpdf

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

// minimalPDF is enough for code that only checks the magic bytes.
var minimalPDF = []byte("%PDF-1.4\n%%EOF\n")

// fakePage answers Evaluate with a scripted function.
type fakePage struct {
	mu    sync.Mutex
	calls []evalCall
	eval  func(ctx context.Context, n int, js string, args ...any) (gson.JSON, error)
}

type evalCall struct {
	js   string
	args []any
}

func (p *fakePage) Evaluate(ctx context.Context, js string, args ...any) (gson.JSON, error) {
	p.mu.Lock()
	p.calls = append(p.calls, evalCall{js: js, args: args})
	n := len(p.calls)
	p.mu.Unlock()

	if p.eval == nil {
		return gson.New(true), nil
	}
	return p.eval(ctx, n, js, args...)
}

func (p *fakePage) evalCalls() []evalCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]evalCall(nil), p.calls...)
}

// blockUntilDone simulates a page that never signals.
func blockUntilDone(ctx context.Context, _ int, _ string, _ ...any) (gson.JSON, error) {
	<-ctx.Done()
	return gson.JSON{}, ctx.Err()
}

// fakeTarget records every protocol step in order.
type fakeTarget struct {
	fakePage

	enableErr   error
	cookiesErr  error
	clearErr    error
	navigateErr error
	printErr    error
	closeErr    error
	pdf         []byte

	// onNavigate runs inside Navigate, after the URL is recorded.
	onNavigate func(ctx context.Context, t *fakeTarget) error

	stepsMu    sync.Mutex
	steps      []string
	url        string
	cookies    []Cookie
	printOpts  *PrintOptions
	callbacks  []any
	closeCount atomic.Int32
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{pdf: minimalPDF}
}

func (t *fakeTarget) record(step string) {
	t.stepsMu.Lock()
	t.steps = append(t.steps, step)
	t.stepsMu.Unlock()
}

func (t *fakeTarget) recorded() []string {
	t.stepsMu.Lock()
	defer t.stepsMu.Unlock()
	return append([]string(nil), t.steps...)
}

func (t *fakeTarget) navigatedURL() string {
	t.stepsMu.Lock()
	defer t.stepsMu.Unlock()
	return t.url
}

func (t *fakeTarget) EnableDomains(context.Context) error {
	t.record("enable")
	return t.enableErr
}

func (t *fakeTarget) SetCookies(_ context.Context, cookies []Cookie) error {
	t.record("cookies")
	t.stepsMu.Lock()
	t.cookies = cookies
	t.stepsMu.Unlock()
	return t.cookiesErr
}

func (t *fakeTarget) ClearCache(context.Context) error {
	t.record("clear-cache")
	return t.clearErr
}

func (t *fakeTarget) Subscribe(callbacks []any) func() {
	t.record("subscribe")
	t.stepsMu.Lock()
	t.callbacks = callbacks
	t.stepsMu.Unlock()
	return func() { t.record("unsubscribe") }
}

func (t *fakeTarget) Navigate(ctx context.Context, url string) error {
	t.record("navigate")
	t.stepsMu.Lock()
	t.url = url
	t.stepsMu.Unlock()
	if t.onNavigate != nil {
		if err := t.onNavigate(ctx, t); err != nil {
			return err
		}
	}
	return t.navigateErr
}

func (t *fakeTarget) PrintToPDF(_ context.Context, opts *PrintOptions) ([]byte, error) {
	t.record("print")
	t.stepsMu.Lock()
	t.printOpts = opts
	t.stepsMu.Unlock()
	if t.printErr != nil {
		return nil, t.printErr
	}
	return t.pdf, nil
}

func (t *fakeTarget) Close() error {
	t.record("close")
	t.closeCount.Add(1)
	return t.closeErr
}

// emitConsole delivers ev to every subscribed console callback.
func (t *fakeTarget) emitConsole(ev *proto.RuntimeConsoleAPICalled) {
	t.stepsMu.Lock()
	cbs := t.callbacks
	t.stepsMu.Unlock()
	for _, cb := range cbs {
		if fn, ok := cb.(func(*proto.RuntimeConsoleAPICalled)); ok {
			fn(ev)
		}
	}
}

// emitException delivers ev to every subscribed exception callback.
func (t *fakeTarget) emitException(ev *proto.RuntimeExceptionThrown) {
	t.stepsMu.Lock()
	cbs := t.callbacks
	t.stepsMu.Unlock()
	for _, cb := range cbs {
		if fn, ok := cb.(func(*proto.RuntimeExceptionThrown)); ok {
			fn(ev)
		}
	}
}

var errFakeOpen = errors.New("target creation refused")

// fakeConnection hands out targets built by newTarget.
type fakeConnection struct {
	newTarget func() *fakeTarget
	openErr   error

	mu      sync.Mutex
	targets []*fakeTarget
	closed  atomic.Int32
	lost    atomic.Bool
}

func newFakeConnection() *fakeConnection {
	return &fakeConnection{newTarget: newFakeTarget}
}

func (c *fakeConnection) Open(ctx context.Context) (target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.openErr != nil {
		return nil, c.openErr
	}
	t := c.newTarget()
	c.mu.Lock()
	c.targets = append(c.targets, t)
	c.mu.Unlock()
	return t, nil
}

func (c *fakeConnection) Alive() bool { return !c.lost.Load() }

func (c *fakeConnection) Close() error {
	c.closed.Add(1)
	return nil
}

func (c *fakeConnection) opened() []*fakeTarget {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeTarget(nil), c.targets...)
}

// fakeLauncher returns processes without starting anything.
type fakeLauncher struct {
	err      error
	delay    time.Duration // honors ctx
	launches atomic.Int32
	kills    atomic.Int32
	lastCfg  atomic.Pointer[LaunchConfig]
}

func (l *fakeLauncher) Launch(ctx context.Context, cfg *LaunchConfig) (*Process, error) {
	l.launches.Add(1)
	l.lastCfg.Store(cfg)
	if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.err != nil {
		return nil, l.err
	}
	return NewProcess("ws://127.0.0.1:9222/devtools/browser/fake", func() { l.kills.Add(1) })
}

// fakeDialer records dialed URLs and returns conn, or a fresh connection
// from next when set.
type fakeDialer struct {
	conn connection
	next func() connection
	err  error

	mu   sync.Mutex
	urls []string
}

func (d *fakeDialer) dial(_ context.Context, controlURL string) (connection, error) {
	d.mu.Lock()
	d.urls = append(d.urls, controlURL)
	d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	if d.next != nil {
		return d.next(), nil
	}
	return d.conn, nil
}

func (d *fakeDialer) dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

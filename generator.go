package htmlpdf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// attachTimeout bounds dialing a browser when no request is waiting on it.
const attachTimeout = 30 * time.Second

// ErrGeneratorClosed is returned by Generate after Close.
var ErrGeneratorClosed = errors.New("generator is closed")

// Generator renders HTML to PDF against one browser: an existing debugging
// endpoint, or a browser it launches lazily on first use. It is safe for
// concurrent use; every Generate call runs in its own isolated target.
type Generator struct {
	cfg      generatorConfig
	launcher Launcher
	dial     dialer
	logger   *zap.Logger

	// ctx scopes shared connection setup, which outlives the request that
	// started it. Close cancels it.
	ctx     context.Context
	cancel  context.CancelFunc
	connect singleflight.Group

	mu     sync.Mutex
	conn   connection
	proc   *Process
	closed bool
}

// generatorConfig holds internal configuration for Generator.
type generatorConfig struct {
	endpoint *Endpoint
	launch   *LaunchConfig
	timeout  *time.Duration
}

// Option configures a Generator.
type Option func(*Generator)

// WithEndpoint attaches to a running browser instead of launching one.
func WithEndpoint(host string, port int) Option {
	return func(g *Generator) {
		g.cfg.endpoint = &Endpoint{Host: host, Port: port}
	}
}

// WithLaunchConfig configures the browser launched when no endpoint is set.
func WithLaunchConfig(cfg LaunchConfig) Option {
	return func(g *Generator) {
		g.cfg.launch = &cfg
	}
}

// WithLauncher replaces the process supervisor used to start browsers.
func WithLauncher(l Launcher) Option {
	return func(g *Generator) {
		g.launcher = l
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithDefaultTimeout bounds requests that carry no Timeout of their own.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithDefaultTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("htmlpdf: WithDefaultTimeout duration must be positive")
	}
	return func(g *Generator) {
		g.cfg.timeout = &d
	}
}

// withDialer replaces the protocol transport (tests).
func withDialer(d dialer) Option {
	return func(g *Generator) {
		g.dial = d
	}
}

// NewGenerator creates a Generator. No browser is contacted until the
// first Generate call.
func NewGenerator(opts ...Option) *Generator {
	ctx, cancel := context.WithCancel(context.Background())
	g := &Generator{
		launcher: RodLauncher{},
		dial:     dialRod,
		logger:   zap.NewNop(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate renders req to PDF. req.Endpoint and req.Launch are ignored:
// the Generator's own browser is used.
//
// The whole cycle runs under req.Timeout (or the default timeout). When it
// expires the session is torn down and ErrOperationTimeout is returned.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout == nil {
		timeout = g.cfg.timeout
	}

	logger := g.logger.With(zap.String("request_id", uuid.NewString()))
	sess := newSession(&req, logger)
	start := time.Now()

	res, err := guard(ctx, timeout, sess.teardown, func(ctx context.Context) (*Result, error) {
		conn, err := g.connection(ctx)
		if err != nil {
			return nil, err
		}
		res, err := sess.run(ctx, conn)
		if err != nil && !conn.Alive() {
			g.discard(conn)
		}
		return res, err
	})
	if err != nil {
		logger.Debug("generation failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	logger.Debug("generation finished", zap.Int("bytes", res.Len()), zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// connection returns the shared browser connection, attaching or launching
// on first use. Concurrent callers share one setup, and each stops waiting
// when its own ctx ends.
func (g *Generator) connection(ctx context.Context) (connection, error) {
	g.mu.Lock()
	closed, conn := g.closed, g.conn
	g.mu.Unlock()

	if closed {
		return nil, ErrGeneratorClosed
	}
	if conn != nil {
		return conn, nil
	}

	ch := g.connect.DoChan("connect", func() (any, error) {
		return g.establish()
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(connection), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// establish attaches to the endpoint or launches a browser and stores the
// connection. It runs under the Generator's context, not a request's.
func (g *Generator) establish() (connection, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, ErrGeneratorClosed
	}
	if g.conn != nil {
		conn := g.conn
		g.mu.Unlock()
		return conn, nil
	}
	g.mu.Unlock()

	conn, proc, err := g.open(g.ctx)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		_ = conn.Close()
		if proc != nil {
			proc.Kill()
		}
		return nil, ErrGeneratorClosed
	}
	g.conn, g.proc = conn, proc
	return conn, nil
}

// open dials the configured endpoint, or launches a browser and dials it.
// proc is nil when attaching.
func (g *Generator) open(ctx context.Context) (connection, *Process, error) {
	if g.cfg.endpoint != nil {
		if err := g.cfg.endpoint.Validate(); err != nil {
			return nil, nil, err
		}
		conn, err := g.dialWithin(ctx, g.cfg.endpoint.Address())
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrAttach, g.cfg.endpoint.Address(), err)
		}
		return conn, nil, nil
	}

	proc, err := g.launcher.Launch(ctx, g.cfg.launch)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	conn, err := g.dialWithin(ctx, proc.ControlURL)
	if err != nil {
		proc.Kill()
		return nil, nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	g.logger.Debug("browser launched", zap.String("endpoint", proc.Endpoint.Address()))
	return conn, proc, nil
}

func (g *Generator) dialWithin(ctx context.Context, controlURL string) (connection, error) {
	ctx, cancel := context.WithTimeout(ctx, attachTimeout)
	defer cancel()
	return g.dial(ctx, controlURL)
}

// discard drops conn after the browser connection was lost, killing a
// launched browser, so the next request starts over.
func (g *Generator) discard(conn connection) {
	g.mu.Lock()
	if g.conn != conn {
		g.mu.Unlock()
		return
	}
	proc := g.proc
	g.conn, g.proc = nil, nil
	g.mu.Unlock()

	g.logger.Warn("browser connection lost, reconnecting on next request")
	if err := conn.Close(); err != nil {
		g.logger.Debug("closing lost connection", zap.Error(err))
	}
	if proc != nil {
		proc.Kill()
	}
}

// Close drops the browser connection and kills a launched browser.
// Attached browsers keep running.
func (g *Generator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true
	g.cancel()

	var err error
	if g.conn != nil {
		err = g.conn.Close()
		g.conn = nil
	}
	if g.proc != nil {
		g.proc.Kill()
		g.proc = nil
	}
	return err
}

// Create renders one request. It attaches to req.Endpoint when set and
// otherwise launches a browser with req.Launch, killing it afterwards.
func Create(ctx context.Context, req Request, opts ...Option) (*Result, error) {
	var base []Option
	if req.Endpoint != nil {
		base = append(base, WithEndpoint(req.Endpoint.Host, req.Endpoint.Port))
	} else if req.Launch != nil {
		base = append(base, WithLaunchConfig(*req.Launch))
	}

	g := NewGenerator(append(base, opts...)...)
	defer func() {
		if err := g.Close(); err != nil {
			g.logger.Debug("closing generator", zap.Error(err))
		}
	}()
	return g.Generate(ctx, req)
}

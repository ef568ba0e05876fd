package htmlpdf

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// connection is a protocol connection to one browser process.
type connection interface {
	// Open creates a fresh, isolated target (own browser context and page).
	Open(ctx context.Context) (target, error)
	// Alive is false once the connection to the browser is lost.
	Alive() bool
	Close() error
}

// target is the protocol target owned by a single session.
type target interface {
	Page
	EnableDomains(ctx context.Context) error
	SetCookies(ctx context.Context, cookies []Cookie) error
	ClearCache(ctx context.Context) error
	// Subscribe registers protocol event callbacks until stop is called.
	Subscribe(callbacks []any) (stop func())
	// Navigate loads url and returns once the page's load event fired.
	Navigate(ctx context.Context, url string) error
	PrintToPDF(ctx context.Context, opts *PrintOptions) ([]byte, error)
	Close() error
}

// sessionState is a step of the generation state machine.
type sessionState int

const (
	stateIdle sessionState = iota
	stateAttached
	stateConfigured
	stateNavigating
	stateAwaitingTrigger
	stateCapturing
	stateDone
	stateFailed
)

var stateNames = [...]string{
	stateIdle:            "idle",
	stateAttached:        "attached",
	stateConfigured:      "configured",
	stateNavigating:      "navigating",
	stateAwaitingTrigger: "awaiting_trigger",
	stateCapturing:       "capturing",
	stateDone:            "done",
	stateFailed:          "failed",
}

func (s sessionState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// session runs one request from attach to capture. It is never reused.
type session struct {
	req    *Request
	proxy  *eventProxy
	logger *zap.Logger

	mu       sync.Mutex
	state    sessionState
	target   target
	stop     func()
	cleanups []func()
	closed   bool
}

func newSession(req *Request, logger *zap.Logger) *session {
	return &session{
		req:    req,
		proxy:  newEventProxy(req, logger),
		logger: logger,
	}
}

// run sequences attach, configure, navigate, trigger and capture.
// The session is torn down before run returns, whatever the outcome.
func (s *session) run(ctx context.Context, conn connection) (_ *Result, err error) {
	defer func() {
		if err != nil {
			s.transition(stateFailed, zap.Error(err))
		}
		s.teardown()
	}()

	t, err := conn.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAttach, err)
	}
	if err := s.adopt(t); err != nil {
		return nil, err
	}
	s.transition(stateAttached)

	if err := s.configure(ctx, t); err != nil {
		return nil, err
	}
	s.transition(stateConfigured)

	url, cleanup, err := resolveSource(s.req.Source)
	if err != nil {
		return nil, err
	}
	s.onTeardown(cleanup)

	s.transition(stateNavigating, zap.String("url", redactURL(url)))
	if err := t.Navigate(ctx, url); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrNavigation, err)
	}

	s.transition(stateAwaitingTrigger, zap.String("trigger", triggerName(s.req.Trigger)))
	if s.req.Trigger != nil {
		if err := s.req.Trigger.Wait(ctx, t); err != nil {
			return nil, err
		}
	}

	s.transition(stateCapturing)
	pdf, err := t.PrintToPDF(ctx, s.req.Print)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrCapture, err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: browser returned an empty document", ErrCapture)
	}

	s.transition(stateDone, zap.Int("bytes", len(pdf)))
	return newResult(pdf), nil
}

// configure applies everything that must precede navigation.
func (s *session) configure(ctx context.Context, t target) error {
	if err := t.EnableDomains(ctx); err != nil {
		return fmt.Errorf("%w: enabling domains: %v", ErrAttach, err)
	}
	if len(s.req.Cookies) > 0 {
		if err := t.SetCookies(ctx, s.req.Cookies); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCookie, err)
		}
	}
	if s.req.ClearCache {
		if err := t.ClearCache(ctx); err != nil {
			return fmt.Errorf("%w: clearing cache: %v", ErrAttach, err)
		}
	}
	if cbs := s.proxy.callbacks(); len(cbs) > 0 {
		stop := t.Subscribe(cbs)
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			stop()
			return errSessionClosed
		}
		s.stop = stop
		s.mu.Unlock()
	}
	return nil
}

// adopt records t as the session's target. A session already torn down by
// its guard closes t at once.
func (s *session) adopt(t target) error {
	s.mu.Lock()
	if !s.closed {
		s.target = t
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := t.Close(); err != nil {
		s.logger.Debug("closing late target", zap.Error(err))
	}
	return errSessionClosed
}

// onTeardown registers fn to run when the session is torn down.
func (s *session) onTeardown(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fn()
		return
	}
	s.cleanups = append(s.cleanups, fn)
	s.mu.Unlock()
}

// teardown unsubscribes events and detaches the target. It is idempotent
// and safe to call concurrently with run. Teardown errors are logged only.
func (s *session) teardown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	t, stop, cleanups := s.target, s.stop, s.cleanups
	s.target, s.stop, s.cleanups = nil, nil, nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if t != nil {
		if err := t.Close(); err != nil {
			s.logger.Debug("detaching target", zap.Error(err))
		}
	}
	for _, fn := range cleanups {
		fn()
	}
	s.logger.Debug("session detached")
}

func (s *session) transition(next sessionState, fields ...zap.Field) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	s.logger.Debug("session state",
		append([]zap.Field{zap.Stringer("from", prev), zap.Stringer("to", next)}, fields...)...)
}

// errSessionClosed is returned by run when its guard already gave up on the
// session. The guard reports its own error instead.
var errSessionClosed = errors.New("session closed")

package htmlpdf

import (
	"math"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// eventProxy relays page console and exception notifications to the
// caller's handlers for the lifetime of one session.
type eventProxy struct {
	onConsole   func(ConsoleEvent)
	onException func(ExceptionEvent)
	logger      *zap.Logger
}

func newEventProxy(req *Request, logger *zap.Logger) *eventProxy {
	return &eventProxy{
		onConsole:   req.ConsoleHandler,
		onException: req.ExceptionHandler,
		logger:      logger,
	}
}

// callbacks returns the protocol event callbacks to subscribe, one per
// registered handler.
func (p *eventProxy) callbacks() []any {
	var cbs []any
	if p.onConsole != nil {
		cbs = append(cbs, p.console)
	}
	if p.onException != nil {
		cbs = append(cbs, p.exception)
	}
	return cbs
}

func (p *eventProxy) console(ev *proto.RuntimeConsoleAPICalled) {
	if p.onConsole == nil {
		return
	}
	p.deliver("console", func() { p.onConsole(toConsoleEvent(ev)) })
}

func (p *eventProxy) exception(ev *proto.RuntimeExceptionThrown) {
	if p.onException == nil {
		return
	}
	p.deliver("exception", func() { p.onException(toExceptionEvent(ev)) })
}

// deliver runs a caller handler. A panicking handler is logged and the
// session continues.
func (p *eventProxy) deliver(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("event handler panicked",
				zap.String("event", kind),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}

func toConsoleEvent(ev *proto.RuntimeConsoleAPICalled) ConsoleEvent {
	args := make([]ConsoleArg, 0, len(ev.Args))
	for _, a := range ev.Args {
		if a == nil {
			continue
		}
		args = append(args, ConsoleArg{
			Type:        string(a.Type),
			Subtype:     string(a.Subtype),
			Value:       a.Value,
			Description: a.Description,
		})
	}
	return ConsoleEvent{
		Type:      string(ev.Type),
		Timestamp: epochMillis(float64(ev.Timestamp)),
		Args:      args,
	}
}

func toExceptionEvent(ev *proto.RuntimeExceptionThrown) ExceptionEvent {
	out := ExceptionEvent{Timestamp: epochMillis(float64(ev.Timestamp))}
	d := ev.ExceptionDetails
	if d == nil {
		return out
	}
	out.Text = d.Text
	out.URL = d.URL
	out.Line = d.LineNumber
	out.Column = d.ColumnNumber
	if d.Exception != nil {
		out.Description = d.Exception.Description
	}
	return out
}

// epochMillis converts protocol milliseconds since the epoch to time.Time.
func epochMillis(ms float64) time.Time {
	whole := math.Floor(ms)
	frac := time.Duration((ms - whole) * float64(time.Millisecond))
	return time.UnixMilli(int64(whole)).Add(frac)
}

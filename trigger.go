package htmlpdf

import (
	"context"
	"fmt"
	"time"

	"github.com/ysmood/gson"
)

// Trigger defaults.
const (
	// DefaultTriggerTimeout applies when a trigger is built with a zero timeout.
	DefaultTriggerTimeout = 5 * time.Second

	// DefaultCallbackName is the global function installed by Callback("").
	DefaultCallbackName = "htmlPdfCb"

	// DefaultVariableName is the global variable polled by Variable("").
	DefaultVariableName = "htmlPdfDone"

	// pollInterval paces the Variable and Element triggers.
	pollInterval = 100 * time.Millisecond
)

// Page is the live page a CompletionTrigger is evaluated against.
type Page interface {
	// Evaluate calls the JavaScript function expression js with args in the
	// page's main world. Promises are awaited. The result is returned by value.
	Evaluate(ctx context.Context, js string, args ...any) (gson.JSON, error)
}

// CompletionTrigger decides when a loaded page is ready to be captured.
// Triggers only describe a predicate and are safe to reuse across requests.
type CompletionTrigger interface {
	// Wait blocks until the page is ready. Triggers with their own deadline
	// return ErrTriggerTimeout when it expires first.
	Wait(ctx context.Context, p Page) error
	Validate() error
}

// TriggerFunc adapts a function to a user-defined CompletionTrigger.
type TriggerFunc func(ctx context.Context, p Page) error

// Wait calls f.
func (f TriggerFunc) Wait(ctx context.Context, p Page) error { return f(ctx, p) }

// Validate reports a nil function.
func (f TriggerFunc) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil trigger func", ErrInvalidTrigger)
	}
	return nil
}

// Timer waits a fixed duration after the load event.
func Timer(d time.Duration) CompletionTrigger {
	return timerTrigger{delay: d}
}

// Event waits until the event named name is dispatched on the element
// matched by selector, or on document.body when selector is empty.
func Event(name, selector string, timeout time.Duration) CompletionTrigger {
	return eventTrigger{name: name, selector: selector, timeout: orDefault(timeout)}
}

// Callback installs a global function and waits until page script calls it.
// An empty name installs DefaultCallbackName.
func Callback(name string, timeout time.Duration) CompletionTrigger {
	if name == "" {
		name = DefaultCallbackName
	}
	return callbackTrigger{name: name, timeout: orDefault(timeout)}
}

// Variable polls a global variable until it holds a truthy value.
// An empty name polls DefaultVariableName.
func Variable(name string, timeout time.Duration) CompletionTrigger {
	if name == "" {
		name = DefaultVariableName
	}
	return variableTrigger{name: name, timeout: orDefault(timeout)}
}

// Element polls until at least one element matches selector.
func Element(selector string, timeout time.Duration) CompletionTrigger {
	return elementTrigger{selector: selector, timeout: orDefault(timeout)}
}

func orDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultTriggerTimeout
	}
	return timeout
}

type timerTrigger struct {
	delay time.Duration
}

func (t timerTrigger) Wait(ctx context.Context, _ Page) error {
	timer := time.NewTimer(t.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t timerTrigger) Validate() error {
	if t.delay < 0 {
		return fmt.Errorf("%w: negative timer %s", ErrInvalidTrigger, t.delay)
	}
	return nil
}

func (t timerTrigger) String() string { return fmt.Sprintf("timer(%s)", t.delay) }

// listenJS resolves once name fires on the target. A missing target never resolves.
const listenJS = `(name, selector) => new Promise((resolve) => {
	const target = selector ? document.querySelector(selector) : document.body;
	if (!target) return;
	target.addEventListener(name, () => resolve(true), { once: true });
})`

type eventTrigger struct {
	name     string
	selector string
	timeout  time.Duration
}

func (t eventTrigger) Wait(ctx context.Context, p Page) error {
	return within(ctx, t.timeout, func(ctx context.Context) error {
		_, err := p.Evaluate(ctx, listenJS, t.name, t.selector)
		return err
	})
}

func (t eventTrigger) Validate() error {
	if t.name == "" {
		return fmt.Errorf("%w: event name is required", ErrInvalidTrigger)
	}
	return nil
}

func (t eventTrigger) String() string {
	if t.selector == "" {
		return fmt.Sprintf("event(%s)", t.name)
	}
	return fmt.Sprintf("event(%s@%s)", t.name, t.selector)
}

// hookJS installs window[name] and resolves when the page calls it.
const hookJS = `(name) => new Promise((resolve) => {
	window[name] = () => resolve(true);
})`

type callbackTrigger struct {
	name    string
	timeout time.Duration
}

func (t callbackTrigger) Wait(ctx context.Context, p Page) error {
	return within(ctx, t.timeout, func(ctx context.Context) error {
		_, err := p.Evaluate(ctx, hookJS, t.name)
		return err
	})
}

func (t callbackTrigger) Validate() error { return nil }

func (t callbackTrigger) String() string { return fmt.Sprintf("callback(%s)", t.name) }

const truthyJS = `(name) => !!window[name]`

type variableTrigger struct {
	name    string
	timeout time.Duration
}

func (t variableTrigger) Wait(ctx context.Context, p Page) error {
	return within(ctx, t.timeout, func(ctx context.Context) error {
		return poll(ctx, p, truthyJS, t.name)
	})
}

func (t variableTrigger) Validate() error { return nil }

func (t variableTrigger) String() string { return fmt.Sprintf("variable(%s)", t.name) }

const matchJS = `(selector) => document.querySelector(selector) !== null`

type elementTrigger struct {
	selector string
	timeout  time.Duration
}

func (t elementTrigger) Wait(ctx context.Context, p Page) error {
	return within(ctx, t.timeout, func(ctx context.Context) error {
		return poll(ctx, p, matchJS, t.selector)
	})
}

func (t elementTrigger) Validate() error {
	if t.selector == "" {
		return fmt.Errorf("%w: element selector is required", ErrInvalidTrigger)
	}
	return nil
}

func (t elementTrigger) String() string { return fmt.Sprintf("element(%s)", t.selector) }

// within runs wait under the trigger's own deadline. Expiry of that deadline
// maps to ErrTriggerTimeout; expiry of the parent context passes through.
func within(ctx context.Context, timeout time.Duration, wait func(context.Context) error) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := wait(tctx)
	if err != nil && ctx.Err() == nil && tctx.Err() != nil {
		return ErrTriggerTimeout
	}
	return err
}

// poll evaluates js every pollInterval until it returns true.
func poll(ctx context.Context, p Page, js string, args ...any) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		res, err := p.Evaluate(ctx, js, args...)
		if err != nil {
			return err
		}
		if res.Bool() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// triggerName describes t for logs.
func triggerName(t CompletionTrigger) string {
	if t == nil {
		return "load"
	}
	if s, ok := t.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", t)
}

// Package htmlpdf renders HTML to PDF by driving a Chromium browser over the
// DevTools protocol.
//
// # Quick Start
//
// Render inline markup once, launching a headless browser for the call:
//
//	res, err := htmlpdf.Create(ctx, htmlpdf.Request{
//	    Source:  "<h1>Invoice</h1>",
//	    Timeout: htmlpdf.Duration(30 * time.Second),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = res.WriteFile("invoice.pdf")
//
// A Source is inline markup, a URL (http, https, file, data, about) or the
// path of a local file.
//
// # Reusing a Browser
//
// A Generator keeps one browser for many requests. It either attaches to a
// browser started with --remote-debugging-port or launches one on first use:
//
//	gen := htmlpdf.NewGenerator(
//	    htmlpdf.WithEndpoint("localhost", 9222),
//	    htmlpdf.WithDefaultTimeout(time.Minute),
//	    htmlpdf.WithLogger(logger),
//	)
//	defer gen.Close()
//
// Generate is safe for concurrent use. Every call gets its own incognito
// browser context, so cookies, storage and cache never leak between
// requests. For parallel rendering across several browsers, use
// GeneratorPool.
//
// # Completion Triggers
//
// The load event fires before client-side rendering finishes. A
// CompletionTrigger tells the session when the page is really ready:
//
//	Timer(300 * time.Millisecond)         // fixed delay after load
//	Event("rendered", "#app", 0)          // DOM event on an element
//	Callback("", 0)                       // page calls window.htmlPdfCb()
//	Variable("", 0)                       // page sets window.htmlPdfDone
//	Element("#chart svg", 0)              // selector starts matching
//
// A zero timeout uses DefaultTriggerTimeout. Custom readiness checks
// implement CompletionTrigger, or wrap a function in TriggerFunc.
//
// # Timeouts
//
// Request.Timeout bounds the whole session, from attach to capture. Nil
// means no deadline; zero fails at once. On expiry the session is detached
// and ErrOperationTimeout is returned. A trigger that gives up first returns
// ErrTriggerTimeout. Cancelling ctx tears the session down the same way and
// returns ctx.Err().
//
// # Page Events
//
// ConsoleHandler and ExceptionHandler receive the page's console calls and
// uncaught exceptions, including those raised by inline scripts during load.
// Handlers run on the protocol event goroutine and must not block.
//
// # Errors
//
// Failures wrap sentinel errors, checked with errors.Is: ErrLaunch,
// ErrAttach, ErrNavigation, ErrTriggerTimeout, ErrOperationTimeout,
// ErrCapture and ErrFileOutput.
package htmlpdf

//go:build integration

package htmlpdf

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

// lateContent mutates the page delay ms after the load event: the #state
// text and the document title go from "loading" to "done".
func lateContent(delay int, script string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html><head><title>loading</title></head>
<body><p id="state">loading</p>
<script>
window.addEventListener("load", () => setTimeout(() => {
	document.getElementById("state").textContent = "done";
	document.title = "done";
	%s
}, %d));
</script>
</body></html>`, script, delay)
}

var pdfTitleRE = regexp.MustCompile(`/Title\s*\(([^)]*)\)`)

// pdfTitle returns the document title Chrome recorded in the PDF info
// dictionary, which is the page title at capture time.
func pdfTitle(t *testing.T, res *Result) string {
	t.Helper()

	m := pdfTitleRE.FindSubmatch(res.Bytes())
	if m == nil {
		t.Fatal("PDF has no /Title entry")
	}
	return string(m[1])
}

// assertDone is a trigger step that fails unless the page finished rendering.
func assertDone(ctx context.Context, p Page) error {
	v, err := p.Evaluate(ctx, `() => document.getElementById("state").textContent`)
	if err != nil {
		return err
	}
	if got := v.Str(); got != "done" {
		return fmt.Errorf("captured in state %q", got)
	}
	return nil
}

// then runs trigger and, once it fires, check.
func then(trigger CompletionTrigger, check func(context.Context, Page) error) CompletionTrigger {
	return TriggerFunc(func(ctx context.Context, p Page) error {
		if err := trigger.Wait(ctx, p); err != nil {
			return err
		}
		return check(ctx, p)
	})
}

func TestGenerate_Integration_NoTrigger(t *testing.T) {
	t.Parallel()

	t.Run("static markup", func(t *testing.T) {
		t.Parallel()

		res, err := testGen.Generate(context.Background(), Request{Source: "<h1>Hello, World!</h1>"})
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		assertValidPDF(t, res)
	})

	t.Run("captures at load before late mutation", func(t *testing.T) {
		t.Parallel()

		res, err := testGen.Generate(context.Background(), Request{Source: lateContent(200, "")})
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		assertValidPDF(t, res)
		if got := pdfTitle(t, res); got != "loading" {
			t.Errorf("captured title = %q, want %q (mutation at 200ms must be absent)", got, "loading")
		}
	})
}

func TestGenerate_Integration_LocalFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(path, []byte("<h1>From disk</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := testGen.Generate(context.Background(), Request{
		Source: path,
		Print:  &PrintOptions{PaperSize: PaperSizeA4, Landscape: true, PrintBackground: true},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	assertValidPDF(t, res)

	out := filepath.Join(t.TempDir(), "page.pdf")
	if err := res.WriteFile(out); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestGenerate_Integration_NoPrematureCapture(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		script  string
		trigger CompletionTrigger
	}{
		{"timer", "", Timer(300 * time.Millisecond)},
		{"event", `document.body.dispatchEvent(new Event("rendered"));`, Event("rendered", "", 10*time.Second)},
		{"event on selector", `document.getElementById("state").dispatchEvent(new Event("rendered"));`, Event("rendered", "#state", 10*time.Second)},
		{"callback", `window.htmlPdfCb();`, Callback("", 10*time.Second)},
		{"named callback", `window.ready();`, Callback("ready", 10*time.Second)},
		{"variable", `window.htmlPdfDone = true;`, Variable("", 10*time.Second)},
		{"element", `document.body.appendChild(Object.assign(document.createElement("div"), {id: "ready"}));`, Element("#ready", 10*time.Second)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := testGen.Generate(context.Background(), Request{
				Source:  lateContent(200, tt.script),
				Trigger: then(tt.trigger, assertDone),
			})
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			assertValidPDF(t, res)
			if got := pdfTitle(t, res); got != "done" {
				t.Errorf("captured title = %q, want %q", got, "done")
			}
		})
	}
}

func TestGenerate_Integration_TriggerTimeout(t *testing.T) {
	t.Parallel()

	fireOnBody := `document.body.dispatchEvent(new Event("myEvent"));`

	tests := []struct {
		name    string
		source  string
		trigger CompletionTrigger
	}{
		{"event never fires", "<p>never signals</p>", Event("never", "", 500*time.Millisecond)},
		{"deadline before event", lateContent(200, fireOnBody), Event("myEvent", "", time.Millisecond)},
		{"event outside selector", lateContent(200, fireOnBody), Event("myEvent", "#wrongSelector", 300*time.Millisecond)},
		{"callback never called", "<p>x</p>", Callback("", 300*time.Millisecond)},
		{"variable never set", "<p>x</p>", Variable("", 300*time.Millisecond)},
		{"element never inserted", "<p>x</p>", Element("div#inserted", 300*time.Millisecond)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			start := time.Now()
			_, err := testGen.Generate(context.Background(), Request{Source: tt.source, Trigger: tt.trigger})
			if !errors.Is(err, ErrTriggerTimeout) {
				t.Fatalf("Generate() error = %v, want ErrTriggerTimeout", err)
			}
			if errors.Is(err, ErrOperationTimeout) {
				t.Error("trigger timeout reported as operation timeout")
			}
			if elapsed := time.Since(start); elapsed > 10*time.Second {
				t.Errorf("trigger timeout took %v", elapsed)
			}
		})
	}
}

func TestGenerate_Integration_ElementInserted(t *testing.T) {
	t.Parallel()

	insert := `document.body.appendChild(Object.assign(document.createElement("div"), {id: "inserted", textContent: "inserted"}));`
	res, err := testGen.Generate(context.Background(), Request{
		Source: lateContent(200, insert),
		Trigger: then(Element("div#inserted", 300*time.Millisecond), func(ctx context.Context, p Page) error {
			v, err := p.Evaluate(ctx, `() => document.querySelectorAll("div#inserted").length`)
			if err != nil {
				return err
			}
			if v.Int() != 1 {
				return fmt.Errorf("inserted elements = %d, want 1", v.Int())
			}
			return nil
		}),
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got := pdfTitle(t, res); got != "done" {
		t.Errorf("captured title = %q, want post-insertion state", got)
	}
}

func TestGenerate_Integration_OperationTimeout(t *testing.T) {
	t.Parallel()

	t.Run("zero fails immediately", func(t *testing.T) {
		t.Parallel()

		_, err := testGen.Generate(context.Background(), Request{
			Source:  "<p>x</p>",
			Timeout: Duration(0),
		})
		if !errors.Is(err, ErrOperationTimeout) {
			t.Errorf("Generate() error = %v, want ErrOperationTimeout", err)
		}
	})

	t.Run("expires while waiting", func(t *testing.T) {
		t.Parallel()

		start := time.Now()
		_, err := testGen.Generate(context.Background(), Request{
			Source:  "<p>never signals</p>",
			Trigger: Variable("", time.Minute),
			Timeout: Duration(time.Second),
		})
		if !errors.Is(err, ErrOperationTimeout) {
			t.Fatalf("Generate() error = %v, want ErrOperationTimeout", err)
		}
		if elapsed := time.Since(start); elapsed > 10*time.Second {
			t.Errorf("timeout took %v", elapsed)
		}

		// The browser survives a torn-down session.
		res, err := testGen.Generate(context.Background(), Request{Source: "<p>after</p>"})
		if err != nil {
			t.Fatalf("Generate() after timeout error = %v", err)
		}
		assertValidPDF(t, res)
	})
}

// ownContent renders visible text unique to request i, filled in after load.
func ownContent(i int) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html><head><title>pending</title></head>
<body><h1 id="heading"></h1>
<script>
window.addEventListener("load", () => setTimeout(() => {
	document.getElementById("heading").textContent = "request %[1]d";
	document.title = "request-%[1]d";
	window.htmlPdfDone = true;
}, 50));
</script>
</body></html>`, i)
}

func TestGenerate_Integration_Concurrent(t *testing.T) {
	t.Parallel()

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	results := make([]*Result, n)

	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			want := fmt.Sprintf("request %d", i)
			results[i], errs[i] = testGen.Generate(context.Background(), Request{
				Source: ownContent(i),
				Trigger: then(Variable("", 10*time.Second), func(ctx context.Context, p Page) error {
					v, err := p.Evaluate(ctx, `() => document.getElementById("heading").textContent`)
					if err != nil {
						return err
					}
					if got := v.Str(); got != want {
						return fmt.Errorf("heading = %q, want %q", got, want)
					}
					return nil
				}),
			})
		}()
	}
	wg.Wait()

	for i := range n {
		if errs[i] != nil {
			t.Errorf("request %d: %v", i, errs[i])
			continue
		}
		assertValidPDF(t, results[i])
		if got, want := pdfTitle(t, results[i]), fmt.Sprintf("request-%d", i); got != want {
			t.Errorf("request %d captured %q, want %q", i, got, want)
		}
	}
}

func TestGenerate_Integration_Events(t *testing.T) {
	t.Parallel()

	var (
		mu         sync.Mutex
		console    []ConsoleEvent
		exceptions []ExceptionEvent
	)

	start := time.Now().Truncate(time.Millisecond)
	_, err := testGen.Generate(context.Background(), Request{
		Source: `<script>console.log("hello", 42); throw new Error("boom");</script>`,
		ConsoleHandler: func(ev ConsoleEvent) {
			mu.Lock()
			console = append(console, ev)
			mu.Unlock()
		},
		ExceptionHandler: func(ev ExceptionEvent) {
			mu.Lock()
			exceptions = append(exceptions, ev)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if len(console) != 1 {
		t.Fatalf("console events = %d, want 1", len(console))
	}
	ev := console[0]
	if ev.Type != "log" || len(ev.Args) != 2 || ev.Args[0].Value.Str() != "hello" || ev.Args[1].Value.Int() != 42 {
		t.Errorf("console event = %+v", ev)
	}
	if ev.Timestamp.Before(start) {
		t.Errorf("console event timestamp %v precedes request start %v", ev.Timestamp, start)
	}

	if len(exceptions) != 1 {
		t.Fatalf("exception events = %d, want 1", len(exceptions))
	}
	if !strings.Contains(exceptions[0].Description, "boom") {
		t.Errorf("exception = %+v", exceptions[0])
	}
	if ts := exceptions[0].Timestamp; ts.Before(start) {
		t.Errorf("exception timestamp %v precedes request start %v", ts, start)
	}
}

func TestGenerate_Integration_NavigationFailure(t *testing.T) {
	t.Parallel()

	_, err := testGen.Generate(context.Background(), Request{Source: "http://127.0.0.1:1/"})
	if !errors.Is(err, ErrNavigation) {
		t.Errorf("Generate() error = %v, want ErrNavigation", err)
	}
}

func TestGenerate_Integration_CookieIsolation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<p>cookie page</p>")
	}))
	defer srv.Close()

	hasCookie := func(want bool) func(context.Context, Page) error {
		return func(ctx context.Context, p Page) error {
			v, err := p.Evaluate(ctx, `() => document.cookie`)
			if err != nil {
				return err
			}
			if got := strings.Contains(v.Str(), "sid=secret"); got != want {
				return fmt.Errorf("document.cookie = %q, want sid present = %v", v.Str(), want)
			}
			return nil
		}
	}

	_, err := testGen.Generate(context.Background(), Request{
		Source:  srv.URL,
		Cookies: []Cookie{{Name: "sid", Value: "secret", URL: srv.URL}},
		Trigger: TriggerFunc(hasCookie(true)),
	})
	if err != nil {
		t.Fatalf("Generate() with cookie error = %v", err)
	}

	_, err = testGen.Generate(context.Background(), Request{
		Source:     srv.URL,
		ClearCache: true,
		Trigger:    TriggerFunc(hasCookie(false)),
	})
	if err != nil {
		t.Fatalf("Generate() without cookie error = %v", err)
	}
}

func TestCreate_Integration(t *testing.T) {
	t.Parallel()

	res, err := Create(context.Background(), Request{
		Source:  lateContent(100, "window.htmlPdfDone = true;"),
		Trigger: Variable("", 10*time.Second),
		Timeout: Duration(testTimeout),
		Launch:  &LaunchConfig{NoSandbox: os.Getenv("CI") != ""},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	assertValidPDF(t, res)
}

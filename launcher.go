package htmlpdf

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"

	"github.com/alnah/go-htmlpdf/internal/process"
)

// Launcher starts browser processes exposing a debugging endpoint.
type Launcher interface {
	Launch(ctx context.Context, cfg *LaunchConfig) (*Process, error)
}

// Process is a launched browser.
type Process struct {
	Endpoint   Endpoint
	ControlURL string // websocket debugger URL

	killOnce sync.Once
	kill     func()
}

// NewProcess describes a browser reachable at controlURL. kill may be nil.
func NewProcess(controlURL string, kill func()) (*Process, error) {
	u, err := url.Parse(controlURL)
	if err != nil {
		return nil, fmt.Errorf("parsing control URL: %w", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return nil, fmt.Errorf("parsing control URL port %q: %w", u.Port(), err)
	}
	return &Process{
		Endpoint:   Endpoint{Host: u.Hostname(), Port: port},
		ControlURL: controlURL,
		kill:       kill,
	}, nil
}

// Kill terminates the browser. Safe to call more than once.
func (p *Process) Kill() {
	p.killOnce.Do(func() {
		if p.kill != nil {
			p.kill()
		}
	})
}

// RodLauncher launches Chromium through go-rod's launcher.
// Rod downloads a managed Chromium on first run if none is found.
type RodLauncher struct{}

// Launch starts a browser. The launch is not tied to ctx: a browser that
// comes up after ctx expired is killed instead of leaked.
func (RodLauncher) Launch(ctx context.Context, cfg *LaunchConfig) (*Process, error) {
	l := newLauncher(cfg)

	type launched struct {
		url string
		err error
	}
	done := make(chan launched, 1)
	go func() {
		u, err := l.Launch()
		done <- launched{url: u, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return NewProcess(r.url, func() { killLauncher(l) })
	case <-ctx.Done():
		go func() {
			if r := <-done; r.err == nil {
				killLauncher(l)
			}
		}()
		return nil, ctx.Err()
	}
}

// newLauncher configures the launcher from cfg and the environment.
func newLauncher(cfg *LaunchConfig) *launcher.Launcher {
	if cfg == nil {
		cfg = &LaunchConfig{}
	}

	l := launcher.New().Headless(!cfg.Headful)

	// Use pre-installed browser if specified (Docker/containerized environments)
	bin := cfg.Bin
	if bin == "" {
		bin = os.Getenv("ROD_BROWSER_BIN")
	}
	if bin != "" {
		l = l.Bin(bin)
	}

	// NoSandbox required for CI and containerized environments
	if cfg.NoSandbox || os.Getenv("CI") == "true" || os.Getenv("ROD_NO_SANDBOX") == "1" || bin != "" {
		l = l.NoSandbox(true)
	}

	for _, arg := range cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if hasValue {
			l = l.Set(flags.Flag(name), value)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l
}

// killLauncher kills the browser and its children, then removes its
// temporary profile.
func killLauncher(l *launcher.Launcher) {
	pid := l.PID()
	if pid > 0 {
		_ = process.KillTree(pid)
	}
	if process.Alive(pid) || pid <= 0 {
		l.Kill()
	}
	l.Cleanup()
}

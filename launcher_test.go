package htmlpdf

import (
	"testing"

	"github.com/go-rod/rod/lib/launcher/flags"
)

// Compile-time interface check.
var _ Launcher = RodLauncher{}

func TestNewProcess(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		want    Endpoint
		wantErr bool
	}{
		{
			name: "websocket URL",
			url:  "ws://127.0.0.1:39211/devtools/browser/5f1c",
			want: Endpoint{Host: "127.0.0.1", Port: 39211},
		},
		{
			name: "ipv6",
			url:  "ws://[::1]:9222/devtools/browser/x",
			want: Endpoint{Host: "::1", Port: 9222},
		},
		{name: "missing port", url: "ws://localhost/devtools", wantErr: true},
		{name: "garbage", url: "::not a url", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := NewProcess(tt.url, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewProcess() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if p.Endpoint != tt.want {
				t.Errorf("Endpoint = %+v, want %+v", p.Endpoint, tt.want)
			}
			if p.ControlURL != tt.url {
				t.Errorf("ControlURL = %q, want %q", p.ControlURL, tt.url)
			}
			p.Kill() // nil kill is a no-op
		})
	}
}

func TestProcess_KillOnce(t *testing.T) {
	t.Parallel()

	kills := 0
	p, err := NewProcess("ws://127.0.0.1:9222/devtools/browser/x", func() { kills++ })
	if err != nil {
		t.Fatalf("NewProcess() error = %v", err)
	}
	p.Kill()
	p.Kill()

	if kills != 1 {
		t.Errorf("kill called %d times, want 1", kills)
	}
}

func TestNewLauncher_Flags(t *testing.T) {
	t.Parallel()

	l := newLauncher(&LaunchConfig{
		NoSandbox: true,
		Args:      []string{"--disable-gpu", "window-size=800,600", "lang=fr"},
	})

	if !l.Has(flags.Headless) {
		t.Error("headless flag missing for a default launch")
	}
	if !l.Has(flags.NoSandbox) {
		t.Error("no-sandbox flag missing")
	}
	if !l.Has(flags.Flag("disable-gpu")) {
		t.Error("bare flag not passed")
	}
	if got := l.Get(flags.Flag("window-size")); got != "800,600" {
		t.Errorf("window-size = %q, want %q", got, "800,600")
	}
	if got := l.Get(flags.Flag("lang")); got != "fr" {
		t.Errorf("lang = %q, want %q", got, "fr")
	}
}

func TestNewLauncher_Headful(t *testing.T) {
	t.Parallel()

	if l := newLauncher(&LaunchConfig{Headful: true}); l.Has(flags.Headless) {
		t.Error("headless flag set for a headful launch")
	}
}

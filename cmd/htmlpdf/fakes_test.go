package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	htmlpdf "github.com/alnah/go-htmlpdf"
	"github.com/alnah/go-htmlpdf/internal/config"
	"go.uber.org/zap"
)

// minimalPDF is the smallest byte sequence the fakes return as a PDF.
var minimalPDF = []byte("%PDF-1.4\n%%EOF\n")

// fakeRenderer records requests and returns scripted results.
type fakeRenderer struct {
	generate func(ctx context.Context, req htmlpdf.Request) (*htmlpdf.Result, error)
	delay    time.Duration

	mu       sync.Mutex
	requests []htmlpdf.Request

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	closed      atomic.Int32
}

func (f *fakeRenderer) Generate(ctx context.Context, req htmlpdf.Request) (*htmlpdf.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.generate != nil {
		return f.generate(ctx, req)
	}
	return htmlpdf.NewResult(minimalPDF), nil
}

func (f *fakeRenderer) Close() error {
	f.closed.Add(1)
	return nil
}

func (f *fakeRenderer) sources() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r.Source)
	}
	return out
}

// testEnv returns an Environment wired to buffers and fake.
func testEnv(fake *fakeRenderer, stdin string, vars map[string]string) (*Environment, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	var environ []string
	for k, v := range vars {
		environ = append(environ, k+"="+v)
	}
	return &Environment{
		Now:     time.Now,
		Stdin:   strings.NewReader(stdin),
		Stdout:  &stdout,
		Stderr:  &stderr,
		Getenv:  func(k string) string { return vars[k] },
		Environ: func() []string { return environ },
		NewRenderer: func(*config.Config, int, *zap.Logger) Renderer {
			return fake
		},
	}, &stdout, &stderr
}

package main

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	htmlpdf "github.com/alnah/go-htmlpdf"
	"github.com/alnah/go-htmlpdf/internal/config"
	"go.uber.org/zap"
)

// Renderer is the part of htmlpdf.Generator and htmlpdf.GeneratorPool the
// command depends on.
type Renderer interface {
	Generate(ctx context.Context, req htmlpdf.Request) (*htmlpdf.Result, error)
	Close() error
}

// Compile-time interface implementation checks.
var (
	_ Renderer = (*htmlpdf.Generator)(nil)
	_ Renderer = (*htmlpdf.GeneratorPool)(nil)
)

// RendererFactory builds the Renderer for a run from the merged config.
type RendererFactory func(cfg *config.Config, workers int, logger *zap.Logger) Renderer

// Environment holds injectable dependencies for testability.
type Environment struct {
	Now         func() time.Time
	Stdin       io.Reader
	Stdout      io.Writer
	Stderr      io.Writer
	Getenv      func(string) string
	Environ     func() []string
	NewRenderer RendererFactory
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Now:         time.Now,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Getenv:      os.Getenv,
		Environ:     os.Environ,
		NewRenderer: newRenderer,
	}
}

// newRenderer attaches one shared Generator to a running browser when a
// port is configured, and otherwise launches a pool of browsers.
func newRenderer(cfg *config.Config, workers int, logger *zap.Logger) Renderer {
	if cfg.Browser.Port > 0 {
		return htmlpdf.NewGenerator(
			htmlpdf.WithEndpoint(cfg.Browser.Host, cfg.Browser.Port),
			htmlpdf.WithLogger(logger),
		)
	}
	return htmlpdf.NewGeneratorPool(workers,
		htmlpdf.WithLaunchConfig(htmlpdf.LaunchConfig{
			Bin:       cfg.Browser.Bin,
			Headful:   cfg.Browser.Headful,
			NoSandbox: cfg.Browser.NoSandbox,
			Args:      cfg.Browser.Args,
		}),
		htmlpdf.WithLogger(logger),
	)
}

// lockedWriter serializes writes from concurrent renders.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

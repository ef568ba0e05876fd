package htmlpdf

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one worker is available.
	MinPoolSize = 1

	// MaxPoolSize caps browser instances to limit memory (~200MB each).
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for Chrome child processes.
	cpuDivisor = 2
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("generator pool is closed")

// GeneratorPool spreads requests over several Generators, each driving its
// own launched browser. Generators are created lazily on first acquire.
type GeneratorPool struct {
	size  int
	opts  []Option
	idle  chan *Generator
	slots chan struct{}

	mu         sync.Mutex
	generators []*Generator
	closed     bool
	done       chan struct{}
}

// NewGeneratorPool creates a pool with capacity for n Generators built
// with opts. Nothing is launched until the first Acquire.
func NewGeneratorPool(n int, opts ...Option) *GeneratorPool {
	if n < MinPoolSize {
		n = MinPoolSize
	}
	return &GeneratorPool{
		size:       n,
		opts:       opts,
		idle:       make(chan *Generator, n),
		slots:      make(chan struct{}, n),
		generators: make([]*Generator, 0, n),
		done:       make(chan struct{}),
	}
}

// Acquire returns an idle Generator, creating one if capacity remains.
// Blocks until one is released, ctx is done, or the pool is closed.
func (p *GeneratorPool) Acquire(ctx context.Context) (*Generator, error) {
	select {
	case <-p.done:
		return nil, ErrPoolClosed
	default:
	}

	select {
	case g := <-p.idle:
		return g, nil
	default:
	}

	select {
	case g := <-p.idle:
		return g, nil
	case p.slots <- struct{}{}:
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			return nil, ErrPoolClosed
		}
		g := NewGenerator(p.opts...)
		p.generators = append(p.generators, g)
		return g, nil
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns g to the pool. Releasing after Close is a no-op.
func (p *GeneratorPool) Release(g *Generator) {
	if g == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.idle <- g // never blocks: at most size generators exist
}

// Generate runs req on a pooled Generator.
func (p *GeneratorPool) Generate(ctx context.Context, req Request) (*Result, error) {
	g, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(g)
	return g.Generate(ctx, req)
}

// Close shuts every Generator down and kills their browsers.
// Returns an aggregated error if several fail to close.
func (p *GeneratorPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	generators := p.generators
	p.mu.Unlock()

	var errs []error
	for _, g := range generators {
		if err := g.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Size returns the pool capacity.
func (p *GeneratorPool) Size() int {
	return p.size
}

// ResolvePoolSize determines the pool size.
// Priority: explicit workers > GOMAXPROCS-based calculation.
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}

	// GOMAXPROCS is adjusted by automaxprocs in containers
	n := runtime.GOMAXPROCS(0) / cpuDivisor

	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}

// Package executorpool bounds how many tasks of each registry.Kind may run
// concurrently (SPEC_FULL.md §4.6). Pointy-Lang has three pool flavors where
// the corpus this engine grew out of had one fixed-size worker pool for
// every node: IOBound tasks share a single slot by default, so only one
// runs at a time, CPUBound tasks get one slot per CPU, and Remote tasks get
// a generous, independently tunable concurrency ceiling since they're bound by a remote service, not
// local resources.
package executorpool

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"

	"github.com/vk/pointyflow/internal/registry"
)

// Pools holds one concurrency gate per registry.Kind.
type Pools struct {
	io     *semaphore.Weighted
	cpu    *semaphore.Weighted
	remote *semaphore.Weighted
}

// Options configures each pool's concurrency ceiling. A zero value in any
// field falls back to its documented default.
type Options struct {
	// IOConcurrency bounds the IOBound pool. Defaults to 1, so by default
	// IOBound tasks run one at a time.
	IOConcurrency int64
	// CPUConcurrency bounds the CPUBound pool. Defaults to runtime.NumCPU().
	CPUConcurrency int64
	// RemoteConcurrency bounds the Remote pool. Defaults to 16.
	RemoteConcurrency int64
}

// New creates the three pools from opts, applying defaults for any zero field.
func New(opts Options) *Pools {
	io := opts.IOConcurrency
	if io <= 0 {
		io = 1
	}
	cpu := opts.CPUConcurrency
	if cpu <= 0 {
		cpu = int64(runtime.NumCPU())
	}
	remote := opts.RemoteConcurrency
	if remote <= 0 {
		remote = 16
	}
	return &Pools{
		io:     semaphore.NewWeighted(io),
		cpu:    semaphore.NewWeighted(cpu),
		remote: semaphore.NewWeighted(remote),
	}
}

func (p *Pools) gateFor(kind registry.Kind) *semaphore.Weighted {
	switch kind {
	case registry.IOBound:
		return p.io
	case registry.CPUBound:
		return p.cpu
	case registry.Remote:
		return p.remote
	default:
		return p.io
	}
}

// Run acquires a slot in the pool matching kind, runs fn, and releases the
// slot before returning. It blocks until a slot is available or ctx is
// canceled, in which case it returns ctx.Err() without running fn.
func Run(ctx context.Context, p *Pools, kind registry.Kind, fn func(context.Context) error) error {
	gate := p.gateFor(kind)
	if err := gate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer gate.Release(1)
	return fn(ctx)
}

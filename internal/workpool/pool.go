// Package workpool implements the WorkPool component: a process-wide pool
// of fire-and-forget workers for tile upload/delete/cache-warm tasks, plus
// a per-call bounded pool for parallel synchronous tile fetch during a
// single read_region/write_region call.
//
// Grounded on github.com/alitto/pond (direct dependency of sixy6e-go-gsf,
// cmd/main.go's convert_gsf_list: "pool := pond.New(n, 0,
// pond.MinWorkers(n), pond.Context(ctx))"), the same library the rest of
// the example pack reaches for whenever it needs a bounded worker pool
// instead of unbounded goroutine fan-out.
package workpool

import (
	"context"

	"github.com/alitto/pond"

	"github.com/edmstore/rasterstore/internal/rlog"
)

// DefaultWorkers is the worker count spec.md §4.7/§5 calls for: "a
// process-wide pool of 8 workers" and "a per-call bounded pool (size 8)".
const DefaultWorkers = 8

// Pool is the shared WorkPool: one pond.WorkerPool backing both the
// fire-and-forget async task kinds (upload_tile, delete_tile, cache_tile)
// and ad hoc synchronous fetch batches submitted through Fetch.
type Pool struct {
	pool *pond.WorkerPool
}

// New returns a Pool with workers fixed-size goroutines. A workers <= 0
// falls back to DefaultWorkers.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pool{pool: pond.New(workers, 0, pond.MinWorkers(workers))}
}

// UploadTile fires upload off asynchronously; per spec.md §4.7, failures are
// logged to a side-band error channel, never returned to the caller that
// triggered the upload.
func (p *Pool) UploadTile(upload func() error) {
	p.pool.Submit(func() {
		if err := upload(); err != nil {
			rlog.Warnf("workpool: async tile upload failed: %v", err)
		}
	})
}

// DeleteTile fires delete off asynchronously, same fire-and-forget contract
// as UploadTile.
func (p *Pool) DeleteTile(delete func() error) {
	p.pool.Submit(func() {
		if err := delete(); err != nil {
			rlog.Warnf("workpool: async tile delete failed: %v", err)
		}
	})
}

// CacheTile fires a cache warm-up off asynchronously. Per spec.md §4.7,
// cache_tile tasks are daemon-style: never joined, and failures are
// silent (not even logged), since a warm-up is purely an optimization --
// the next real read falls back to BackendGateway regardless.
func (p *Pool) CacheTile(warm func()) {
	p.pool.Submit(warm)
}

// Fetch runs fn(tasks[i]) for every task, in parallel, bounded by the
// pool's worker count, and waits for all of them to finish before
// returning -- the "per-call bounded pool ... tasks execute in parallel but
// results are gathered before the call returns" shape spec.md §4.7
// describes for synchronous parallel tile fetch. The first error
// encountered (if any) is returned, but every task still runs to
// completion: a read_region caller absorbs per-tile fetch failures into
// nodata (spec.md §7), it does not abort the batch.
func Fetch[T any](ctx context.Context, p *Pool, tasks []T, fn func(context.Context, T) error) error {
	if len(tasks) == 0 {
		return nil
	}
	group := p.pool.Group()
	errs := make([]error, len(tasks))
	for i, task := range tasks {
		i, task := i, task
		group.Submit(func() {
			errs[i] = fn(ctx, task)
		})
	}
	group.Wait()

	var first error
	for _, err := range errs {
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Stop drains the pool: already-submitted tasks run to completion, no new
// ones are accepted. Part of the application shutdown sequence, which
// then calls TileCache.Clear.
func (p *Pool) Stop() {
	p.pool.StopAndWait()
}

// Running reports the number of workers currently executing a task.
func (p *Pool) Running() int {
	return p.pool.RunningWorkers()
}

// Package pipeline drives the conversion runs: a bounded scheduler for the
// database pipeline and a batching runner for catalogue harvests.
package pipeline

import (
	"context"

	"github.com/fairagro/arc-middleware/internal/mapper"
	"github.com/fairagro/arc-middleware/internal/source"
)

// BuildFunc serializes one dataset into an ARC JSON-LD document.
type BuildFunc func(ds *source.Dataset) ([]byte, error)

// SerializerWorker runs CPU-bound document builds. Implementations bound
// their own parallelism; Build blocks until a build slot is free or the
// context ends.
type SerializerWorker interface {
	Build(ctx context.Context, ds *source.Dataset) ([]byte, error)
}

type buildResult struct {
	doc []byte
	err error
}

// PoolWorker bounds concurrent builds with a fixed number of slots. Slot
// acquisition and the build itself both respect context cancellation; a
// timed-out build still releases its slot once it finishes in the
// background.
type PoolWorker struct {
	slots chan struct{}
	build BuildFunc
}

// NewPoolWorker creates a worker with maxBuilds parallel build slots.
// A nil build function defaults to the dataset mapper.
func NewPoolWorker(maxBuilds int, build BuildFunc) *PoolWorker {
	if maxBuilds < 1 {
		maxBuilds = 1
	}

	if build == nil {
		build = mapper.BuildDatasetJSON
	}

	return &PoolWorker{
		slots: make(chan struct{}, maxBuilds),
		build: build,
	}
}

// Build serializes one dataset, waiting for a free slot first.
func (w *PoolWorker) Build(ctx context.Context, ds *source.Dataset) ([]byte, error) {
	select {
	case w.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	done := make(chan buildResult, 1)

	go func() {
		defer func() {
			<-w.slots
		}()

		doc, err := w.build(ds)
		done <- buildResult{doc: doc, err: err}
	}()

	select {
	case res := <-done:
		return res.doc, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// InProcessWorker builds synchronously on the calling goroutine. Used in
// tests and small runs where pool overhead is not worth it.
type InProcessWorker struct {
	build BuildFunc
}

// NewInProcessWorker creates a synchronous worker.
func NewInProcessWorker(build BuildFunc) *InProcessWorker {
	if build == nil {
		build = mapper.BuildDatasetJSON
	}

	return &InProcessWorker{build: build}
}

// Build serializes one dataset immediately.
func (w *InProcessWorker) Build(ctx context.Context, ds *source.Dataset) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return w.build(ds)
}

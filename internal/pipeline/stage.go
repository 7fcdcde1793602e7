// Package pipeline implements the engine's composable async-generator
// runtime (C6) and its bounded concurrent map stage (C7). It generalizes
// the teacher's channel-based worker orchestration — job channel, result
// channel, single error channel, WaitGroup of workers — seen in
// cloud/upload/s3_concurrent.go's uploadMultipartConcurrent, from "upload
// one S3 object's parts" to "run any stage over any channel."
package pipeline

import (
	"context"

	"github.com/rescale/xferengine/internal/controller"
)

// Stage lazily transforms a stream of In into a stream of Out. Run must
// close its returned channel once the input channel is drained or ctx is
// cancelled, whichever comes first, and must release any scoped resources
// held for items it drops on cancellation.
type Stage[In, Out any] interface {
	Run(ctx context.Context, in <-chan In, ctrl *controller.Controller) <-chan Out
}

// StageFunc adapts a plain function to the Stage interface for simple,
// non-batching, non-concurrent stages (e.g. CreateTransferParts,
// FailUnsupportedAssets).
type StageFunc[In, Out any] func(ctx context.Context, in <-chan In, ctrl *controller.Controller) <-chan Out

func (f StageFunc[In, Out]) Run(ctx context.Context, in <-chan In, ctrl *controller.Controller) <-chan Out {
	return f(ctx, in, ctrl)
}

// Batcher declares the batching predicate as an interface. ConcurrentMap
// does not look for it: batching is enabled by passing the predicate as
// ConcurrentOptions.CheckAddBatch.
type Batcher[In any] interface {
	// CheckAddBatch reports whether candidate may join the in-progress
	// batch; returning false flushes the batch (spawning a task for it)
	// before candidate starts a new one.
	CheckAddBatch(batch []In, candidate In) bool
}

// Pipe composes two stages end to end: s2 consumes s1's output stream.
func Pipe[A, B, C any](s1 Stage[A, B], s2 Stage[B, C]) Stage[A, C] {
	return StageFunc[A, C](func(ctx context.Context, in <-chan A, ctrl *controller.Controller) <-chan C {
		mid := s1.Run(ctx, in, ctrl)
		return s2.Run(ctx, mid, ctrl)
	})
}

// Filter is the pipeline's implicit per-item drop hook (spec §4.1),
// applied to a stage's output with FilterStage; the facades insert it
// between adjacent stages themselves.
type Filter[T any] func(item T) bool

// FilterStage wraps a stage's output, dropping items for which keep
// returns false. Used to implement FilterFailedAssets as the pipeline's
// filter hook.
func FilterStage[T any](keep Filter[T]) Stage[T, T] {
	return StageFunc[T, T](func(ctx context.Context, in <-chan T, ctrl *controller.Controller) <-chan T {
		out := make(chan T)
		go func() {
			defer close(out)
			for {
				select {
				case <-ctx.Done():
					return
				case item, ok := <-in:
					if !ok {
						return
					}
					if !keep(item) {
						continue
					}
					select {
					case out <- item:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
		return out
	})
}

// Drain consumes every item out produces, discarding them. Used by drivers
// that only care about events published through the controller (e.g. a
// terminal CloseFiles stage with no meaningful Out payload).
func Drain[T any](ctx context.Context, out <-chan T) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-out:
			if !ok {
				return
			}
		}
	}
}

// Collect consumes every item out produces into a slice, in delivery
// order. Intended for tests and small batches; facades that need
// constant memory should consume the channel directly instead.
func Collect[T any](ctx context.Context, out <-chan T) []T {
	var items []T
	for {
		select {
		case <-ctx.Done():
			return items
		case item, ok := <-out:
			if !ok {
				return items
			}
			items = append(items, item)
		}
	}
}

// FromSlice turns a slice into a channel stage source, closing the channel
// once every item has been sent or ctx is cancelled.
func FromSlice[T any](ctx context.Context, items []T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for _, item := range items {
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

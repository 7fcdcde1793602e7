package pipeline

import (
	"container/heap"
	"context"
	"sync"

	"github.com/rescale/xferengine/internal/controller"
)

// ItemResult is one item's outcome from a BatchProcessor: either Out is
// populated and Err is nil, or Err is non-nil and Out is the zero value.
// A failed item is not forwarded downstream (the stage notifies the
// controller and drops it), matching spec §4.2's "errors... do not abort
// sibling tasks."
type ItemResult[Out any] struct {
	Out Out
	Err error
}

// BatchProcessor executes one spawned task: transform a batch of input
// items into one ItemResult per item, in the same order as batch.
type BatchProcessor[In, Out any] func(ctx context.Context, batch []In) []ItemResult[Out]

// ConcurrentOptions configures the concurrent map stage (spec §4.2).
type ConcurrentOptions[In any] struct {
	// MaxConcurrent bounds in-flight spawned tasks. Must be >= 1.
	MaxConcurrent int
	// MaxBatchLength bounds items per spawned task. Must be >= 1; 1 means
	// "one task per item" (the common case for transfer/part stages).
	MaxBatchLength int
	// Ordered preserves input order on the output stream; false yields in
	// completion order.
	Ordered bool
	// CheckAddBatch optionally rejects a candidate from joining the
	// in-progress batch (e.g. DAM initiate batching same-parent assets
	// only). nil means every candidate may join until MaxBatchLength.
	CheckAddBatch func(batch []In, candidate In) bool
	// OnItemError is invoked for each item a task reports an error for,
	// before the item is dropped. Typically calls controller.NotifyError.
	OnItemError func(ctrl *controller.Controller, item In, err error)
}

type seqItem[In any] struct {
	seq  int
	item In
}

// taskResult is one spawned task's output: every ItemResult for its batch,
// tagged with the sequence number of the batch's first item so ordered
// mode can reassemble input order across out-of-order completions.
type taskResult[Out any] struct {
	seq int
	res []ItemResult[Out]
}

// ConcurrentMap wraps proc as a Stage honoring opts: it reads in, batches
// items per opts.CheckAddBatch/MaxBatchLength, spawns up to MaxConcurrent
// tasks running proc, and streams successful results out — ordered by
// input sequence if opts.Ordered, otherwise in completion order.
func ConcurrentMap[In, Out any](proc BatchProcessor[In, Out], opts ConcurrentOptions[In]) Stage[In, Out] {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.MaxBatchLength < 1 {
		opts.MaxBatchLength = 1
	}

	return StageFunc[In, Out](func(ctx context.Context, in <-chan In, ctrl *controller.Controller) <-chan Out {
		out := make(chan Out)

		batches := make(chan []seqItem[In], opts.MaxConcurrent)
		results := make(chan taskResult[Out], opts.MaxConcurrent)

		var wg sync.WaitGroup
		for w := 0; w < opts.MaxConcurrent; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for batch := range batches {
					items := make([]In, len(batch))
					for i, si := range batch {
						items[i] = si.item
					}
					res := proc(ctx, items)
					for i, r := range res {
						if r.Err != nil && opts.OnItemError != nil {
							opts.OnItemError(ctrl, items[i], r.Err)
						}
					}
					select {
					case results <- taskResult[Out]{seq: batch[0].seq, res: res}:
					case <-ctx.Done():
						return
					}
				}
			}()
		}

		// Batching loop: reads `in`, flushes batches onto `batches`.
		go func() {
			defer close(batches)
			seq := 0
			var pending []seqItem[In]
			flush := func() {
				if len(pending) == 0 {
					return
				}
				b := pending
				pending = nil
				select {
				case batches <- b:
				case <-ctx.Done():
				}
			}
			for {
				select {
				case <-ctx.Done():
					return
				case item, ok := <-in:
					if !ok {
						flush()
						return
					}
					if len(pending) > 0 && opts.CheckAddBatch != nil {
						candidates := make([]In, len(pending))
						for i, p := range pending {
							candidates[i] = p.item
						}
						if !opts.CheckAddBatch(candidates, item) {
							flush()
						}
					}
					pending = append(pending, seqItem[In]{seq: seq, item: item})
					seq++
					if len(pending) >= opts.MaxBatchLength {
						flush()
					}
				}
			}
		}()

		go func() {
			wg.Wait()
			close(results)
		}()

		go func() {
			defer close(out)
			if opts.Ordered {
				runOrdered(ctx, results, out)
			} else {
				runUnordered(ctx, results, out)
			}
		}()

		return out
	})
}

func runUnordered[Out any](ctx context.Context, results <-chan taskResult[Out], out chan<- Out) {
	for {
		select {
		case <-ctx.Done():
			return
		case tr, ok := <-results:
			if !ok {
				return
			}
			for _, r := range tr.res {
				if r.Err != nil {
					continue
				}
				select {
				case out <- r.Out:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// seqHeap orders taskResult entries by their starting sequence number so
// runOrdered can emit results in input order even though tasks complete
// out of order (spec §4.2's "ordered mode uses a keyed priority heap on
// input index").
type seqHeap[Out any] []taskResult[Out]

func (h seqHeap[Out]) Len() int            { return len(h) }
func (h seqHeap[Out]) Less(i, j int) bool  { return h[i].seq < h[j].seq }
func (h seqHeap[Out]) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *seqHeap[Out]) Push(x interface{}) { *h = append(*h, x.(taskResult[Out])) }
func (h *seqHeap[Out]) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func runOrdered[Out any](ctx context.Context, results <-chan taskResult[Out], out chan<- Out) {
	h := &seqHeap[Out]{}
	heap.Init(h)
	next := 0

	drain := func() bool {
		for h.Len() > 0 && (*h)[0].seq == next {
			tr := heap.Pop(h).(taskResult[Out])
			for _, r := range tr.res {
				next++
				if r.Err != nil {
					continue
				}
				select {
				case out <- r.Out:
				case <-ctx.Done():
					return false
				}
			}
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case tr, ok := <-results:
			if !ok {
				drain()
				return
			}
			heap.Push(h, tr)
			if !drain() {
				return
			}
		}
	}
}

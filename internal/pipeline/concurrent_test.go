package pipeline

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/rescale/xferengine/internal/controller"
)

func TestConcurrentMapOrderedPreservesInputOrder(t *testing.T) {
	ctx := context.Background()
	ctrl := controller.New()

	proc := BatchProcessor[int, int](func(ctx context.Context, batch []int) []ItemResult[int] {
		res := make([]ItemResult[int], len(batch))
		for i := range batch {
			// Reverse processing order within the batch call so completion
			// order doesn't trivially match input order.
			res[len(batch)-1-i] = ItemResult[int]{Out: batch[len(batch)-1-i] * 10}
		}
		return res
	})

	stage := ConcurrentMap(proc, ConcurrentOptions[int]{
		MaxConcurrent:  4,
		MaxBatchLength: 1,
		Ordered:        true,
	})

	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	in := FromSlice(ctx, items)
	out := stage.Run(ctx, in, ctrl)
	got := Collect(ctx, out)

	if len(got) != len(items) {
		t.Fatalf("got %d results, want %d", len(got), len(items))
	}
	for i, v := range items {
		if got[i] != v*10 {
			t.Fatalf("got[%d] = %d, want %d", i, got[i], v*10)
		}
	}
}

func TestConcurrentMapUnorderedYieldsAllItems(t *testing.T) {
	ctx := context.Background()
	ctrl := controller.New()

	proc := BatchProcessor[int, int](func(ctx context.Context, batch []int) []ItemResult[int] {
		res := make([]ItemResult[int], len(batch))
		for i, v := range batch {
			res[i] = ItemResult[int]{Out: v * 2}
		}
		return res
	})

	stage := ConcurrentMap(proc, ConcurrentOptions[int]{MaxConcurrent: 3, MaxBatchLength: 1})
	items := []int{1, 2, 3, 4, 5}
	in := FromSlice(ctx, items)
	out := stage.Run(ctx, in, ctrl)
	got := Collect(ctx, out)

	sort.Ints(got)
	want := []int{2, 4, 6, 8, 10}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestConcurrentMapDropsFailedItemsAndNotifiesController(t *testing.T) {
	ctx := context.Background()
	ctrl := controller.New()

	proc := BatchProcessor[int, int](func(ctx context.Context, batch []int) []ItemResult[int] {
		res := make([]ItemResult[int], len(batch))
		for i, v := range batch {
			if v == 3 {
				res[i] = ItemResult[int]{Err: errors.New("boom")}
				continue
			}
			res[i] = ItemResult[int]{Out: v}
		}
		return res
	})

	var notifiedItem int
	stage := ConcurrentMap(proc, ConcurrentOptions[int]{
		MaxConcurrent:  2,
		MaxBatchLength: 1,
		OnItemError: func(ctrl *controller.Controller, item int, err error) {
			notifiedItem = item
			ctrl.NotifyError("test", uint64(item), err)
		},
	})

	items := []int{1, 2, 3, 4}
	in := FromSlice(ctx, items)
	out := stage.Run(ctx, in, ctrl)
	got := Collect(ctx, out)

	if len(got) != 3 {
		t.Fatalf("expected 3 successful items, got %v", got)
	}
	for _, v := range got {
		if v == 3 {
			t.Fatal("failed item should have been dropped")
		}
	}
	if notifiedItem != 3 {
		t.Fatalf("expected OnItemError called with item 3, got %d", notifiedItem)
	}
	if !ctrl.HasFailed(3) {
		t.Fatal("expected controller to record failure for item 3")
	}
}

func TestConcurrentMapBatchesViaCheckAddBatch(t *testing.T) {
	ctx := context.Background()
	ctrl := controller.New()

	var batchSizes []int
	proc := BatchProcessor[int, int](func(ctx context.Context, batch []int) []ItemResult[int] {
		batchSizes = append(batchSizes, len(batch))
		res := make([]ItemResult[int], len(batch))
		for i, v := range batch {
			res[i] = ItemResult[int]{Out: v}
		}
		return res
	})

	// Group items by parity: a candidate may join only if it shares parity
	// with the batch's first item.
	stage := ConcurrentMap(proc, ConcurrentOptions[int]{
		MaxConcurrent:  1,
		MaxBatchLength: 10,
		CheckAddBatch: func(batch []int, candidate int) bool {
			return batch[0]%2 == candidate%2
		},
	})

	items := []int{2, 4, 1, 3, 6}
	in := FromSlice(ctx, items)
	out := stage.Run(ctx, in, ctrl)
	got := Collect(ctx, out)

	if len(got) != len(items) {
		t.Fatalf("got %d items, want %d", len(got), len(items))
	}
	if len(batchSizes) != 3 {
		t.Fatalf("expected 3 batches (run-length grouped by parity), got %v", batchSizes)
	}
}

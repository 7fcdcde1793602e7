package pipeline

import (
	"context"
	"testing"

	"github.com/rescale/xferengine/internal/controller"
)

func double() Stage[int, int] {
	return StageFunc[int, int](func(ctx context.Context, in <-chan int, ctrl *controller.Controller) <-chan int {
		out := make(chan int)
		go func() {
			defer close(out)
			for v := range in {
				select {
				case out <- v * 2:
				case <-ctx.Done():
					return
				}
			}
		}()
		return out
	})
}

func addOne() Stage[int, int] {
	return StageFunc[int, int](func(ctx context.Context, in <-chan int, ctrl *controller.Controller) <-chan int {
		out := make(chan int)
		go func() {
			defer close(out)
			for v := range in {
				select {
				case out <- v + 1:
				case <-ctx.Done():
					return
				}
			}
		}()
		return out
	})
}

func TestPipeComposesStages(t *testing.T) {
	ctx := context.Background()
	ctrl := controller.New()

	combined := Pipe[int, int, int](double(), addOne())
	in := FromSlice(ctx, []int{1, 2, 3})
	out := combined.Run(ctx, in, ctrl)

	got := Collect(ctx, out)
	want := []int{3, 5, 7}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFilterStageDropsItems(t *testing.T) {
	ctx := context.Background()
	ctrl := controller.New()

	keepEven := FilterStage(Filter[int](func(v int) bool { return v%2 == 0 }))
	in := FromSlice(ctx, []int{1, 2, 3, 4, 5, 6})
	out := keepEven.Run(ctx, in, ctrl)

	got := Collect(ctx, out)
	want := []int{2, 4, 6}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFilterStageStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ctrl := controller.New()

	keepAll := FilterStage(Filter[int](func(v int) bool { return true }))
	in := make(chan int)
	out := keepAll.Run(ctx, in, ctrl)
	cancel()

	Drain(ctx, out)
}

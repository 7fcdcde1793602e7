package stages

import (
	"context"

	"github.com/rescale/xferengine/internal/controller"
	"github.com/rescale/xferengine/internal/model"
	"github.com/rescale/xferengine/internal/pipeline"
	"github.com/rescale/xferengine/internal/rangeset"
)

type joinState struct {
	ranges rangeset.Set
	done   bool
}

// JoinTransferParts maintains a map of TransferAsset → completed-range set
// (spec §4.5): on each incoming completed part it adds the range, emits a
// progress event, and — once the set covers [0, contentLength) — emits the
// asset's completion exactly once and yields the asset downstream.
//
// The map is local to this stage's single consuming goroutine (the driver
// pulls TransferPart completions from Transfer's output one at a time), so
// it needs no lock of its own.
func JoinTransferParts() pipeline.Stage[*model.TransferPart, *model.TransferAsset] {
	return pipeline.StageFunc[*model.TransferPart, *model.TransferAsset](func(ctx context.Context, in <-chan *model.TransferPart, ctrl *controller.Controller) <-chan *model.TransferAsset {
		out := make(chan *model.TransferAsset)
		go func() {
			defer close(out)
			states := make(map[uint64]*joinState)
			for {
				select {
				case <-ctx.Done():
					return
				case part, ok := <-in:
					if !ok {
						return
					}
					asset := part.Asset
					if ctrl.HasFailed(asset.ID) {
						delete(states, asset.ID)
						continue
					}

					st, found := states[asset.ID]
					if !found {
						st = &joinState{}
						states[asset.ID] = st
					}
					if st.done {
						continue
					}

					st.ranges.Add(part.Range)
					transferred := st.ranges.TotalLength()
					ctrl.PublishFileProgress(asset.ID, asset.Metadata.Filename, asset.Metadata.ContentLength, transferred)

					if !st.ranges.Covers(asset.Metadata.ContentLength) {
						continue
					}

					st.done = true
					asset.End()
					asset.SetState(model.AssetDone)
					// Keep the entry as a done marker so a duplicate part
					// cannot re-emit the asset; only its ranges are dropped.
					st.ranges = rangeset.Set{}

					select {
					case out <- asset:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
		return out
	})
}

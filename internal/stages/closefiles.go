package stages

import (
	"context"

	"github.com/rescale/xferengine/internal/controller"
	"github.com/rescale/xferengine/internal/model"
	"github.com/rescale/xferengine/internal/pipeline"
)

// CloseFiles runs an asset's registered closers (the filehandle.Cache
// entries Transfer opened on its behalf) exactly once and forwards the
// asset downstream regardless of close errors, which are reported to the
// controller rather than dropped.
func CloseFiles() pipeline.Stage[*model.TransferAsset, *model.TransferAsset] {
	return pipeline.StageFunc[*model.TransferAsset, *model.TransferAsset](func(ctx context.Context, in <-chan *model.TransferAsset, ctrl *controller.Controller) <-chan *model.TransferAsset {
		out := make(chan *model.TransferAsset)
		go func() {
			defer close(out)
			for {
				select {
				case <-ctx.Done():
					return
				case asset, ok := <-in:
					if !ok {
						return
					}
					ctrl.PublishBeforeStage("CloseFiles", asset.ID)
					if err := asset.Close(); err != nil {
						ctrl.NotifyError("CloseFiles", asset.ID, err)
					}
					ctrl.PublishAfterStage("CloseFiles", asset.ID)
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

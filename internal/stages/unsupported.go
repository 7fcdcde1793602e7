package stages

import (
	"context"
	"strings"

	"github.com/rescale/xferengine/internal/controller"
	"github.com/rescale/xferengine/internal/model"
	"github.com/rescale/xferengine/internal/pipeline"
	"github.com/rescale/xferengine/internal/xfererr"
)

// DefaultForbiddenFilenameChars is the DAM's documented set of characters a
// target filename must not contain (spec §4.6 / S3).
const DefaultForbiddenFilenameChars = ":[]"

// FailUnsupportedAssets rejects assets whose metadata content length is
// absent or < 1, or whose filename contains a forbidden character,
// recording an UnsupportedAssetError and marking the asset failed without
// removing it from the stream — FilterFailedAssets (the pipeline's filter
// hook) is what actually elides it from further stages.
func FailUnsupportedAssets(forbiddenChars string) pipeline.Stage[*model.TransferAsset, *model.TransferAsset] {
	if forbiddenChars == "" {
		forbiddenChars = DefaultForbiddenFilenameChars
	}
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
					ctrl.PublishBeforeStage("FailUnsupportedAssets", asset.ID)
					if err := checkSupported(asset, forbiddenChars); err != nil {
						asset.Fail(err)
						ctrl.NotifyError("FailUnsupportedAssets", asset.ID, err)
					}
					ctrl.PublishAfterStage("FailUnsupportedAssets", asset.ID)
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

func checkSupported(asset *model.TransferAsset, forbiddenChars string) error {
	name := asset.Metadata.Filename
	if strings.ContainsAny(name, forbiddenChars) {
		return &xfererr.UnsupportedAssetError{
			Message: "File cannot be uploaded: Filename '" + name + "' has unsupported characters",
		}
	}
	if !asset.Metadata.HasLength || asset.Metadata.ContentLength < 1 {
		return &xfererr.UnsupportedAssetError{
			Message: "File cannot be uploaded: content length is missing or less than 1 byte",
		}
	}
	return nil
}

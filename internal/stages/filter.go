// Package stages implements the transfer engine's stage library (C10): the
// concrete pipeline.Stage values that turn a stream of assets into
// transferred, joined, closed assets. It wires together model, controller,
// filehandle, bufpool, xferhttp, retry, reqgen and pipeline the way the
// teacher's upload.go/download.go entry points wire their collaborators,
// generalized from "one cloud provider's multipart upload" to "any
// source/target pair the asset model describes."
package stages

import (
	"github.com/rescale/xferengine/internal/controller"
	"github.com/rescale/xferengine/internal/pipeline"
)

// AssetIDer is implemented by stream items that carry a reference back to
// their owning asset, letting FilterFailedAssets operate generically over
// both *model.TransferAsset and *model.TransferPart streams.
type AssetIDer interface {
	OwnerAssetID() uint64
}

// FilterFailedAssets is the pipeline's filter hook (spec §4.6): it
// suppresses any item whose owning asset the controller has already marked
// failed, so downstream stages don't waste work on it.
func FilterFailedAssets[T AssetIDer](ctrl *controller.Controller) pipeline.Stage[T, T] {
	return pipeline.FilterStage(pipeline.Filter[T](func(item T) bool {
		return !ctrl.HasFailed(item.OwnerAssetID())
	}))
}

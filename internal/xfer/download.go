package xfer

import (
	"context"

	"github.com/rescale/xferengine/internal/constants"
	"github.com/rescale/xferengine/internal/controller"
	"github.com/rescale/xferengine/internal/filehandle"
	"github.com/rescale/xferengine/internal/model"
	"github.com/rescale/xferengine/internal/pipeline"
	"github.com/rescale/xferengine/internal/stages"
)

// DownloadOptions configures AEMDownload/BlockDownload on top of the
// shared facade Options.
type DownloadOptions struct {
	Options
}

func buildDownloadAssets(ctrl *controller.Controller, files []FileTransfer) []*model.TransferAsset {
	assets := make([]*model.TransferAsset, len(files))
	for i, f := range files {
		asset := model.NewTransferAsset(f.Source, f.Target, f.Conflict)
		asset.Metadata.Filename = deriveFilename(f.Target, f.Source)
		// Downloads always split by range against the local target file
		// (spec §4.3's "acceptRanges && target.url is a file URL" branch),
		// enabling concurrent random-access writes via C4.
		asset.AcceptRanges = true
		if f.Target.IsFileURL() {
			ctrl.RegisterCleanup(asset.ID, filehandle.PathFromFileURL(f.Target.URL().String()))
		}
		assets[i] = asset
	}
	return assets
}

func downloadPipeline(ctx context.Context, opts DownloadOptions, files []FileTransfer) []Result {
	o := opts.Options.fill(constants.DefaultMaxConcurrencyBlock)
	ctrl := o.Controller
	assets := buildDownloadAssets(ctrl, files)

	in := pipeline.FromSlice(ctx, assets)
	s := stages.GetAssetMetadata(stages.GetAssetMetadataOptions{Client: o.Client}).Run(ctx, in, ctrl)
	s = stages.FilterFailedAssets[*model.TransferAsset](ctrl).Run(ctx, s, ctrl)
	s = publishFileStart().Run(ctx, s, ctrl)

	parts := stages.CreateTransferParts(stages.CreateTransferPartsOptions{PreferredPartSize: o.PreferredPartSize}).Run(ctx, s, ctrl)
	parts = stages.FilterFailedAssets[*model.TransferPart](ctrl).Run(ctx, parts, ctrl)
	parts = stages.Transfer(stages.TransferOptions{
		Client:        o.Client,
		Handles:       o.Handles,
		Buffers:       o.Buffers,
		Protocol:      stages.ProtocolBlock,
		RetryPolicy:   *o.RetryPolicy,
		MaxConcurrent: o.MaxConcurrent,
	}).Run(ctx, parts, ctrl)

	joined := stages.JoinTransferParts().Run(ctx, parts, ctrl)
	joined = stages.CloseFiles().Run(ctx, joined, ctrl)
	joined = publishFileEnd().Run(ctx, joined, ctrl)

	return collectResults(ctx, ctrl, assets, joined)
}

// BlockDownload fetches each file from a directly addressable http(s) URL
// (typically a pre-signed blob-store GET) via ranged requests, writing to
// the target file at each part's offset (spec §4.4's http→file transport,
// §6.4's Range GET contract).
func BlockDownload(ctx context.Context, opts DownloadOptions, files []FileTransfer) []Result {
	return downloadPipeline(ctx, opts, files)
}

// AEMDownload fetches each file from a DAM-served URL. The DAM's download
// side has no documented initiate/complete handshake (spec §6 only
// specifies one for uploads), so this assembles the identical pipeline to
// BlockDownload; it exists as its own entry point for API symmetry with
// AEMUpload, and to give DAM downloads a seam to grow DAM-specific
// behavior (auth headers, redirect handling) without reshaping callers.
func AEMDownload(ctx context.Context, opts DownloadOptions, files []FileTransfer) []Result {
	return downloadPipeline(ctx, opts, files)
}

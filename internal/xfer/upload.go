package xfer

import (
	"context"
	"net/url"

	"github.com/rescale/xferengine/internal/constants"
	"github.com/rescale/xferengine/internal/controller"
	"github.com/rescale/xferengine/internal/model"
	"github.com/rescale/xferengine/internal/pipeline"
	"github.com/rescale/xferengine/internal/stages"
)

// UploadOptions configures AEMUpload/BlockUpload on top of the shared
// facade Options.
type UploadOptions struct {
	Options

	// Protocol selects the request shape Transfer uses for each part:
	// ProtocolBlock (raw PUT, the default) or ProtocolForm (multipart/
	// form-data POST, spec §4.4/§6.3). AEMUpload always uses ProtocolBlock,
	// since a DAM initiateUpload response hands back plain PUT URIs.
	Protocol stages.Protocol

	// MaxInitiateBatch bounds how many same-parent assets one
	// initiateUpload.json POST may cover. Zero uses AEMInitiateOptions's
	// own default.
	MaxInitiateBatch int
}

func buildUploadAssets(files []FileTransfer) []*model.TransferAsset {
	assets := make([]*model.TransferAsset, len(files))
	for i, f := range files {
		asset := model.NewTransferAsset(f.Source, f.Target, f.Conflict)
		asset.Metadata.Filename = deriveFilename(f.Target, f.Source)
		assets[i] = asset
	}
	return assets
}

// installBlockTarget wires a caller-supplied Multipart (BlockUpload's
// pre-signed-URL mode) or, for the form/chunked protocol with no
// caller-supplied target, synthesizes a single-URL Multipart pointing at
// the asset's own target URL so CreateTransferParts' multipart branch
// splits the asset into chunks that all post to that one endpoint — the
// degenerate case documented on stages.CreateTransferParts.
func installBlockTarget(protocol stages.Protocol, multiparts map[uint64]*model.Multipart) pipeline.Stage[*model.TransferAsset, *model.TransferAsset] {
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
					if mp, ok := multiparts[asset.ID]; ok {
						asset.Multipart = mp
						asset.AcceptRanges = true
					} else if protocol == stages.ProtocolForm {
						if u := asset.Target.URL(); u != nil {
							asset.Multipart = singleURLMultipart(u, asset.Metadata.ContentLength)
							asset.AcceptRanges = true
						}
					}
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

func singleURLMultipart(u *url.URL, contentLength int64) *model.Multipart {
	maxSize := contentLength
	if maxSize < 1 {
		maxSize = constants.DefaultMaxPartSize
	}
	return &model.Multipart{TargetURLs: []*url.URL{u}, MinPartSize: 1, MaxPartSize: maxSize}
}

// AEMUpload moves each file through the DAM initiate/complete handshake
// (spec §4.6/§6.1): GetAssetMetadata, FailUnsupportedAssets, the
// initiateUpload batch request, block PUT to the returned part URLs, and a
// completeUpload POST once every part has joined. The first error among
// failed assets, if any, is returned as err alongside per-asset Results.
func AEMUpload(ctx context.Context, opts UploadOptions, files []FileTransfer) ([]Result, error) {
	o := opts.Options.fill(constants.DefaultMaxConcurrencyBlock)
	ctrl := o.Controller
	assets := buildUploadAssets(files)

	in := pipeline.FromSlice(ctx, assets)
	s := stages.GetAssetMetadata(stages.GetAssetMetadataOptions{Client: o.Client}).Run(ctx, in, ctrl)
	s = stages.FilterFailedAssets[*model.TransferAsset](ctrl).Run(ctx, s, ctrl)
	s = stages.FailUnsupportedAssets(o.ForbiddenFilenameChars).Run(ctx, s, ctrl)
	s = stages.FilterFailedAssets[*model.TransferAsset](ctrl).Run(ctx, s, ctrl)
	s = publishFileStart().Run(ctx, s, ctrl)
	s = stages.AEMInitiateUpload(stages.AEMInitiateOptions{
		Client:        o.Client,
		MaxConcurrent: o.MaxConcurrent,
		MaxBatchSize:  opts.MaxInitiateBatch,
	}).Run(ctx, s, ctrl)
	s = stages.FilterFailedAssets[*model.TransferAsset](ctrl).Run(ctx, s, ctrl)

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
	joined = stages.AEMCompleteUpload(stages.AEMCompleteOptions{Client: o.Client}).Run(ctx, joined, ctrl)
	joined = stages.CloseFiles().Run(ctx, joined, ctrl)
	joined = publishFileEnd().Run(ctx, joined, ctrl)

	results := collectResults(ctx, ctrl, assets, joined)
	return results, firstError(results)
}

// BlockUpload moves each file directly to pre-signed target URLs with no
// DAM handshake: block PUT (or, with Protocol set to ProtocolForm, chunked
// multipart/form-data POST to a single create-asset endpoint). Set
// FileTransfer.Multipart to supply caller-minted pre-signed part URLs (e.g.
// S3/Azure); leave it nil for a single-URL whole-file PUT, or for the
// form/chunked protocol where the facade synthesizes the single-URL target.
func BlockUpload(ctx context.Context, opts UploadOptions, files []FileTransfer) ([]Result, error) {
	defaultConcurrency := constants.DefaultMaxConcurrencyBlock
	if opts.Protocol == stages.ProtocolForm {
		defaultConcurrency = constants.DefaultMaxConcurrencyForm
	}
	o := opts.Options.fill(defaultConcurrency)
	ctrl := o.Controller
	assets := buildUploadAssets(files)

	multiparts := make(map[uint64]*model.Multipart, len(files))
	for i, f := range files {
		if f.Multipart != nil {
			multiparts[assets[i].ID] = f.Multipart
		}
	}

	in := pipeline.FromSlice(ctx, assets)
	s := stages.GetAssetMetadata(stages.GetAssetMetadataOptions{Client: o.Client}).Run(ctx, in, ctrl)
	s = stages.FilterFailedAssets[*model.TransferAsset](ctrl).Run(ctx, s, ctrl)
	s = stages.FailUnsupportedAssets(o.ForbiddenFilenameChars).Run(ctx, s, ctrl)
	s = stages.FilterFailedAssets[*model.TransferAsset](ctrl).Run(ctx, s, ctrl)
	s = installBlockTarget(opts.Protocol, multiparts).Run(ctx, s, ctrl)
	s = publishFileStart().Run(ctx, s, ctrl)

	parts := stages.CreateTransferParts(stages.CreateTransferPartsOptions{PreferredPartSize: o.PreferredPartSize}).Run(ctx, s, ctrl)
	parts = stages.FilterFailedAssets[*model.TransferPart](ctrl).Run(ctx, parts, ctrl)
	parts = stages.Transfer(stages.TransferOptions{
		Client:        o.Client,
		Handles:       o.Handles,
		Buffers:       o.Buffers,
		Protocol:      opts.Protocol,
		RetryPolicy:   *o.RetryPolicy,
		MaxConcurrent: o.MaxConcurrent,
	}).Run(ctx, parts, ctrl)

	joined := stages.JoinTransferParts().Run(ctx, parts, ctrl)
	joined = stages.CloseFiles().Run(ctx, joined, ctrl)
	joined = publishFileEnd().Run(ctx, joined, ctrl)

	results := collectResults(ctx, ctrl, assets, joined)
	return results, firstError(results)
}

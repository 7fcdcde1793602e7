// Package xfer implements the transfer engine's public facades (C13):
// AEMUpload, AEMDownload, BlockUpload, BlockDownload. Each assembles the
// C10 stage library into one end-to-end pipeline and emits the
// filestart/fileprogress/fileend/fileerror lifecycle events spec §6.5
// names, the way the teacher's cloud/upload/upload.go and
// cloud/download/download.go canonical entry points wire their
// collaborators (http client, retry policy, file handles, buffer pool)
// into one call.
package xfer

import (
	"context"
	"net/http"
	"path"

	"github.com/rescale/xferengine/internal/bufpool"
	"github.com/rescale/xferengine/internal/constants"
	"github.com/rescale/xferengine/internal/controller"
	"github.com/rescale/xferengine/internal/filehandle"
	"github.com/rescale/xferengine/internal/model"
	"github.com/rescale/xferengine/internal/pipeline"
	"github.com/rescale/xferengine/internal/retry"
)

// FileTransfer names one source/target pair a facade call should move.
// Multipart is only consulted by BlockUpload: when set, it installs a
// caller-supplied set of pre-signed part URLs (no DAM handshake involved).
type FileTransfer struct {
	Source    model.Asset
	Target    model.Asset
	Conflict  model.ConflictPolicy
	Multipart *model.Multipart
}

// Options configures the collaborators every public facade wires into its
// pipeline. Nil fields get an engine-default instance; a nil Controller
// gets a fresh one, so callers that want to observe progress must pass
// their own (subscribe to Controller.Bus before calling the facade, since
// events start flowing as soon as the pipeline begins).
type Options struct {
	Client                 *http.Client
	Handles                *filehandle.Cache
	Buffers                *bufpool.Pool
	Controller             *controller.Controller
	RetryPolicy            *retry.Policy
	MaxConcurrent          int
	PreferredPartSize      *int64
	ForbiddenFilenameChars string
}

// Result is one asset's terminal outcome from a facade call.
type Result struct {
	AssetID  uint64
	FileName string
	Err      error
}

func (o Options) fill(defaultConcurrency int) Options {
	if o.Client == nil {
		o.Client = http.DefaultClient
	}
	if o.Handles == nil {
		o.Handles = filehandle.New()
	}
	if o.Buffers == nil {
		o.Buffers = bufpool.New(constants.DefaultBufferBlockSize, constants.DefaultBufferBudget)
	}
	if o.Controller == nil {
		o.Controller = controller.New()
	}
	if o.RetryPolicy == nil {
		p := retry.DefaultPolicy()
		o.RetryPolicy = &p
	}
	if o.MaxConcurrent < 1 {
		o.MaxConcurrent = defaultConcurrency
	}
	return o
}

// deriveFilename falls back to the target URL's base name, then the
// source's, when the caller hasn't pre-populated asset metadata. Needed
// because FailUnsupportedAssets and the DAM initiate body both key off
// Metadata.Filename.
func deriveFilename(target, source model.Asset) string {
	if name := baseNameOf(target); name != "" {
		return name
	}
	return baseNameOf(source)
}

func baseNameOf(a model.Asset) string {
	u := a.URL()
	if u == nil || u.Path == "" {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}

func assetDisplayName(a *model.TransferAsset) string {
	if a.Metadata.Filename != "" {
		return a.Metadata.Filename
	}
	return deriveFilename(a.Target, a.Source)
}

// publishFileStart emits filestart once metadata resolution has completed
// for an asset the controller hasn't already failed (spec §6.5).
func publishFileStart() pipeline.Stage[*model.TransferAsset, *model.TransferAsset] {
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
					if !ctrl.HasFailed(asset.ID) {
						ctrl.PublishFileStart(asset.ID, assetDisplayName(asset), asset.Metadata.ContentLength)
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

// publishFileEnd emits fileend for every asset that reaches the end of the
// pipeline without a recorded failure. Most stages drop failed assets
// (FilterFailedAssets, JoinTransferParts's own HasFailed check), but
// AEMCompleteUpload and CloseFiles forward an asset they fail, so the
// failure is checked again here; collectResults reports such an asset with
// fileerror instead.
func publishFileEnd() pipeline.Stage[*model.TransferAsset, *model.TransferAsset] {
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
					if !ctrl.HasFailed(asset.ID) {
						ctrl.PublishFileEnd(asset.ID, assetDisplayName(asset), asset.Metadata.ContentLength)
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

// collectResults drains the pipeline's terminal stream, then walks every
// asset the facade started (not just the ones that survived) so a fileerror
// event and Result are produced for assets that failed mid-pipeline and
// were dropped before reaching the end. Cleanup of partially-written
// download targets runs once, after every asset's fate is known.
func collectResults(ctx context.Context, ctrl *controller.Controller, assets []*model.TransferAsset, out <-chan *model.TransferAsset) []Result {
	pipeline.Drain(ctx, out)
	ctrl.CleanupFailedTransfers()

	results := make([]Result, len(assets))
	for i, a := range assets {
		name := assetDisplayName(a)
		if ctrl.HasFailed(a.ID) {
			ctrl.PublishFileError(a.ID, name)
			results[i] = Result{AssetID: a.ID, FileName: name, Err: ctrl.FirstError(a.ID)}
			continue
		}
		results[i] = Result{AssetID: a.ID, FileName: name}
	}
	return results
}

// firstError returns the first failed result's error, in asset order, for
// facades that must "re-throw the first error... to surface fatality"
// (spec §7 — upload facades only).
func firstError(results []Result) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

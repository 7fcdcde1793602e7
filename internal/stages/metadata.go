package stages

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rescale/xferengine/internal/controller"
	"github.com/rescale/xferengine/internal/filehandle"
	"github.com/rescale/xferengine/internal/model"
	"github.com/rescale/xferengine/internal/pipeline"
	"github.com/rescale/xferengine/internal/xfererr"
	"github.com/rescale/xferengine/internal/xferhttp"
)

// GetAssetMetadataOptions configures GetAssetMetadata.
type GetAssetMetadataOptions struct {
	// Client issues a HEAD request to resolve content length/type when the
	// asset's source is an http(s) URL (the download path). Required only
	// if any asset stream item has an http(s) source.
	Client *http.Client
}

// GetAssetMetadata fills in an asset's Metadata.ContentLength (and
// Filename/ContentType where absent) from its source: a blob's length, a
// local file's stat, or an HTTP HEAD request's Content-Length/Content-Type.
// Assets that already carry metadata (caller-supplied) pass through
// unchanged.
func GetAssetMetadata(opts GetAssetMetadataOptions) pipeline.Stage[*model.TransferAsset, *model.TransferAsset] {
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
					if ctrl.HasFailed(asset.ID) {
						continue
					}
					ctrl.PublishBeforeStage("GetAssetMetadata", asset.ID)
					if err := resolveMetadata(ctx, opts, asset); err != nil {
						asset.Fail(err)
						ctrl.NotifyError("GetAssetMetadata", asset.ID, err)
					} else {
						asset.SetState(model.AssetResolved)
					}
					ctrl.PublishAfterStage("GetAssetMetadata", asset.ID)
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

func resolveMetadata(ctx context.Context, opts GetAssetMetadataOptions, asset *model.TransferAsset) error {
	if asset.Metadata.HasLength {
		return nil
	}

	src := asset.Source
	switch {
	case src.IsBlob():
		asset.Metadata.ContentLength = int64(len(src.Blob()))
		asset.Metadata.HasLength = true
		return nil

	case src.IsFileURL():
		path := filehandle.PathFromFileURL(src.URL().String())
		fi, err := os.Stat(path)
		if err != nil {
			return &xfererr.StreamError{Cause: fmt.Errorf("getassetmetadata: stat %s: %w", path, err)}
		}
		asset.Metadata.ContentLength = fi.Size()
		asset.Metadata.HasLength = true
		if asset.Metadata.Filename == "" {
			asset.Metadata.Filename = filepath.Base(path)
		}
		return nil

	default:
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, src.URL().String(), nil)
		if err != nil {
			return err
		}
		for k, vs := range src.Headers() {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		resp, err := xferhttp.Do(opts.Client, req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		asset.Metadata.ContentLength = resp.ContentLength
		asset.Metadata.HasLength = resp.ContentLength >= 0
		if ct := resp.Header.Get("Content-Type"); ct != "" && asset.Metadata.ContentType == "" {
			asset.Metadata.ContentType = ct
		}
		return nil
	}
}

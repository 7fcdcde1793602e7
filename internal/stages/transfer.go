package stages

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rescale/xferengine/internal/bufpool"
	"github.com/rescale/xferengine/internal/constants"
	"github.com/rescale/xferengine/internal/controller"
	"github.com/rescale/xferengine/internal/filehandle"
	"github.com/rescale/xferengine/internal/model"
	"github.com/rescale/xferengine/internal/pipeline"
	"github.com/rescale/xferengine/internal/reqgen"
	"github.com/rescale/xferengine/internal/retry"
	"github.com/rescale/xferengine/internal/xfererr"
	"github.com/rescale/xferengine/internal/xferhttp"
)

// Protocol selects the request generator Transfer uses to shape the
// outbound upload body (spec §4.4/§6.2/§6.3). It has no effect on
// downloads (http → file), which always issue a ranged GET.
type Protocol int

const (
	ProtocolBlock Protocol = iota
	ProtocolForm
)

// TransferOptions configures the Transfer stage.
type TransferOptions struct {
	Client      *http.Client
	Handles     *filehandle.Cache
	Buffers     *bufpool.Pool
	Protocol    Protocol
	RetryPolicy retry.Policy

	// MaxConcurrent bounds in-flight part transfers (spec §9's "adopt 8 for
	// block transfers and 1 for the form/create-asset servlet").
	MaxConcurrent int
}

// Transfer executes each TransferPart's byte movement per spec §4.4,
// choosing file→http, blob→http, or http→file transport by the owning
// asset's source/target shape, wrapped in the configured retry policy, and
// fanned out via the concurrent map stage (C7).
func Transfer(opts TransferOptions) pipeline.Stage[*model.TransferPart, *model.TransferPart] {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = constants.DefaultMaxConcurrencyBlock
	}

	proc := pipeline.BatchProcessor[*model.TransferPart, *model.TransferPart](func(ctx context.Context, batch []*model.TransferPart) []pipeline.ItemResult[*model.TransferPart] {
		res := make([]pipeline.ItemResult[*model.TransferPart], len(batch))
		for i, part := range batch {
			err := retry.Do(ctx, opts.RetryPolicy, func(ctx context.Context) error {
				return transferOne(ctx, opts, part)
			})
			if err != nil {
				res[i] = pipeline.ItemResult[*model.TransferPart]{Err: err}
				continue
			}
			res[i] = pipeline.ItemResult[*model.TransferPart]{Out: part}
		}
		return res
	})

	return pipeline.ConcurrentMap(proc, pipeline.ConcurrentOptions[*model.TransferPart]{
		MaxConcurrent:  opts.MaxConcurrent,
		MaxBatchLength: 1,
		Ordered:        false,
		OnItemError: func(ctrl *controller.Controller, item *model.TransferPart, err error) {
			item.Asset.Fail(err)
			ctrl.NotifyError("Transfer", item.Asset.ID, err)
		},
	})
}

func transferOne(ctx context.Context, opts TransferOptions, part *model.TransferPart) error {
	asset := part.Asset
	src, tgt := asset.Source, asset.Target

	switch {
	case src.IsFileURL():
		return transferFileToHTTP(ctx, opts, part)
	case src.IsBlob():
		return transferBlobToHTTP(ctx, opts, part)
	case tgt.IsFileURL():
		return transferHTTPToFile(ctx, opts, part)
	default:
		return xfererr.NewIllegalArgument("transfer: unsupported source/target shape for asset %d", asset.ID)
	}
}

func targetURLFor(part *model.TransferPart) string {
	if part.TargetURL != "" {
		return part.TargetURL
	}
	return part.Asset.Target.URL().String()
}

func transferFileToHTTP(ctx context.Context, opts TransferOptions, part *model.TransferPart) error {
	asset := part.Asset
	path := filehandle.PathFromFileURL(asset.Source.URL().String())
	data, err := opts.Handles.Read(path, part.Range)
	if err != nil {
		return err
	}
	asset.AddCloser(func() error { return opts.Handles.ClosePath(path) })
	return putOrPost(ctx, opts, part, data)
}

func transferBlobToHTTP(ctx context.Context, opts TransferOptions, part *model.TransferPart) error {
	blob := part.Asset.Source.Blob()
	data := blob[part.Range.Low:part.Range.High]
	return putOrPost(ctx, opts, part, data)
}

func putOrPost(ctx context.Context, opts TransferOptions, part *model.TransferPart, data []byte) error {
	asset := part.Asset

	var gen reqgen.Generator
	switch opts.Protocol {
	case ProtocolForm:
		gen = reqgen.Form{
			FileName:    asset.Metadata.Filename,
			ContentType: asset.Metadata.ContentType,
			TotalSize:   asset.Metadata.ContentLength,
		}
	default:
		gen = reqgen.Block{ContentType: asset.Metadata.ContentType}
	}

	req, err := gen.Request(targetURLFor(part), part, data, asset.Target.PartHeaders())
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)

	resp, err := xferhttp.Do(opts.Client, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if etag := resp.Header.Get("ETag"); etag != "" {
		part.ETag = etag
	}
	return nil
}

func transferHTTPToFile(ctx context.Context, opts TransferOptions, part *model.TransferPart) error {
	asset := part.Asset

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.Source.URL().String(), nil)
	if err != nil {
		return err
	}
	for k, vs := range asset.Source.Headers() {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", part.Range.Low, part.Range.High-1))

	resp, err := xferhttp.Do(opts.Client, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	length := part.Range.Length()
	if resp.ContentLength >= 0 && resp.ContentLength != length {
		return &xfererr.RangeViolationError{
			Requested: xfererr.Range{Low: part.Range.Low, High: part.Range.High},
			GotLength: resp.ContentLength,
		}
	}

	alloc, err := opts.Buffers.Get(ctx, length)
	if err != nil {
		return xferhttp.WrapStreamErr(err)
	}
	defer alloc.Release()

	if _, err := io.ReadFull(resp.Body, alloc.Bytes); err != nil {
		return xferhttp.WrapStreamErr(err)
	}

	path := filehandle.PathFromFileURL(asset.Target.URL().String())
	if err := opts.Handles.Write(path, part.Range, alloc.Bytes, asset.Metadata.ContentLength); err != nil {
		return err
	}
	asset.AddCloser(func() error { return opts.Handles.ClosePath(path) })
	return nil
}

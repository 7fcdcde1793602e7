package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/rescale/xferengine/internal/controller"
	"github.com/rescale/xferengine/internal/model"
	"github.com/rescale/xferengine/internal/pipeline"
	"github.com/rescale/xferengine/internal/xfererr"
	"github.com/rescale/xferengine/internal/xferhttp"
)

// AEMInitiateOptions configures AEMInitiateUpload.
type AEMInitiateOptions struct {
	Client        *http.Client
	MaxConcurrent int
	MaxBatchSize  int
}

type initiateFileEntry struct {
	MinPartSize int64    `json:"minPartSize"`
	MaxPartSize int64    `json:"maxPartSize"`
	UploadURIs  []string `json:"uploadURIs"`
	UploadToken string   `json:"uploadToken"`
	MimeType    string   `json:"mimeType"`
}

type initiateResponse struct {
	CompleteURI string               `json:"completeURI"`
	Files       []initiateFileEntry  `json:"files"`
}

// AEMInitiateUpload batches assets sharing a parent path and submits one
// `<parent>.initiateUpload.json` form POST per batch (spec §4.6/§6.1),
// installing the resulting AssetMultipart on each asset the response
// validates successfully. An asset whose response entry fails validation
// is failed individually; the rest of the batch proceeds.
func AEMInitiateUpload(opts AEMInitiateOptions) pipeline.Stage[*model.TransferAsset, *model.TransferAsset] {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.MaxBatchSize < 1 {
		opts.MaxBatchSize = 64
	}

	proc := pipeline.BatchProcessor[*model.TransferAsset, *model.TransferAsset](func(ctx context.Context, batch []*model.TransferAsset) []pipeline.ItemResult[*model.TransferAsset] {
		return runInitiateBatch(ctx, opts.Client, batch)
	})

	return pipeline.ConcurrentMap(proc, pipeline.ConcurrentOptions[*model.TransferAsset]{
		MaxConcurrent:  opts.MaxConcurrent,
		MaxBatchLength: opts.MaxBatchSize,
		Ordered:        false,
		CheckAddBatch: func(batch []*model.TransferAsset, candidate *model.TransferAsset) bool {
			return sameParent(batch[0], candidate)
		},
		OnItemError: func(ctrl *controller.Controller, item *model.TransferAsset, err error) {
			item.Fail(err)
			ctrl.NotifyError("AEMInitiateUpload", item.ID, err)
		},
	})
}

func sameParent(a, b *model.TransferAsset) bool {
	au, bu := a.Target.URL(), b.Target.URL()
	if au == nil || bu == nil {
		return false
	}
	return au.Host == bu.Host && path.Dir(au.Path) == path.Dir(bu.Path)
}

func parentInitiateURL(asset *model.TransferAsset) (string, error) {
	u := asset.Target.URL()
	if u == nil {
		return "", xfererr.NewIllegalArgument("AEMInitiateUpload requires a URL target, asset %d", asset.ID)
	}
	parent := *u
	parent.Path = path.Dir(u.Path) + ".initiateUpload.json"
	return parent.String(), nil
}

func buildInitiateBody(batch []*model.TransferAsset) string {
	var b strings.Builder
	for i, asset := range batch {
		if i > 0 {
			b.WriteByte('&')
		}
		fmt.Fprintf(&b, "fileName=%s&fileSize=%d",
			url.QueryEscape(asset.Metadata.Filename), asset.Metadata.ContentLength)
	}
	return b.String()
}

func runInitiateBatch(ctx context.Context, client *http.Client, batch []*model.TransferAsset) []pipeline.ItemResult[*model.TransferAsset] {
	res := make([]pipeline.ItemResult[*model.TransferAsset], len(batch))

	fail := func(err error) []pipeline.ItemResult[*model.TransferAsset] {
		for i := range batch {
			res[i] = pipeline.ItemResult[*model.TransferAsset]{Err: err}
		}
		return res
	}

	target, err := parentInitiateURL(batch[0])
	if err != nil {
		return fail(err)
	}

	body := buildInitiateBody(batch)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(body))
	if err != nil {
		return fail(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := xferhttp.Do(client, req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	var parsed initiateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fail(xfererr.NewValidation("AEMInitiateUpload: invalid JSON response: %v", err))
	}
	if parsed.CompleteURI == "" {
		return fail(xfererr.NewValidation("AEMInitiateUpload: response missing completeURI"))
	}
	if len(parsed.Files) != len(batch) {
		return fail(xfererr.NewValidation("AEMInitiateUpload: response files length %d does not match batch size %d", len(parsed.Files), len(batch)))
	}

	completeURL, err := url.Parse(parsed.CompleteURI)
	if err != nil {
		return fail(xfererr.NewValidation("AEMInitiateUpload: invalid completeURI %q: %v", parsed.CompleteURI, err))
	}

	for i, f := range parsed.Files {
		asset := batch[i]
		if ferr := validateInitiateEntry(f); ferr != nil {
			res[i] = pipeline.ItemResult[*model.TransferAsset]{Err: ferr}
			continue
		}
		urls := make([]*url.URL, len(f.UploadURIs))
		var perr error
		for j, raw := range f.UploadURIs {
			u, err := url.Parse(raw)
			if err != nil {
				perr = xfererr.NewValidation("AEMInitiateUpload: invalid uploadURI %q: %v", raw, err)
				break
			}
			urls[j] = u
		}
		if perr != nil {
			res[i] = pipeline.ItemResult[*model.TransferAsset]{Err: perr}
			continue
		}

		mimeType := f.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		asset.Multipart = &model.Multipart{
			TargetURLs:  urls,
			MinPartSize: f.MinPartSize,
			MaxPartSize: f.MaxPartSize,
			CompleteURL: completeURL,
			UploadToken: f.UploadToken,
			MimeType:    mimeType,
		}
		asset.AcceptRanges = true
		res[i] = pipeline.ItemResult[*model.TransferAsset]{Out: asset}
	}
	return res
}

func validateInitiateEntry(f initiateFileEntry) error {
	if f.MinPartSize < 1 {
		return xfererr.NewValidation("AEMInitiateUpload: minPartSize must be >= 1, got %d", f.MinPartSize)
	}
	if f.MaxPartSize < f.MinPartSize {
		return xfererr.NewValidation("AEMInitiateUpload: maxPartSize (%d) must be >= minPartSize (%d)", f.MaxPartSize, f.MinPartSize)
	}
	if len(f.UploadURIs) == 0 {
		return xfererr.NewValidation("AEMInitiateUpload: uploadURIs must not be empty")
	}
	if f.UploadToken == "" {
		return xfererr.NewValidation("AEMInitiateUpload: uploadToken must not be empty")
	}
	return nil
}

// AEMCompleteOptions configures AEMCompleteUpload.
type AEMCompleteOptions struct {
	Client *http.Client
}

// AEMCompleteUpload POSTs each asset's completeURI with the form fields
// spec §4.6/§6.1 names, finalizing the DAM-side asset record once every
// part has been stored.
func AEMCompleteUpload(opts AEMCompleteOptions) pipeline.Stage[*model.TransferAsset, *model.TransferAsset] {
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
					ctrl.PublishBeforeStage("AEMCompleteUpload", asset.ID)
					if err := completeOne(ctx, opts.Client, asset); err != nil {
						asset.Fail(err)
						ctrl.NotifyError("AEMCompleteUpload", asset.ID, err)
					}
					ctrl.PublishAfterStage("AEMCompleteUpload", asset.ID)
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

func completeOne(ctx context.Context, client *http.Client, asset *model.TransferAsset) error {
	if asset.Multipart == nil || asset.Multipart.CompleteURL == nil {
		return xfererr.NewIllegalArgument("AEMCompleteUpload: asset %d has no completeURI", asset.ID)
	}

	label, comment := model.VersionLabel(asset.Conflict)
	form := url.Values{}
	form.Set("fileName", asset.Metadata.Filename)
	form.Set("fileSize", fmt.Sprintf("%d", asset.Metadata.ContentLength))
	form.Set("mimeType", asset.Multipart.MimeType)
	form.Set("createVersion", fmt.Sprintf("%t", asset.Conflict.Kind() == model.ConflictCreateVersion))
	if label != "" {
		form.Set("versionLabel", label)
	}
	if comment != "" {
		form.Set("versionComment", comment)
	}
	form.Set("replace", fmt.Sprintf("%t", asset.Conflict.Kind() == model.ConflictReplace))
	form.Set("uploadToken", asset.Multipart.UploadToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, asset.Multipart.CompleteURL.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := xferhttp.Do(client, req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

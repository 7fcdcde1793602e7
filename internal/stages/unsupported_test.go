package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescale/xferengine/internal/controller"
	"github.com/rescale/xferengine/internal/model"
	"github.com/rescale/xferengine/internal/pipeline"
)

func newBlobAsset(t *testing.T, filename string, contentLength int64) *model.TransferAsset {
	t.Helper()
	src := model.NewBlobAsset(make([]byte, contentLength), nil, nil)
	tgt, err := model.NewURLAsset("https://blob.example/"+filename, nil, nil)
	require.NoError(t, err)
	a := model.NewTransferAsset(src, tgt, nil)
	a.Metadata = model.Metadata{Filename: filename, ContentLength: contentLength, HasLength: true}
	return a
}

func TestFailUnsupportedAssetsRejectsForbiddenChars(t *testing.T) {
	ctx := context.Background()
	ctrl := controller.New()

	good := newBlobAsset(t, "photo.jpg", 10)
	bad := newBlobAsset(t, "bad:name[1].jpg", 10)

	stage := FailUnsupportedAssets("")
	in := pipeline.FromSlice(ctx, []*model.TransferAsset{good, bad})
	out := stage.Run(ctx, in, ctrl)
	got := pipeline.Collect(ctx, out)

	require.Len(t, got, 2)
	assert.False(t, good.Failed())
	assert.True(t, bad.Failed())
	assert.Contains(t, bad.Err().Error(), "unsupported characters")
}

func TestFailUnsupportedAssetsRejectsMissingLength(t *testing.T) {
	ctx := context.Background()
	ctrl := controller.New()

	asset := newBlobAsset(t, "f.jpg", 0)
	asset.Metadata.HasLength = false

	stage := FailUnsupportedAssets("")
	in := pipeline.FromSlice(ctx, []*model.TransferAsset{asset})
	out := stage.Run(ctx, in, ctrl)
	pipeline.Collect(ctx, out)

	assert.True(t, asset.Failed())
	assert.True(t, ctrl.HasFailed(asset.ID))
}

package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescale/xferengine/internal/controller"
	"github.com/rescale/xferengine/internal/model"
	"github.com/rescale/xferengine/internal/pipeline"
	"github.com/rescale/xferengine/internal/rangeset"
)

func TestJoinTransferPartsEmitsOnceAllRangesCovered(t *testing.T) {
	ctx := context.Background()
	ctrl := controller.New()

	asset := newBlobAsset(t, "f.bin", 30)

	parts := []*model.TransferPart{
		{Asset: asset, PartIndex: 1, Range: rangeset.Range{Low: 10, High: 30}},
		{Asset: asset, PartIndex: 0, Range: rangeset.Range{Low: 0, High: 10}},
	}

	stage := JoinTransferParts()
	in := pipeline.FromSlice(ctx, parts)
	out := stage.Run(ctx, in, ctrl)
	got := pipeline.Collect(ctx, out)

	require.Len(t, got, 1)
	assert.Same(t, asset, got[0])
	assert.Equal(t, model.AssetDone, asset.State())
}

func TestJoinTransferPartsSuppressesFailedAsset(t *testing.T) {
	ctx := context.Background()
	ctrl := controller.New()

	asset := newBlobAsset(t, "f.bin", 30)
	ctrl.NotifyError("Transfer", asset.ID, assertErr{})

	parts := []*model.TransferPart{
		{Asset: asset, PartIndex: 0, Range: rangeset.Range{Low: 0, High: 30}},
	}

	stage := JoinTransferParts()
	in := pipeline.FromSlice(ctx, parts)
	out := stage.Run(ctx, in, ctrl)
	got := pipeline.Collect(ctx, out)

	assert.Empty(t, got)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestJoinTransferPartsDoesNotDoubleEmitOnDuplicateRange(t *testing.T) {
	ctx := context.Background()
	ctrl := controller.New()

	asset := newBlobAsset(t, "f.bin", 10)

	parts := []*model.TransferPart{
		{Asset: asset, PartIndex: 0, Range: rangeset.Range{Low: 0, High: 10}},
		{Asset: asset, PartIndex: 0, Range: rangeset.Range{Low: 0, High: 10}},
	}

	stage := JoinTransferParts()
	in := pipeline.FromSlice(ctx, parts)
	out := stage.Run(ctx, in, ctrl)
	got := pipeline.Collect(ctx, out)

	assert.Len(t, got, 1)
}

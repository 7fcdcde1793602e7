package xfer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescale/xferengine/internal/controller"
	"github.com/rescale/xferengine/internal/model"
)

func rangeServer(t *testing.T, content []byte, corruptSecondRange bool) *httptest.Server {
	t.Helper()
	var rangeCalls int
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(content)))
			w.WriteHeader(http.StatusOK)
			return
		}

		var low, high int64
		_, err := fmt.Sscanf(r.Header.Get("Range"), "bytes=%d-%d", &low, &high)
		require.NoError(t, err)
		rangeCalls++

		body := content[low : high+1]
		if corruptSecondRange && rangeCalls == 2 {
			body = body[:len(body)-1]
		}
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(body)
	}))
}

func TestBlockDownloadSplitsByPreferredPartSize(t *testing.T) {
	ctx := context.Background()

	content := make([]byte, 2048)
	for i := range content {
		content[i] = byte(i % 251)
	}
	server := rangeServer(t, content, false)
	defer server.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")

	ctrl := controller.New()
	src, err := model.NewURLAsset(server.URL+"/asset.bin", nil, nil)
	require.NoError(t, err)
	tgt, err := model.NewURLAsset("file://"+dest, nil, nil)
	require.NoError(t, err)

	partSize := int64(512)
	opts := DownloadOptions{Options: Options{Controller: ctrl, PreferredPartSize: &partSize, MaxConcurrent: 4}}
	results := BlockDownload(ctx, opts, []FileTransfer{{Source: src, Target: tgt}})

	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestBlockDownloadRangeViolationCleansUpPartialFile(t *testing.T) {
	ctx := context.Background()

	content := make([]byte, 1024)
	server := rangeServer(t, content, true)
	defer server.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")

	ctrl := controller.New()
	src, err := model.NewURLAsset(server.URL+"/asset.bin", nil, nil)
	require.NoError(t, err)
	tgt, err := model.NewURLAsset("file://"+dest, nil, nil)
	require.NoError(t, err)

	partSize := int64(512)
	opts := DownloadOptions{Options: Options{
		Controller:        ctrl,
		PreferredPartSize: &partSize,
		MaxConcurrent:     1,
	}}
	results := BlockDownload(ctx, opts, []FileTransfer{{Source: src, Target: tgt}})

	require.Len(t, results, 1)
	require.Error(t, results[0].Err)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "partially-written file should have been unlinked")
}

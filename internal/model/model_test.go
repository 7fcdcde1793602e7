package model

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/rescale/xferengine/internal/rangeset"
)

func TestNewURLAssetRejectsBadScheme(t *testing.T) {
	if _, err := NewURLAsset("ftp://example.com/f", nil, nil); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}

func TestNewURLAssetAcceptsFileScheme(t *testing.T) {
	a, err := NewURLAsset("file:///tmp/x", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.IsFileURL() {
		t.Fatal("expected IsFileURL")
	}
	if a.IsBlob() {
		t.Fatal("file URL asset should not be a blob")
	}
}

func TestNewBlobAsset(t *testing.T) {
	a := NewBlobAsset([]byte("hello"), nil, nil)
	if !a.IsBlob() {
		t.Fatal("expected blob asset")
	}
	if string(a.Blob()) != "hello" {
		t.Fatalf("Blob() = %q", a.Blob())
	}
}

func TestAssetHeadersNeverNil(t *testing.T) {
	a := NewBlobAsset(nil, nil, nil)
	if a.Headers() == nil || a.PartHeaders() == nil {
		t.Fatal("Headers/PartHeaders must never be nil")
	}
}

func TestAssetHeadersCloned(t *testing.T) {
	h := http.Header{"X-Test": {"1"}}
	a := NewBlobAsset(nil, h, nil)
	h.Set("X-Test", "2")
	if a.Headers().Get("X-Test") != "1" {
		t.Fatal("asset headers must be cloned at construction, not aliased")
	}
}

func TestMetadataValidate(t *testing.T) {
	m := Metadata{ContentLength: -1, HasLength: true}
	if err := m.Validate(); err == nil {
		t.Fatal("expected error for negative content length")
	}
	m2 := Metadata{}
	if err := m2.Validate(); err != nil {
		t.Fatalf("unexpected error for absent length: %v", err)
	}
}

func TestMultipartValidate(t *testing.T) {
	m := Multipart{TargetURLs: []*url.URL{{Scheme: "https", Host: "blob.example"}}, MinPartSize: 10, MaxPartSize: 5}
	if err := m.Validate(); err == nil {
		t.Fatal("expected error: max < min")
	}
}

func TestConflictPolicyKinds(t *testing.T) {
	if DefaultConflictPolicy().Kind() != ConflictUpdateInPlace {
		t.Fatal("wrong kind for default")
	}
	if ReplaceConflictPolicy().Kind() != ConflictReplace {
		t.Fatal("wrong kind for replace")
	}
	cv := CreateVersionConflictPolicy("v1", "note")
	if cv.Kind() != ConflictCreateVersion {
		t.Fatal("wrong kind for create-version")
	}
	label, comment := VersionLabel(cv)
	if label != "v1" || comment != "note" {
		t.Fatalf("VersionLabel = (%q, %q)", label, comment)
	}
	label, comment = VersionLabel(DefaultConflictPolicy())
	if label != "" || comment != "" {
		t.Fatal("VersionLabel on non-create-version policy must return zero values")
	}
}

func TestNextAssetIDMonotonic(t *testing.T) {
	a := NextAssetID()
	b := NextAssetID()
	if b <= a {
		t.Fatalf("expected monotonically increasing IDs, got %d then %d", a, b)
	}
}

func TestTransferAssetLifecycle(t *testing.T) {
	src := NewBlobAsset([]byte("abc"), nil, nil)
	dst := NewBlobAsset(nil, nil, nil)
	asset := NewTransferAsset(src, dst, nil)

	if asset.State() != AssetPending {
		t.Fatalf("new asset state = %v, want pending", asset.State())
	}
	if asset.Conflict.Kind() != ConflictUpdateInPlace {
		t.Fatal("nil conflict policy should default to update-in-place")
	}

	asset.SetState(AssetResolved)
	if asset.State() != AssetResolved {
		t.Fatal("SetState did not take effect")
	}

	parts := []*TransferPart{
		{Asset: asset, PartIndex: 0, Range: rangeset.Range{Low: 0, High: 50}},
		{Asset: asset, PartIndex: 1, Range: rangeset.Range{Low: 50, High: 100}},
	}
	asset.SetParts(parts)
	if got := asset.Parts(); len(got) != 2 {
		t.Fatalf("Parts() len = %d, want 2", len(got))
	}

	done, total := asset.AddBytesDone(30)
	if done != 30 || total != 100 {
		t.Fatalf("AddBytesDone = (%d, %d), want (30, 100)", done, total)
	}

	closed := 0
	asset.AddCloser(func() error { closed++; return nil })
	asset.AddCloser(func() error { closed++; return nil })
	if err := asset.Close(); err != nil {
		t.Fatalf("unexpected error from Close: %v", err)
	}
	if closed != 2 {
		t.Fatalf("closed = %d, want 2", closed)
	}
	// Close must be idempotent w.r.t. re-running closers.
	if err := asset.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
	if closed != 2 {
		t.Fatalf("second Close should not re-run closers, closed = %d", closed)
	}
}

func TestTransferAssetFailIsSticky(t *testing.T) {
	asset := NewTransferAsset(NewBlobAsset(nil, nil, nil), NewBlobAsset(nil, nil, nil), nil)
	asset.Fail(errTest1)
	asset.Fail(errTest2)
	if asset.Err() != errTest1 {
		t.Fatalf("Fail should keep the first error, got %v", asset.Err())
	}
	if !asset.Failed() {
		t.Fatal("expected Failed() == true")
	}
}

var (
	errTest1 = errString("first")
	errTest2 = errString("second")
)

type errString string

func (e errString) Error() string { return string(e) }

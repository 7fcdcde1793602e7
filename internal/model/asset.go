// Package model defines the transfer engine's data model: Asset,
// AssetMetadata, AssetMultipart, NameConflictPolicy, TransferAsset, and
// TransferPart (spec §3). It grounds struct shape on the teacher's
// internal/transfer/task.go (state enum, timestamps, thread-safe accessors)
// generalized from "one file transfer task" to "one logical asset with a
// source and a target endpoint."
package model

import (
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/rescale/xferengine/internal/xfererr"
)

// Asset identifies one endpoint of a transfer: either a URL (http/https/file)
// or an in-memory blob, plus optional headers. Exactly one of URL or Blob is
// set. Asset is immutable after construction.
type Asset struct {
	url         *url.URL
	blob        []byte
	headers     http.Header
	partHeaders http.Header
}

// NewURLAsset constructs an Asset backed by a URL (http, https, or file scheme).
func NewURLAsset(raw string, headers, partHeaders http.Header) (Asset, error) {
	if raw == "" {
		return Asset{}, xfererr.NewIllegalArgument("asset URL must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Asset{}, xfererr.NewIllegalArgument("invalid asset URL %q: %v", raw, err)
	}
	switch u.Scheme {
	case "http", "https", "file":
	default:
		return Asset{}, xfererr.NewIllegalArgument("unsupported asset URL scheme %q", u.Scheme)
	}
	return Asset{url: u, headers: cloneHeader(headers), partHeaders: cloneHeader(partHeaders)}, nil
}

// NewBlobAsset constructs an Asset backed by an in-memory blob.
func NewBlobAsset(blob []byte, headers, partHeaders http.Header) Asset {
	return Asset{blob: blob, headers: cloneHeader(headers), partHeaders: cloneHeader(partHeaders)}
}

// IsBlob reports whether this asset is an in-memory blob rather than a URL.
func (a Asset) IsBlob() bool { return a.url == nil }

// URL returns the asset's URL, or nil if it is a blob asset.
func (a Asset) URL() *url.URL { return a.url }

// IsFileURL reports whether the asset's URL uses the file:// scheme.
func (a Asset) IsFileURL() bool { return a.url != nil && a.url.Scheme == "file" }

// Blob returns the asset's in-memory content, or nil if it is a URL asset.
func (a Asset) Blob() []byte { return a.blob }

// Headers returns the asset's request headers (never nil).
func (a Asset) Headers() http.Header {
	if a.headers == nil {
		return http.Header{}
	}
	return a.headers
}

// PartHeaders returns the asset's per-part headers (never nil).
func (a Asset) PartHeaders() http.Header {
	if a.partHeaders == nil {
		return http.Header{}
	}
	return a.partHeaders
}

func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return http.Header{}
	}
	return h.Clone()
}

// Metadata is AssetMetadata from spec §3: filename/contentType are optional,
// contentLength is tracked with an explicit presence flag since 0 is a valid
// length for an empty file.
type Metadata struct {
	Filename      string
	ContentType   string
	ContentLength int64
	HasLength     bool
}

// Validate enforces the invariant: if present, ContentLength is finite and >= 0.
func (m Metadata) Validate() error {
	if m.HasLength && m.ContentLength < 0 {
		return xfererr.NewIllegalArgument("metadata contentLength must be >= 0, got %d", m.ContentLength)
	}
	return nil
}

// Multipart is AssetMultipart from spec §3: the result of a DAM
// initiateUpload handshake, or a caller-supplied set of pre-signed block URLs.
type Multipart struct {
	TargetURLs  []*url.URL
	MinPartSize int64
	MaxPartSize int64
	PartHeaders http.Header
	CompleteURL *url.URL
	UploadToken string
	MimeType    string
}

// Validate enforces spec §3's AssetMultipart invariants.
func (m Multipart) Validate() error {
	if len(m.TargetURLs) == 0 {
		return xfererr.NewIllegalArgument("multipart target must have at least one URL")
	}
	if m.MinPartSize < 1 {
		return xfererr.NewIllegalArgument("multipart minPartSize must be >= 1, got %d", m.MinPartSize)
	}
	if m.MaxPartSize < m.MinPartSize {
		return xfererr.NewIllegalArgument("multipart maxPartSize (%d) must be >= minPartSize (%d)", m.MaxPartSize, m.MinPartSize)
	}
	return nil
}

// ConflictPolicy is a sealed sum type over NameConflictPolicy's three
// strategies (spec §3). The unexported method seals the interface to this
// package's three constructors, matching "exactly one conflict strategy is
// in effect."
type ConflictPolicy interface {
	isConflictPolicy()
	Kind() ConflictKind
}

type ConflictKind int

const (
	ConflictUpdateInPlace ConflictKind = iota
	ConflictReplace
	ConflictCreateVersion
)

type defaultConflict struct{}

func (defaultConflict) isConflictPolicy() {}
func (defaultConflict) Kind() ConflictKind { return ConflictUpdateInPlace }

// DefaultConflictPolicy updates the existing asset in place.
func DefaultConflictPolicy() ConflictPolicy { return defaultConflict{} }

type replaceConflict struct{}

func (replaceConflict) isConflictPolicy() {}
func (replaceConflict) Kind() ConflictKind { return ConflictReplace }

// ReplaceConflictPolicy replaces the existing asset entirely.
func ReplaceConflictPolicy() ConflictPolicy { return replaceConflict{} }

type createVersionConflict struct {
	label, comment string
}

func (createVersionConflict) isConflictPolicy()    {}
func (createVersionConflict) Kind() ConflictKind { return ConflictCreateVersion }

// Label returns the optional version label.
func (c createVersionConflict) Label() string { return c.label }

// Comment returns the optional version comment.
func (c createVersionConflict) Comment() string { return c.comment }

// CreateVersionConflictPolicy creates a new version of the existing asset.
func CreateVersionConflictPolicy(label, comment string) ConflictPolicy {
	return createVersionConflict{label: label, comment: comment}
}

// VersionLabel returns the label and comment for a create-version policy,
// or ("", "") for any other policy kind.
func VersionLabel(p ConflictPolicy) (label, comment string) {
	if cv, ok := p.(createVersionConflict); ok {
		return cv.label, cv.comment
	}
	return "", ""
}

var assetIDCounter uint64

// NextAssetID hands out the monotonic, stable asset IDs spec §9 calls for
// ("a stable asset ID assigned at construction... rather than pointer
// identity, so keys survive moves and cross-task boundaries").
func NextAssetID() uint64 {
	return atomic.AddUint64(&assetIDCounter, 1)
}

package model

import (
	"sync"
	"time"

	"github.com/rescale/xferengine/internal/rangeset"
)

// AssetState is the lifecycle state of a TransferAsset, mirroring the
// teacher's internal/transfer/task.go status enum (pending/active/done/
// failed) generalized with a "split" state for the point between metadata
// resolution and part creation.
type AssetState int

const (
	AssetPending AssetState = iota
	AssetResolved
	AssetSplit
	AssetTransferring
	AssetJoining
	AssetDone
	AssetFailed
)

func (s AssetState) String() string {
	switch s {
	case AssetPending:
		return "pending"
	case AssetResolved:
		return "resolved"
	case AssetSplit:
		return "split"
	case AssetTransferring:
		return "transferring"
	case AssetJoining:
		return "joining"
	case AssetDone:
		return "done"
	case AssetFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TransferAsset is one logical file moving from Source to Target, carried
// through every pipeline.Stage. It is the unit of work spec §4.5 names.
// Fields are guarded by mu since stages may read/update state concurrently
// with an in-flight part transfer reporting progress.
type TransferAsset struct {
	ID uint64

	Source Asset
	Target Asset

	Metadata  Metadata
	Multipart *Multipart
	Conflict  ConflictPolicy

	// AcceptRanges reports whether the target honors byte-range addressed
	// writes (multipart target URLs, or a file:// target), letting
	// CreateTransferParts split the asset across concurrent parts instead
	// of transferring it as one.
	AcceptRanges bool

	mu        sync.Mutex
	state     AssetState
	err       error
	parts     []*TransferPart
	startedAt time.Time
	endedAt   time.Time

	// BytesTotal/BytesDone track aggregate progress across all parts for
	// this asset, used for fileprogress events (spec §7).
	bytesTotal int64
	bytesDone  int64

	// closers close the filehandle.Cache entries opened on behalf of this
	// asset; CloseFiles must run them exactly once.
	closers []func() error
}

// OwnerAssetID satisfies stages.AssetIDer, letting the filter-failed-assets
// hook operate directly on a stream of *TransferAsset.
func (a *TransferAsset) OwnerAssetID() uint64 { return a.ID }

// Start records the transfer start timestamp, once.
func (a *TransferAsset) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.startedAt.IsZero() {
		a.startedAt = time.Now()
	}
}

// End records the transfer end timestamp.
func (a *TransferAsset) End() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.endedAt = time.Now()
}

// Timestamps returns the recorded start/end times (zero value if unset).
func (a *TransferAsset) Timestamps() (started, ended time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startedAt, a.endedAt
}

// NewTransferAsset constructs a pending asset with a freshly assigned ID.
func NewTransferAsset(source, target Asset, conflict ConflictPolicy) *TransferAsset {
	if conflict == nil {
		conflict = DefaultConflictPolicy()
	}
	return &TransferAsset{
		ID:       NextAssetID(),
		Source:   source,
		Target:   target,
		Conflict: conflict,
		state:    AssetPending,
	}
}

// State returns the asset's current lifecycle state.
func (a *TransferAsset) State() AssetState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// SetState transitions the asset to a new state.
func (a *TransferAsset) SetState(s AssetState) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// Fail marks the asset failed and records the causing error. Idempotent:
// the first error recorded wins.
func (a *TransferAsset) Fail(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == AssetFailed {
		return
	}
	a.state = AssetFailed
	a.err = err
}

// Err returns the error that caused Fail, if any.
func (a *TransferAsset) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Failed reports whether the asset has been marked failed.
func (a *TransferAsset) Failed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == AssetFailed
}

// SetParts installs the TransferParts produced by splitting this asset and
// records the aggregate byte total for progress accounting.
func (a *TransferAsset) SetParts(parts []*TransferPart) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.parts = parts
	var total int64
	for _, p := range parts {
		total += p.Range.Length()
	}
	a.bytesTotal = total
}

// Parts returns the asset's TransferParts.
func (a *TransferAsset) Parts() []*TransferPart {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.parts
}

// AddBytesDone accumulates completed bytes and returns the new (done, total).
func (a *TransferAsset) AddBytesDone(n int64) (done, total int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bytesDone += n
	return a.bytesDone, a.bytesTotal
}

// AddCloser registers a cleanup function CloseFiles must invoke.
func (a *TransferAsset) AddCloser(fn func() error) {
	a.mu.Lock()
	a.closers = append(a.closers, fn)
	a.mu.Unlock()
}

// Close runs every registered closer, returning the first error encountered
// while still attempting the rest.
func (a *TransferAsset) Close() error {
	a.mu.Lock()
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()

	var first error
	for _, fn := range closers {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// TransferPart is one contiguous byte range of a TransferAsset, the unit
// the concurrent map stage (C7) fans out over. PartIndex is the part's
// position among its asset's siblings (needed to address the asset's Nth
// presigned target URL, and for deterministic ordered reassembly).
type TransferPart struct {
	Asset     *TransferAsset
	PartIndex int
	Range     rangeset.Range

	// TargetURL, if non-empty, is the URL this part is sent to, taken from
	// the asset's Multipart target URLs (block upload and form POST modes).
	// Empty when the asset has no Multipart (whole-file PUT, file targets).
	TargetURL string

	// ETag is set by the Transfer stage from the upload response's ETag
	// header. No later stage reads it.
	ETag string
}

// OwnerAssetID satisfies stages.AssetIDer, letting the filter-failed-assets
// hook operate directly on a stream of *TransferPart.
func (p *TransferPart) OwnerAssetID() uint64 { return p.Asset.ID }

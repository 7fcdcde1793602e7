package controller

import (
	"sync"

	"github.com/rescale/xferengine/internal/filehandle"
	"github.com/rescale/xferengine/internal/xfererr"
)

// FailureRecord is one stage failure recorded against an asset.
type FailureRecord struct {
	Stage string
	Err   error
}

// Controller centralizes failure bookkeeping and event publishing across
// every stage in a pipeline run, per spec §4.7: stages call notifyError
// instead of propagating a Go error to their caller, and consult HasFailed
// to skip further work on an asset another stage already killed.
type Controller struct {
	Bus *EventBus

	mu       sync.Mutex
	failures map[uint64][]FailureRecord
	cleanup  map[uint64][]string // paths to unlink on failure, keyed by asset ID
}

// New creates a controller publishing through its own event bus with the
// engine's default buffer size.
func New() *Controller {
	return &Controller{
		Bus:      NewEventBus(0),
		failures: make(map[uint64][]FailureRecord),
		cleanup:  make(map[uint64][]string),
	}
}

// NotifyError records a stage failure for assetID and publishes an
// ErrorEvent. It reports whether this was the first failure recorded for
// the asset, per spec §4.7's "flag on the emitted event".
func (c *Controller) NotifyError(stage string, assetID uint64, err error) (first bool) {
	c.mu.Lock()
	existing := c.failures[assetID]
	first = len(existing) == 0
	c.failures[assetID] = append(existing, FailureRecord{Stage: stage, Err: err})
	c.mu.Unlock()

	c.Bus.Publish(&ErrorEvent{base: newBase("error"), Stage: stage, AssetID: assetID, Err: err, FirstFailure: first})
	return first
}

// HasFailed reports whether any stage has recorded a failure for assetID.
func (c *Controller) HasFailed(assetID uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.failures[assetID]
	return ok
}

// Failures returns every recorded failure for assetID, in recording order.
func (c *Controller) Failures(assetID uint64) []FailureRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]FailureRecord, len(c.failures[assetID]))
	copy(out, c.failures[assetID])
	return out
}

// FirstError returns the first error recorded for assetID, or nil.
func (c *Controller) FirstError(assetID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	recs := c.failures[assetID]
	if len(recs) == 0 {
		return nil
	}
	return recs[0].Err
}

// RegisterCleanup records a target-file path to unlink if assetID ends up
// failed, per spec §4.8/§9's "partially written files are unlinked" rule
// for downloads.
func (c *Controller) RegisterCleanup(assetID uint64, path string) {
	c.mu.Lock()
	c.cleanup[assetID] = append(c.cleanup[assetID], path)
	c.mu.Unlock()
}

// CleanupFailedTransfers unlinks every registered path belonging to a
// failed asset, ignoring individual unlink errors (spec §4.7).
func (c *Controller) CleanupFailedTransfers() {
	c.mu.Lock()
	type job struct {
		assetID uint64
		paths   []string
	}
	var jobs []job
	for id := range c.failures {
		if paths, ok := c.cleanup[id]; ok {
			jobs = append(jobs, job{assetID: id, paths: paths})
		}
	}
	c.mu.Unlock()

	for _, j := range jobs {
		for _, p := range j.paths {
			_ = filehandle.Unlink(p)
		}
	}
}

// PublishFileStart emits the filestart lifecycle event (spec §6.5).
func (c *Controller) PublishFileStart(assetID uint64, fileName string, fileSize int64) {
	c.Bus.Publish(newFileEvent(KindFileStart, assetID, fileName, fileSize, 0))
}

// PublishFileProgress emits a fileprogress lifecycle event.
func (c *Controller) PublishFileProgress(assetID uint64, fileName string, fileSize, transferred int64) {
	c.Bus.Publish(newFileEvent(KindFileProgress, assetID, fileName, fileSize, transferred))
}

// PublishFileEnd emits the fileend lifecycle event.
func (c *Controller) PublishFileEnd(assetID uint64, fileName string, fileSize int64) {
	c.Bus.Publish(newFileEvent(KindFileEnd, assetID, fileName, fileSize, fileSize))
}

// PublishFileError emits the fileerror lifecycle event, translating every
// recorded failure for assetID into a FileErrorDetail entry.
func (c *Controller) PublishFileError(assetID uint64, fileName string) {
	recs := c.Failures(assetID)
	details := make([]FileErrorDetail, 0, len(recs))
	for _, r := range recs {
		details = append(details, FileErrorDetail{
			Code:        codeFor(r.Err),
			Message:     r.Err.Error(),
			UploadError: true,
		})
	}
	c.Bus.Publish(&FileEvent{base: newBase(KindFileError), AssetID: assetID, FileName: fileName, Errors: details})
}

func codeFor(err error) string {
	type coder interface{ Code() xfererr.Code }
	if c, ok := err.(coder); ok {
		return string(c.Code())
	}
	return string(xfererr.CodeUnknown)
}

// PublishBeforeStage emits a before<Stage> boundary event.
func (c *Controller) PublishBeforeStage(stage string, assetID uint64) {
	c.Bus.Publish(newStageEvent(BeforeStage(stage), stage, assetID))
}

// PublishAfterStage emits an after<Stage> boundary event.
func (c *Controller) PublishAfterStage(stage string, assetID uint64) {
	c.Bus.Publish(newStageEvent(AfterStage(stage), stage, assetID))
}

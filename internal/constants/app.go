// Package constants holds tuning values shared across the transfer engine.
package constants

import "time"

// Part sizing
const (
	// DefaultPreferredPartSize is used when a caller doesn't specify one and
	// the target accepts arbitrary part boundaries (e.g. single-URL file download).
	DefaultPreferredPartSize = 10 * 1024 * 1024 // 10 MiB

	// DefaultMinPartSize is the floor used when a multipart target doesn't name one.
	DefaultMinPartSize = 5 * 1024 * 1024 // 5 MiB

	// DefaultMaxPartSize is the ceiling used when a multipart target doesn't name one.
	DefaultMaxPartSize = 5 * 1024 * 1024 * 1024 // 5 GiB
)

// Concurrency
const (
	// DefaultMaxConcurrencyBlock is the in-flight part cap for block/PUT transfers.
	DefaultMaxConcurrencyBlock = 8

	// DefaultMaxConcurrencyForm is the in-flight cap for the form/POST create-asset
	// servlet protocol, which is sequential per the teacher's default.
	DefaultMaxConcurrencyForm = 1
)

// Retry configuration (mirrors the teacher's exponential-backoff-with-jitter knobs)
const (
	DefaultRetryMaxCount    = 5
	DefaultRetryMaxDuration = 60 * time.Second
	DefaultRetryInterval    = 100 * time.Millisecond
)

// Buffer pool
const (
	// DefaultBufferBlockSize matches DefaultPreferredPartSize so a download's
	// pooled read buffers line up with its part size by default.
	DefaultBufferBlockSize = DefaultPreferredPartSize

	// DefaultBufferBudget caps aggregate pooled memory absent caller configuration.
	DefaultBufferBudget = 256 * 1024 * 1024 // 256 MiB
)

// HTTP client timeouts (ported from the teacher's upload/download optimized transport)
const (
	HTTPDialTimeout           = 30 * time.Second
	HTTPDialKeepAlive         = 30 * time.Second
	HTTPIdleConnTimeout       = 90 * time.Second
	HTTPTLSHandshakeTimeout   = 60 * time.Second
	HTTPExpectContinueTimeout = 1 * time.Second
	HTTPMaxIdleConns          = 512
	HTTPMaxIdleConnsPerHost   = 100
	HTTPMaxConnsPerHost       = 100
)

// Event bus
const (
	EventBusDefaultBuffer = 1000
	EventBusMaxBuffer     = 5000
)

// Error body capture
const (
	// MaxErrorBodyExcerpt is the cap on how many bytes of a text/* error body
	// get copied into an HTTPResponseError, per spec §7.
	MaxErrorBodyExcerpt = 10000
)

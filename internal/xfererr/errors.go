// Package xfererr defines the transfer engine's error taxonomy: the
// distinction between illegal-argument, unsupported-asset, HTTP response,
// connect, stream, range-violation, and validation errors drives retry
// classification in internal/retry and the status-code mapping callers use
// to render fileerror events.
package xfererr

import (
	"errors"
	"fmt"
)

// Code mirrors the DAM-style status codes from spec §6.6.
type Code string

const (
	CodeAlreadyExists  Code = "ALREADY_EXISTS"
	CodeForbidden      Code = "FORBIDDEN"
	CodeInvalidOptions Code = "INVALID_OPTIONS"
	CodeNotAuthorized  Code = "NOT_AUTHORIZED"
	CodeNotFound       Code = "NOT_FOUND"
	CodeTooLarge       Code = "TOO_LARGE"
	CodeNotSupported   Code = "NOT_SUPPORTED"
	CodeTooManyReqs    Code = "TOO_MANY_REQUESTS"
	CodeUnknown        Code = "EUNKNOWN"
)

// StatusForCode maps a DAM error code to its HTTP status, per spec §6.6.
func StatusForCode(c Code) int {
	switch c {
	case CodeAlreadyExists:
		return 409
	case CodeForbidden:
		return 403
	case CodeInvalidOptions:
		return 400
	case CodeNotAuthorized:
		return 401
	case CodeNotFound:
		return 404
	case CodeTooLarge:
		return 413
	case CodeNotSupported:
		return 501
	case CodeTooManyReqs:
		return 429
	default:
		return 500
	}
}

// IllegalArgumentError signals a caller/client programming error (bad
// construction, invalid options). Never retried.
type IllegalArgumentError struct {
	Message string
}

func (e *IllegalArgumentError) Error() string { return "illegal argument: " + e.Message }

func NewIllegalArgument(format string, args ...any) error {
	return &IllegalArgumentError{Message: fmt.Sprintf(format, args...)}
}

// UnsupportedAssetError rejects a single asset with a user-visible message,
// per FailUnsupportedAssets (spec §4.6). Always carries CodeUnknown.
type UnsupportedAssetError struct {
	Message string
}

func (e *UnsupportedAssetError) Error() string { return e.Message }

func (e *UnsupportedAssetError) Code() Code { return CodeUnknown }

// HTTPResponseError is raised when a target returns a non-2xx response.
// BodyExcerpt is capped (see constants.MaxErrorBodyExcerpt) and only
// populated for text/* content types, per spec §7.
type HTTPResponseError struct {
	Status      int
	BodyExcerpt string
	RetryAfter  string
}

func (e *HTTPResponseError) Error() string {
	if e.BodyExcerpt != "" {
		return fmt.Sprintf("http response error: status %d: %s", e.Status, e.BodyExcerpt)
	}
	return fmt.Sprintf("http response error: status %d", e.Status)
}

// ConnectError wraps a transport failure that occurred before any response
// was received (DNS, dial, TLS handshake, connection reset mid-handshake).
type ConnectError struct {
	Cause error
}

func (e *ConnectError) Error() string { return "connect error: " + e.Cause.Error() }
func (e *ConnectError) Unwrap() error { return e.Cause }

// StreamError wraps a failure that occurred while reading or writing a
// request/response body after headers were exchanged.
type StreamError struct {
	Cause error
}

func (e *StreamError) Error() string { return "stream error: " + e.Cause.Error() }
func (e *StreamError) Unwrap() error { return e.Cause }

// RangeViolationError is raised when a ranged GET response's Content-Length
// doesn't match the requested range, per spec §6.4 / §8 invariant 6.
type RangeViolationError struct {
	Requested Range
	GotLength int64
}

type Range struct {
	Low, High int64
}

func (e *RangeViolationError) Error() string {
	return fmt.Sprintf("server did not honor range: requested [%d, %d) (%d bytes), got %d bytes",
		e.Requested.Low, e.Requested.High, e.Requested.High-e.Requested.Low, e.GotLength)
}

// ValidationError signals a malformed DAM response (missing/invalid field).
// Never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return "validation error: " + e.Message }

func NewValidation(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsRetryableCategory reports whether err's concrete type is, in principle,
// a member of a retryable category (HTTP 5xx, connect, stream). It does not
// itself decide retryability for 4xx responses or apply retryAllErrors — that
// policy lives in internal/retry, which also consults this classification.
func IsRetryableCategory(err error) bool {
	var httpErr *HTTPResponseError
	if errors.As(err, &httpErr) {
		return httpErr.Status >= 500
	}
	var connErr *ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var streamErr *StreamError
	if errors.As(err, &streamErr) {
		return true
	}
	return false
}

// IsNeverRetryable reports whether err belongs to a category spec §7 says is
// "never retried" regardless of retryAllErrors.
func IsNeverRetryable(err error) bool {
	var illegal *IllegalArgumentError
	if errors.As(err, &illegal) {
		return true
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		return true
	}
	var unsupported *UnsupportedAssetError
	if errors.As(err, &unsupported) {
		return true
	}
	var rangeErr *RangeViolationError
	if errors.As(err, &rangeErr) {
		return true
	}
	return false
}

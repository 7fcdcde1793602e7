// Package reqgen shapes outbound upload requests for the transfer
// engine's two upload wire protocols (C11, spec §4.4/§6.2/§6.3): block PUT
// (raw bytes, one URL per part) and chunked form POST (multipart/form-data
// against a single create-asset servlet URL). Grounded on the body/header
// shaping idiom of the teacher's cloud/upload PUT/POST paths, reimplemented
// generically against model.TransferPart instead of S3/Azure SDK types.
package reqgen

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/rescale/xferengine/internal/model"
)

// Generator builds an *http.Request for one part transfer.
type Generator interface {
	// Request builds the outbound request for part, whose body is data
	// (the part's byte range, already read from source).
	Request(url string, part *model.TransferPart, data []byte, headers http.Header) (*http.Request, error)
}

// Block is the raw-bytes PUT generator (spec §6.2): body is the part's
// bytes verbatim, headers carry Content-Length/Content-Type plus any
// caller-supplied per-part headers (e.g. blob-store `x-ms-blob-type`).
type Block struct {
	ContentType string
}

func (b Block) Request(url string, part *model.TransferPart, data []byte, headers http.Header) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("reqgen: build PUT request: %w", err)
	}
	req.ContentLength = int64(len(data))
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	ct := b.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", ct)
	}
	return req, nil
}

// Form is the chunked multipart/form-data generator for the DAM
// create-asset servlet (spec §4.4/§6.3). A part is "chunked" iff its
// length is less than the asset's total content length.
type Form struct {
	FileName    string
	ContentType string
	TotalSize   int64
}

func (f Form) Request(url string, part *model.TransferPart, data []byte, headers http.Header) (*http.Request, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	chunked := int64(len(data)) < f.TotalSize

	if err := mw.WriteField("_charset_", "utf-8"); err != nil {
		return nil, err
	}
	if chunked {
		if err := mw.WriteField("file@Offset", fmt.Sprintf("%d", part.Range.Low)); err != nil {
			return nil, err
		}
		if err := mw.WriteField("chunk@Length", fmt.Sprintf("%d", len(data))); err != nil {
			return nil, err
		}
		if err := mw.WriteField("file@Length", fmt.Sprintf("%d", f.TotalSize)); err != nil {
			return nil, err
		}
	}

	fw, err := mw.CreateFormFile("file", f.FileName)
	if err != nil {
		return nil, fmt.Errorf("reqgen: create form file field: %w", err)
	}
	if _, err := io.Copy(fw, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("reqgen: write form file body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("reqgen: close multipart writer: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("reqgen: build POST request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if chunked {
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		req.Header.Set("x-chunked-content-type", ct)
		req.Header.Set("x-chunked-total-size", fmt.Sprintf("%d", f.TotalSize))
	}
	return req, nil
}

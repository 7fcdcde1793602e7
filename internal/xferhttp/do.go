package xferhttp

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rescale/xferengine/internal/constants"
	"github.com/rescale/xferengine/internal/xfererr"
)

// Do executes req and classifies the outcome per spec §7/§8: a transport
// failure before any response is a *xfererr.ConnectError; a non-2xx
// response is a *xfererr.HTTPResponseError with a capped body excerpt; a
// 2xx response is returned unclassified for the caller to consume (and
// eventually close).
func Do(client *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, &xfererr.ConnectError{Cause: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	excerpt := readExcerpt(resp)
	return nil, &xfererr.HTTPResponseError{
		Status:      resp.StatusCode,
		BodyExcerpt: excerpt,
		RetryAfter:  resp.Header.Get("Retry-After"),
	}
}

// readExcerpt captures up to constants.MaxErrorBodyExcerpt bytes of a
// text/* error response body, per spec §7.
func readExcerpt(resp *http.Response) string {
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/") {
		return ""
	}
	limited := io.LimitReader(resp.Body, constants.MaxErrorBodyExcerpt)
	data, err := io.ReadAll(limited)
	if err != nil {
		return ""
	}
	return string(data)
}

// WrapStreamErr classifies an error encountered while reading or writing a
// request/response body after headers were already exchanged.
func WrapStreamErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		return &xfererr.StreamError{Cause: fmt.Errorf("unexpected EOF: %w", err)}
	}
	return &xfererr.StreamError{Cause: err}
}

package xferhttp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rescale/xferengine/internal/xfererr"
)

func TestDoSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := Do(srv.Client(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
}

func TestDoClassifiesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := Do(srv.Client(), req)
	var httpErr *xfererr.HTTPResponseError
	if err == nil {
		t.Fatal("expected error")
	}
	if !asHTTPErr(err, &httpErr) {
		t.Fatalf("expected HTTPResponseError, got %T: %v", err, err)
	}
	if httpErr.Status != 500 || httpErr.BodyExcerpt != "boom" {
		t.Fatalf("unexpected error fields: %+v", httpErr)
	}
}

func TestDoClassifiesConnectError(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://127.0.0.1:1", nil)
	_, err := Do(http.DefaultClient, req)
	var connErr *xfererr.ConnectError
	if !asConnErr(err, &connErr) {
		t.Fatalf("expected ConnectError, got %T: %v", err, err)
	}
}

func asHTTPErr(err error, target **xfererr.HTTPResponseError) bool {
	e, ok := err.(*xfererr.HTTPResponseError)
	if ok {
		*target = e
	}
	return ok
}

func asConnErr(err error, target **xfererr.ConnectError) bool {
	e, ok := err.(*xfererr.ConnectError)
	if ok {
		*target = e
	}
	return ok
}

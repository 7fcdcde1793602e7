package reqgen

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/rescale/xferengine/internal/model"
	"github.com/rescale/xferengine/internal/rangeset"
)

func testPart(low, high int64) *model.TransferPart {
	return &model.TransferPart{
		PartIndex: 0,
		Range:     rangeset.Range{Low: low, High: high},
	}
}

func TestBlockRequestSetsBodyAndHeaders(t *testing.T) {
	gen := Block{ContentType: "image/png"}
	data := []byte("hello world")
	req, err := gen.Request("https://blob.example/part0", testPart(0, 11), data, http.Header{"x-ms-blob-type": {"BlockBlob"}})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if req.Method != http.MethodPut {
		t.Fatalf("method = %s, want PUT", req.Method)
	}
	if req.ContentLength != int64(len(data)) {
		t.Fatalf("ContentLength = %d, want %d", req.ContentLength, len(data))
	}
	if got := req.Header.Get("Content-Type"); got != "image/png" {
		t.Fatalf("Content-Type = %q, want image/png", got)
	}
	if got := req.Header.Get("x-ms-blob-type"); got != "BlockBlob" {
		t.Fatalf("x-ms-blob-type = %q, want BlockBlob", got)
	}
	body, _ := io.ReadAll(req.Body)
	if string(body) != "hello world" {
		t.Fatalf("body = %q", body)
	}
}

func TestBlockRequestDefaultsContentType(t *testing.T) {
	gen := Block{}
	req, err := gen.Request("https://blob.example/part0", testPart(0, 5), []byte("aaaaa"), nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if got := req.Header.Get("Content-Type"); got != "application/octet-stream" {
		t.Fatalf("Content-Type = %q, want application/octet-stream", got)
	}
}

func TestFormRequestNonChunkedOmitsOffsetFields(t *testing.T) {
	gen := Form{FileName: "photo.jpg", ContentType: "image/jpeg", TotalSize: 11}
	data := []byte("hello world")
	req, err := gen.Request("https://dam.example/createasset", testPart(0, 11), data, nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if req.Method != http.MethodPost {
		t.Fatalf("method = %s, want POST", req.Method)
	}
	fields, fileBody := parseMultipart(t, req)
	if _, ok := fields["file@Offset"]; ok {
		t.Fatal("file@Offset should be absent for a non-chunked upload")
	}
	if fields["_charset_"] != "utf-8" {
		t.Fatalf("_charset_ = %q, want utf-8", fields["_charset_"])
	}
	if string(fileBody) != "hello world" {
		t.Fatalf("file body = %q", fileBody)
	}
	if req.Header.Get("x-chunked-content-type") != "" {
		t.Fatal("x-chunked-content-type should be absent for a non-chunked upload")
	}
}

func TestFormRequestChunkedIncludesOffsetFieldsAndHeaders(t *testing.T) {
	gen := Form{FileName: "photo.jpg", ContentType: "image/jpeg", TotalSize: 100}
	data := []byte("partbytes!")
	part := testPart(20, 30)
	req, err := gen.Request("https://dam.example/createasset", part, data, nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	fields, fileBody := parseMultipart(t, req)
	if fields["file@Offset"] != "20" {
		t.Fatalf("file@Offset = %q, want 20", fields["file@Offset"])
	}
	if fields["chunk@Length"] != "10" {
		t.Fatalf("chunk@Length = %q, want 10", fields["chunk@Length"])
	}
	if fields["file@Length"] != "100" {
		t.Fatalf("file@Length = %q, want 100", fields["file@Length"])
	}
	if string(fileBody) != "partbytes!" {
		t.Fatalf("file body = %q", fileBody)
	}
	if got := req.Header.Get("x-chunked-content-type"); got != "image/jpeg" {
		t.Fatalf("x-chunked-content-type = %q, want image/jpeg", got)
	}
	if got := req.Header.Get("x-chunked-total-size"); got != "100" {
		t.Fatalf("x-chunked-total-size = %q, want 100", got)
	}
}

func parseMultipart(t *testing.T, req *http.Request) (map[string]string, []byte) {
	t.Helper()
	_, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("ParseMediaType: %v", err)
	}
	mr := multipart.NewReader(req.Body, params["boundary"])
	fields := map[string]string{}
	var fileBody []byte
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart: %v", err)
		}
		data, err := io.ReadAll(part)
		if err != nil {
			t.Fatalf("read part: %v", err)
		}
		if part.FormName() == "file" {
			fileBody = data
			continue
		}
		fields[part.FormName()] = string(data)
	}
	return fields, fileBody
}

func TestFormRequestContentTypeIsMultipart(t *testing.T) {
	gen := Form{FileName: "f.bin", TotalSize: 3}
	req, err := gen.Request("https://dam.example/createasset", testPart(0, 3), []byte("abc"), nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if !strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/form-data; boundary=") {
		t.Fatalf("Content-Type = %q", req.Header.Get("Content-Type"))
	}
}
